package validate

import (
	"fmt"
	"strings"
)

// Severity classifies a finding. Warnings never block generation in normal
// mode; strict mode promotes them to errors before validity is computed.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code identifies which check produced a finding.
type Code string

const (
	CodeConstraint  Code = "constraint"
	CodeReference   Code = "reference"
	CodePlaceholder Code = "placeholder"
	CodeCycle       Code = "cycle"
	CodeSchema      Code = "schema"
)

// Finding is a single validation result attached to an entity.
type Finding struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
}

// Report aggregates findings across all entities of one validation pass.
// It is constructed once per pass and never mutated after being returned.
type Report struct {
	findings    map[string][]Finding
	entities    []string // entity attach order
	suggestions []string
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{findings: make(map[string][]Finding)}
}

func (r *Report) add(entity string, f Finding) {
	if _, ok := r.findings[entity]; !ok {
		r.entities = append(r.entities, entity)
	}
	r.findings[entity] = append(r.findings[entity], f)
}

// AddError attaches an error finding to the entity.
func (r *Report) AddError(entity string, code Code, format string, args ...any) {
	r.add(entity, Finding{Severity: SeverityError, Code: code, Message: fmt.Sprintf(format, args...)})
}

// AddWarning attaches a warning finding to the entity.
func (r *Report) AddWarning(entity string, code Code, format string, args ...any) {
	r.add(entity, Finding{Severity: SeverityWarning, Code: code, Message: fmt.Sprintf(format, args...)})
}

// AddFindings attaches a batch of findings to the entity, preserving order.
func (r *Report) AddFindings(entity string, fs []Finding) {
	for _, f := range fs {
		r.add(entity, f)
	}
}

// AddSuggestion records a free-text fix suggestion. Duplicates are dropped.
func (r *Report) AddSuggestion(s string) {
	for _, have := range r.suggestions {
		if have == s {
			return
		}
	}
	r.suggestions = append(r.suggestions, s)
}

// PromoteWarnings rewrites every warning finding as an error. Used by strict
// mode before validity is computed.
func (r *Report) PromoteWarnings() {
	for entity, fs := range r.findings {
		for i := range fs {
			if fs[i].Severity == SeverityWarning {
				fs[i].Severity = SeverityError
			}
		}
		r.findings[entity] = fs
	}
}

// Findings returns the findings attached to an entity, in attach order.
func (r *Report) Findings(entity string) []Finding {
	return r.findings[entity]
}

// Entities returns the entities with findings, in attach order.
func (r *Report) Entities() []string {
	out := make([]string, len(r.entities))
	copy(out, r.entities)
	return out
}

// Suggestions returns the collected fix suggestions.
func (r *Report) Suggestions() []string {
	out := make([]string, len(r.suggestions))
	copy(out, r.suggestions)
	return out
}

// IsValid reports whether no entity has an error-severity finding.
func (r *Report) IsValid() bool {
	return r.ErrorCount() == 0
}

// ErrorCount returns the total number of error findings.
func (r *Report) ErrorCount() int {
	n := 0
	for _, fs := range r.findings {
		for _, f := range fs {
			if f.Severity == SeverityError {
				n++
			}
		}
	}
	return n
}

// WarningCount returns the total number of warning findings.
func (r *Report) WarningCount() int {
	n := 0
	for _, fs := range r.findings {
		for _, f := range fs {
			if f.Severity == SeverityWarning {
				n++
			}
		}
	}
	return n
}

// Errors returns error messages grouped by entity.
func (r *Report) Errors() map[string][]string {
	return r.messages(SeverityError)
}

// Warnings returns warning messages grouped by entity.
func (r *Report) Warnings() map[string][]string {
	return r.messages(SeverityWarning)
}

func (r *Report) messages(sev Severity) map[string][]string {
	out := make(map[string][]string)
	for entity, fs := range r.findings {
		for _, f := range fs {
			if f.Severity == sev {
				out[entity] = append(out[entity], f.Message)
			}
		}
	}
	return out
}

// Summary renders the report as deterministic human-readable text: an overall
// status line, findings grouped by entity in attach order, and a trailing
// suggestions block.
func (r *Report) Summary() string {
	var b strings.Builder

	if r.IsValid() {
		if r.WarningCount() == 0 {
			b.WriteString("all schemas passed validation\n")
		} else {
			fmt.Fprintf(&b, "all schemas passed validation (%d warnings)\n", r.WarningCount())
		}
	} else {
		fmt.Fprintf(&b, "schema validation failed: %d errors, %d warnings\n", r.ErrorCount(), r.WarningCount())
	}

	for _, entity := range r.entities {
		fs := r.findings[entity]
		if len(fs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n  %s:\n", entity)
		for _, f := range fs {
			fmt.Fprintf(&b, "    %s [%s]: %s\n", f.Severity, f.Code, f.Message)
		}
	}

	if len(r.suggestions) > 0 {
		b.WriteString("\nsuggestions:\n")
		for _, s := range r.suggestions {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}

	return b.String()
}

// Error is returned when validation fails; it carries the full report.
type Error struct {
	Report *Report
}

func (e *Error) Error() string {
	return fmt.Sprintf("schema validation failed: %d errors, %d warnings",
		e.Report.ErrorCount(), e.Report.WarningCount())
}
