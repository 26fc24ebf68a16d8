package validate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fabrica/fabrica/internal/graph"
	"github.com/fabrica/fabrica/internal/schema"
)

// defaultMaxChainDepth is the reference-chain depth above which validation
// warns; deep chains force long sequential generation phases.
const defaultMaxChainDepth = 10

// Validator runs every check over a schema set and assembles the report.
// The zero value is usable; it validates with default settings.
type Validator struct {
	// Strict promotes every warning to an error before validity is computed.
	Strict bool
	// MaxChainDepth overrides the reference-chain depth warning threshold.
	// Zero means the default of 10.
	MaxChainDepth int
	// Naming is the fk naming convention to enforce (advisory). Nil enables
	// the default convention; use DisableNaming to turn the check off.
	Naming NamingStrategy
	// DisableNaming turns the advisory naming check off entirely.
	DisableNaming bool
	// TemplateBaseDir resolves relative template paths.
	TemplateBaseDir string
	// Parallelism caps concurrent per-entity checks. Zero means unbounded.
	Parallelism int

	Logger *slog.Logger
}

// entityResult carries the findings of one entity's independent checks out of
// the parallel phase, so the merge can happen in declaration order.
type entityResult struct {
	findings    []Finding
	suggestions []string
}

// Validate runs all checks over the set and returns the report. The returned
// error is a *Error carrying the same report when validation fails, nil when
// it passes; other error values only occur on context cancellation.
func (v *Validator) Validate(ctx context.Context, set *schema.Set) (*Report, error) {
	log := v.Logger
	if log == nil {
		log = slog.Default()
	}
	report := NewReport()

	if set == nil || set.Len() == 0 {
		report.AddError("schemas", CodeSchema, "no schemas to validate")
		return report, &Error{Report: report}
	}

	names := set.Names()
	log.Debug("validating schema set", "entities", len(names), "strict", v.Strict)

	naming := v.Naming
	if naming == nil && !v.DisableNaming {
		naming = ConventionNaming{}
	}
	refCheck := ReferenceChecker{Naming: naming}
	tplCheck := TemplateChecker{BaseDir: v.TemplateBaseDir}
	conCheck := ConstraintChecker{}

	// Per-entity checks are independent; run them in parallel and merge the
	// results by declaration index so report order stays deterministic.
	results := make([]entityResult, len(names))
	g, ctx := errgroup.WithContext(ctx)
	if v.Parallelism > 0 {
		g.SetLimit(v.Parallelism)
	}
	for i, name := range names {
		e, _ := set.Get(name)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var res entityResult
			if len(e.Fields) == 0 {
				res.findings = append(res.findings, Finding{
					Severity: SeverityError,
					Code:     CodeSchema,
					Message:  "entity declares no fields",
				})
			}
			fs, sugg := refCheck.CheckEntity(e, set)
			res.findings = append(res.findings, fs...)
			res.suggestions = append(res.suggestions, sugg...)
			res.findings = append(res.findings, tplCheck.CheckEntity(e)...)
			res.findings = append(res.findings, conCheck.CheckEntity(e)...)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("validation canceled: %w", err)
	}

	for i, name := range names {
		report.AddFindings(name, results[i].findings)
		for _, s := range results[i].suggestions {
			report.AddSuggestion(s)
		}
	}

	v.checkGraph(set, report)

	if v.Strict {
		report.PromoteWarnings()
	}

	if !report.IsValid() {
		log.Debug("validation failed", "errors", report.ErrorCount(), "warnings", report.WarningCount())
		return report, &Error{Report: report}
	}
	log.Debug("validation passed", "warnings", report.WarningCount())
	return report, nil
}

// checkGraph builds the reference graph over resolvable targets, reports
// every cycle on every entity it involves, and warns about deep chains.
func (v *Validator) checkGraph(set *schema.Set, report *Report) {
	g := BuildGraph(set)

	cycles := g.DetectCycles()
	for _, cycle := range cycles {
		msg := fmt.Sprintf("circular reference: %s -> %s", strings.Join(cycle, " -> "), cycle[0])
		for _, entity := range cycle {
			report.AddError(entity, CodeCycle, "%s", msg)
		}
	}
	if len(cycles) > 0 {
		return
	}

	maxDepth := v.MaxChainDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxChainDepth
	}
	for _, name := range set.Names() {
		if d := g.MaxDepth(name); d > maxDepth {
			report.AddWarning(name, CodeCycle,
				"reference chain starting at %q has depth %d, above the threshold of %d", name, d, maxDepth)
		}
	}
}

// BuildGraph constructs the reference graph of a schema set. Foreign keys
// whose target entity does not exist are skipped; the reference check already
// reports those as errors.
func BuildGraph(set *schema.Set) *graph.Graph {
	g := graph.New(set.Names())
	for _, name := range set.Names() {
		e, _ := set.Get(name)
		for _, field := range e.FKOrder {
			ref := e.ForeignKeys[field]
			if _, ok := set.Get(ref.TargetEntity); ok {
				g.AddEdge(name, ref.TargetEntity)
			}
		}
	}
	return g
}
