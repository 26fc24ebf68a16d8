package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fabrica/fabrica/internal/schema"
)

// ConstraintChecker validates per-field constraint sanity: numeric and length
// bounds must not be inverted, and regex patterns must compile. It never looks
// outside a single field spec.
type ConstraintChecker struct{}

// CheckEntity runs the constraint check over every field of the entity, in
// declaration order.
func (ConstraintChecker) CheckEntity(e *schema.EntitySchema) []Finding {
	var out []Finding
	for _, f := range e.Fields {
		out = append(out, CheckField(f.Name, f.Spec)...)
	}
	return out
}

// CheckField validates one field spec and returns its findings. An unknown
// type tag is a warning: generation falls back to plain text for it.
func CheckField(name string, spec schema.FieldSpec) []Finding {
	var out []Finding

	if spec.Type == schema.TypeOther {
		out = append(out, Finding{
			Severity: SeverityWarning,
			Code:     CodeConstraint,
			Message:  fmt.Sprintf("field %q has unknown type %q; values will be generated as text", name, spec.RawType),
		})
	}

	c := spec.Constraints
	if c == nil {
		return out
	}

	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		out = append(out, Finding{
			Severity: SeverityError,
			Code:     CodeConstraint,
			Message:  fmt.Sprintf("field %q has min (%v) greater than max (%v)", name, *c.Min, *c.Max),
		})
	}
	if c.MinLength != nil && c.MaxLength != nil && *c.MinLength > *c.MaxLength {
		out = append(out, Finding{
			Severity: SeverityError,
			Code:     CodeConstraint,
			Message:  fmt.Sprintf("field %q has min_length (%d) greater than max_length (%d)", name, *c.MinLength, *c.MaxLength),
		})
	}

	if c.Pattern != "" {
		if _, err := regexp.Compile(c.Pattern); err != nil {
			msg := fmt.Sprintf("field %q has invalid pattern %q: %v", name, c.Pattern, compileDiag(err))
			if fixed, ok := autoClose(c.Pattern); ok {
				msg += fmt.Sprintf(" (did you mean %q?)", fixed)
			}
			out = append(out, Finding{Severity: SeverityError, Code: CodeConstraint, Message: msg})
		}
	}

	return out
}

// compileDiag strips the redundant "error parsing regexp: " prefix the regexp
// package puts on every compile error.
func compileDiag(err error) string {
	return strings.TrimPrefix(err.Error(), "error parsing regexp: ")
}

// autoClose suggests a fix for the common unbalanced-bracket mistakes: a
// pattern missing one closing ], ) or }. Returns false when the imbalance is
// anything else, or when appending the closer does not make it compile.
func autoClose(pattern string) (string, bool) {
	pairs := []struct{ open, close string }{
		{"[", "]"},
		{"(", ")"},
		{"{", "}"},
	}
	for _, p := range pairs {
		if strings.Count(pattern, p.open)-strings.Count(pattern, p.close) == 1 {
			fixed := pattern + p.close
			if _, err := regexp.Compile(fixed); err == nil {
				return fixed, true
			}
		}
	}
	return "", false
}
