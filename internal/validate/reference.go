package validate

import (
	"fmt"

	"github.com/fabrica/fabrica/internal/schema"
)

// ReferenceChecker validates foreign key declarations against the whole
// schema set: the target entity must exist, the target column must exist on
// it, and the declaring field must exist locally. Missing targets also
// produce "did you mean" suggestions when a close name exists.
type ReferenceChecker struct {
	// Naming, when set, flags fk field names that break convention. Nil
	// disables the advisory naming check.
	Naming NamingStrategy
}

// CheckEntity validates every foreign key of one entity. Returned suggestions
// are fix hints for the report's trailing suggestions block.
func (c ReferenceChecker) CheckEntity(e *schema.EntitySchema, set *schema.Set) (findings []Finding, suggestions []string) {
	for _, field := range e.FKOrder {
		ref := e.ForeignKeys[field]

		if !e.HasField(field) {
			findings = append(findings, Finding{
				Severity: SeverityError,
				Code:     CodeReference,
				Message:  fmt.Sprintf("foreign key declared for %q, but the entity has no such field", field),
			})
			if near, ok := closestName(field, e.FieldNames()); ok {
				suggestions = append(suggestions,
					fmt.Sprintf("%s.%s: did you mean field %q?", e.Name, field, near))
			}
		}

		target, ok := set.Get(ref.TargetEntity)
		if !ok {
			findings = append(findings, Finding{
				Severity: SeverityError,
				Code:     CodeReference,
				Message:  fmt.Sprintf("foreign key %q references unknown entity %q", field, ref.TargetEntity),
			})
			if near, ok := closestName(ref.TargetEntity, set.Names()); ok {
				suggestions = append(suggestions,
					fmt.Sprintf("%s.%s: did you mean entity %q?", e.Name, field, near))
			}
			continue
		}

		if !target.HasField(ref.TargetColumn) {
			findings = append(findings, Finding{
				Severity: SeverityError,
				Code:     CodeReference,
				Message: fmt.Sprintf("foreign key %q references %s.%s, but %q has no field %q",
					field, ref.TargetEntity, ref.TargetColumn, ref.TargetEntity, ref.TargetColumn),
			})
			if near, ok := closestName(ref.TargetColumn, target.FieldNames()); ok {
				suggestions = append(suggestions,
					fmt.Sprintf("%s.%s: did you mean column %q?", e.Name, field, near))
			}
		}

		// Self-references are legal; the naming convention does not apply to
		// them (manager_id -> employees is idiomatic).
		if c.Naming != nil && ref.TargetEntity != e.Name && !c.Naming.Matches(field, ref.TargetEntity) {
			findings = append(findings, Finding{
				Severity: SeverityWarning,
				Code:     CodeReference,
				Message: fmt.Sprintf("foreign key field %q does not follow the %q convention for references into %q",
					field, c.Naming.ExpectedName(ref.TargetEntity), ref.TargetEntity),
			})
		}
	}
	return findings, suggestions
}
