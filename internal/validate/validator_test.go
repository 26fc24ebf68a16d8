package validate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fabrica/fabrica/internal/schema"
)

func mustParse(t *testing.T, src string) *schema.Set {
	t.Helper()
	set, err := schema.ParseSet([]byte(src))
	if err != nil {
		t.Fatalf("parsing schema fixture: %v", err)
	}
	return set
}

func findingMessages(r *Report, entity string) []string {
	var out []string
	for _, f := range r.Findings(entity) {
		out = append(out, f.Message)
	}
	return out
}

func containing(msgs []string, substr string) bool {
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestValidate_ValidSet(t *testing.T) {
	set := mustParse(t, `
customers:
  id: id
  name: text
orders:
  __foreign_keys__:
    customer_id: [customers, id]
  id: id
  customer_id: foreign_key
`)
	v := &Validator{}
	report, err := v.Validate(context.Background(), set)
	if err != nil {
		t.Fatalf("expected valid set, got %v\n%s", err, report.Summary())
	}
	if !report.IsValid() {
		t.Fatalf("expected valid report:\n%s", report.Summary())
	}
}

func TestValidate_UnknownEntity(t *testing.T) {
	set := mustParse(t, `
customers:
  id: id
orders:
  __foreign_keys__:
    customer_id: [customer, id]
  id: id
  customer_id: foreign_key
`)
	v := &Validator{}
	report, err := v.Validate(context.Background(), set)

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if verr.Report != report {
		t.Error("error should carry the returned report")
	}

	msgs := findingMessages(report, "orders")
	if !containing(msgs, `references unknown entity "customer"`) {
		t.Errorf("missing unknown-entity error, findings: %v", msgs)
	}
	if report.ErrorCount() != 1 {
		t.Errorf("expected exactly 1 error, got %d:\n%s", report.ErrorCount(), report.Summary())
	}

	sugg := report.Suggestions()
	if len(sugg) != 1 || !strings.Contains(sugg[0], `"customers"`) {
		t.Errorf("expected a single customers suggestion, got %v", sugg)
	}
}

func TestValidate_UnknownColumn(t *testing.T) {
	set := mustParse(t, `
customers:
  id: id
  name: text
orders:
  __foreign_keys__:
    customer_id: [customers, identifier]
  id: id
  customer_id: foreign_key
`)
	v := &Validator{}
	report, _ := v.Validate(context.Background(), set)
	msgs := findingMessages(report, "orders")
	if !containing(msgs, `has no field "identifier"`) {
		t.Errorf("missing unknown-column error, findings: %v", msgs)
	}
}

func TestValidate_FKFieldMissing(t *testing.T) {
	set := mustParse(t, `
customers:
  id: id
orders:
  __foreign_keys__:
    customer_id: [customers, id]
  id: id
`)
	v := &Validator{}
	report, _ := v.Validate(context.Background(), set)
	msgs := findingMessages(report, "orders")
	if !containing(msgs, "has no such field") {
		t.Errorf("missing fk-field error, findings: %v", msgs)
	}
}

func TestValidate_SelfReferenceIsValid(t *testing.T) {
	set := mustParse(t, `
employees:
  __foreign_keys__:
    manager_id: [employees, id]
  id: id
  manager_id: foreign_key
`)
	v := &Validator{}
	report, err := v.Validate(context.Background(), set)
	if err != nil {
		t.Fatalf("self-reference must be valid, got:\n%s", report.Summary())
	}
}

func TestValidate_Cycle(t *testing.T) {
	set := mustParse(t, `
a:
  __foreign_keys__:
    b_id: [b, id]
  id: id
  b_id: foreign_key
b:
  __foreign_keys__:
    a_id: [a, id]
  id: id
  a_id: foreign_key
`)
	v := &Validator{}
	report, err := v.Validate(context.Background(), set)
	if err == nil {
		t.Fatal("expected cycle to fail validation")
	}
	for _, entity := range []string{"a", "b"} {
		if !containing(findingMessages(report, entity), "circular reference") {
			t.Errorf("entity %s missing cycle finding:\n%s", entity, report.Summary())
		}
	}
}

func TestValidate_StrictPromotesWarnings(t *testing.T) {
	src := `
customers:
  id: id
  name: blorp
`
	relaxed, err := (&Validator{}).Validate(context.Background(), mustParse(t, src))
	if err != nil {
		t.Fatalf("unknown type must only warn in normal mode:\n%s", relaxed.Summary())
	}
	if relaxed.WarningCount() != 1 {
		t.Fatalf("expected 1 warning, got %d", relaxed.WarningCount())
	}

	strict, err := (&Validator{Strict: true}).Validate(context.Background(), mustParse(t, src))
	if err == nil {
		t.Fatal("strict mode must fail on warnings")
	}
	if strict.ErrorCount() != 1 || strict.WarningCount() != 0 {
		t.Errorf("expected promotion to 1 error / 0 warnings, got %d / %d",
			strict.ErrorCount(), strict.WarningCount())
	}
}

func TestValidate_EmptySet(t *testing.T) {
	v := &Validator{}
	report, err := v.Validate(context.Background(), schema.NewSet())
	if err == nil {
		t.Fatal("expected empty set to fail")
	}
	if report.ErrorCount() != 1 {
		t.Errorf("expected a single error, got:\n%s", report.Summary())
	}
}

func TestValidate_EntityWithoutFields(t *testing.T) {
	set := schema.NewSet()
	set.Add(&schema.EntitySchema{Name: "ghost"})
	report, err := (&Validator{}).Validate(context.Background(), set)
	if err == nil {
		t.Fatal("expected field-less entity to fail")
	}
	if !containing(findingMessages(report, "ghost"), "declares no fields") {
		t.Errorf("missing no-fields error:\n%s", report.Summary())
	}
}

func TestValidate_DeterministicSummary(t *testing.T) {
	src := `
customers:
  id: id
  name: blorp
orders:
  __foreign_keys__:
    customer_id: [customer, id]
  id: id
  customer_id: foreign_key
  total:
    type: number
    constraints:
      min: 100
      max: 10
`
	first, _ := (&Validator{}).Validate(context.Background(), mustParse(t, src))
	for i := 0; i < 5; i++ {
		again, _ := (&Validator{}).Validate(context.Background(), mustParse(t, src))
		if again.Summary() != first.Summary() {
			t.Fatalf("summary changed between runs:\n%s\nvs\n%s", first.Summary(), again.Summary())
		}
	}
}

func TestValidate_NamingAdvisory(t *testing.T) {
	src := `
customers:
  id: id
orders:
  __foreign_keys__:
    buyer: [customers, id]
  id: id
  buyer: foreign_key
`
	report, err := (&Validator{}).Validate(context.Background(), mustParse(t, src))
	if err != nil {
		t.Fatalf("naming mismatch must stay a warning:\n%s", report.Summary())
	}
	if !containing(findingMessages(report, "orders"), "convention") {
		t.Errorf("expected naming warning, got:\n%s", report.Summary())
	}

	quiet, _ := (&Validator{DisableNaming: true}).Validate(context.Background(), mustParse(t, src))
	if quiet.WarningCount() != 0 {
		t.Errorf("naming check not disabled:\n%s", quiet.Summary())
	}
}

func TestValidate_DeepChainWarning(t *testing.T) {
	set := schema.NewSet()
	prev := ""
	for i := 0; i <= 12; i++ {
		name := "entity" + strings.Repeat("x", i) // unique, ordered names
		e := &schema.EntitySchema{
			Name:        name,
			Fields:      []schema.Field{{Name: "id", Spec: schema.FieldSpec{Type: schema.TypeID}}},
			ForeignKeys: make(map[string]schema.ForeignKeyRef),
		}
		if prev != "" {
			e.Fields = append(e.Fields, schema.Field{Name: "parent_id", Spec: schema.FieldSpec{Type: schema.TypeForeignKey}})
			e.ForeignKeys["parent_id"] = schema.ForeignKeyRef{TargetEntity: prev, TargetColumn: "id"}
			e.FKOrder = []string{"parent_id"}
		}
		set.Add(e)
		prev = name
	}

	report, err := (&Validator{}).Validate(context.Background(), set)
	if err != nil {
		t.Fatalf("deep chain must stay valid:\n%s", report.Summary())
	}
	if report.WarningCount() == 0 {
		t.Errorf("expected depth warning:\n%s", report.Summary())
	}
}

func TestBuildGraph_SkipsUnknownTargets(t *testing.T) {
	set := mustParse(t, `
orders:
  __foreign_keys__:
    customer_id: [nowhere, id]
  id: id
  customer_id: foreign_key
`)
	g := BuildGraph(set)
	if g.HasEdge("orders", "nowhere") {
		t.Error("unresolvable target must not create an edge")
	}
}
