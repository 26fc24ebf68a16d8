package schema

// FieldType is the semantic type tag of a field.
type FieldType string

const (
	TypeInteger    FieldType = "integer"
	TypeNumber     FieldType = "number"
	TypeText       FieldType = "text"
	TypeBoolean    FieldType = "boolean"
	TypeDate       FieldType = "date"
	TypeDateTime   FieldType = "datetime"
	TypeTime       FieldType = "time"
	TypeEmail      FieldType = "email"
	TypePhone      FieldType = "phone"
	TypeURL        FieldType = "url"
	TypeForeignKey FieldType = "foreign_key"
	TypeID         FieldType = "id"
	TypeUUID       FieldType = "uuid"
	TypeOther      FieldType = "other"
)

// typeAliases maps accepted tag spellings to their canonical type.
var typeAliases = map[string]FieldType{
	"integer":     TypeInteger,
	"int":         TypeInteger,
	"number":      TypeNumber,
	"float":       TypeNumber,
	"decimal":     TypeNumber,
	"text":        TypeText,
	"string":      TypeText,
	"boolean":     TypeBoolean,
	"bool":        TypeBoolean,
	"date":        TypeDate,
	"datetime":    TypeDateTime,
	"time":        TypeTime,
	"email":       TypeEmail,
	"phone":       TypePhone,
	"url":         TypeURL,
	"foreign_key": TypeForeignKey,
	"id":          TypeID,
	"uuid":        TypeUUID,
}

// NormalizeType resolves a raw type tag to its canonical FieldType.
// Unknown tags return (TypeOther, false); generation falls back to text
// for those, and validation reports a warning.
func NormalizeType(tag string) (FieldType, bool) {
	if t, ok := typeAliases[tag]; ok {
		return t, true
	}
	return TypeOther, false
}

// ConstraintSet holds the optional generation constraints of a field.
type ConstraintSet struct {
	Min       *float64 `yaml:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty"`
	MinLength *int     `yaml:"min_length,omitempty"`
	MaxLength *int     `yaml:"max_length,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty"`
	Nullable  bool     `yaml:"nullable,omitempty"`
	Unique    bool     `yaml:"unique,omitempty"`
}

// FieldSpec describes a single field of an entity.
type FieldSpec struct {
	Type        FieldType      `yaml:"type"`
	RawType     string         `yaml:"-"` // tag as authored, kept for diagnostics
	Constraints *ConstraintSet `yaml:"constraints,omitempty"`
}

// Field pairs a field name with its spec, preserving declaration order.
type Field struct {
	Name string
	Spec FieldSpec
}

// ForeignKeyRef names the entity and column a foreign key draws its values
// from. Declared once at authoring time, immutable thereafter.
type ForeignKeyRef struct {
	TargetEntity string `yaml:"entity"`
	TargetColumn string `yaml:"column"`
}

// EntitySchema is one named table-to-be-synthesized.
type EntitySchema struct {
	Name        string
	Fields      []Field
	ForeignKeys map[string]ForeignKeyRef
	FKOrder     []string // fk field names in declaration order

	// Template metadata, set when the entity renders into a document.
	TemplateSource string
	InputKind      string
	OutputKind     string
	Description    string
}

// Field returns the spec for the named field.
func (e *EntitySchema) Field(name string) (FieldSpec, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Spec, true
		}
	}
	return FieldSpec{}, false
}

// HasField reports whether the entity declares the named field.
func (e *EntitySchema) HasField(name string) bool {
	_, ok := e.Field(name)
	return ok
}

// FieldNames returns the declared field names in order.
func (e *EntitySchema) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// IdentifierField returns the name of the field whose generated values form
// this entity's identifier domain: the first id/uuid-typed field, or a field
// literally named "id", or "" when the entity has no identifier.
func (e *EntitySchema) IdentifierField() string {
	for _, f := range e.Fields {
		if f.Spec.Type == TypeID || f.Spec.Type == TypeUUID {
			return f.Name
		}
	}
	for _, f := range e.Fields {
		if f.Name == "id" {
			return f.Name
		}
	}
	return ""
}

// ForeignKeyFor returns the fk declaration for the named field, if any.
func (e *EntitySchema) ForeignKeyFor(field string) (ForeignKeyRef, bool) {
	ref, ok := e.ForeignKeys[field]
	return ref, ok
}

// Set is an ordered collection of entity schemas keyed by name.
// Declaration order is preserved and drives deterministic ordering in
// validation reports and topological tie-breaking.
type Set struct {
	entities map[string]*EntitySchema
	order    []string
}

// NewSet creates an empty schema set.
func NewSet() *Set {
	return &Set{entities: make(map[string]*EntitySchema)}
}

// Add appends an entity to the set. Re-adding a name replaces the entity but
// keeps its original position.
func (s *Set) Add(e *EntitySchema) {
	if _, ok := s.entities[e.Name]; !ok {
		s.order = append(s.order, e.Name)
	}
	s.entities[e.Name] = e
}

// Get returns the named entity schema.
func (s *Set) Get(name string) (*EntitySchema, bool) {
	e, ok := s.entities[name]
	return e, ok
}

// Names returns entity names in declaration order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of entities in the set.
func (s *Set) Len() int {
	return len(s.order)
}
