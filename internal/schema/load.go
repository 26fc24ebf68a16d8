package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Reserved metadata keys accepted on an entity mapping. Everything else is a
// field declaration.
const (
	KeyForeignKeys    = "__foreign_keys__"
	KeyTemplateSource = "__template_source__"
	KeyInputKind      = "__input_file_type__"
	KeyOutputKind     = "__output_file_type__"
	KeyDescription    = "__description__"
)

// LoadYAML reads a schema set from a YAML file.
func LoadYAML(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	set, err := ParseSet(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return set, nil
}

// ParseSet parses a schema set from YAML bytes. Entity and field declaration
// order is preserved, and the duck-typed foreign key shapes (two-element
// sequence or entity/column mapping) are normalized here, once, into
// ForeignKeyRef values.
func ParseSet(data []byte) (*Set, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return NewSet(), nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("schema document must be a mapping of entity name to schema")
	}

	set := NewSet()
	for i := 0; i < len(doc.Content); i += 2 {
		name := doc.Content[i].Value
		entity, err := parseEntity(name, doc.Content[i+1])
		if err != nil {
			return nil, err
		}
		set.Add(entity)
	}
	return set, nil
}

func parseEntity(name string, node *yaml.Node) (*EntitySchema, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("entity %q: schema must be a mapping", name)
	}

	e := &EntitySchema{
		Name:        name,
		ForeignKeys: make(map[string]ForeignKeyRef),
	}

	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]

		switch key {
		case KeyForeignKeys:
			if err := parseForeignKeys(e, val); err != nil {
				return nil, fmt.Errorf("entity %q: %w", name, err)
			}
		case KeyTemplateSource:
			e.TemplateSource = val.Value
		case KeyInputKind:
			e.InputKind = val.Value
		case KeyOutputKind:
			e.OutputKind = val.Value
		case KeyDescription:
			e.Description = val.Value
		default:
			spec, err := parseFieldSpec(val)
			if err != nil {
				return nil, fmt.Errorf("entity %q field %q: %w", name, key, err)
			}
			e.Fields = append(e.Fields, Field{Name: key, Spec: spec})
		}
	}
	return e, nil
}

func parseFieldSpec(node *yaml.Node) (FieldSpec, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		t, _ := NormalizeType(node.Value)
		return FieldSpec{Type: t, RawType: node.Value}, nil

	case yaml.MappingNode:
		var def struct {
			Type        string         `yaml:"type"`
			Constraints *ConstraintSet `yaml:"constraints"`
		}
		if err := node.Decode(&def); err != nil {
			return FieldSpec{}, fmt.Errorf("invalid field definition: %w", err)
		}
		if def.Type == "" {
			return FieldSpec{}, fmt.Errorf("field definition missing type")
		}
		t, _ := NormalizeType(def.Type)
		return FieldSpec{Type: t, RawType: def.Type, Constraints: def.Constraints}, nil

	default:
		return FieldSpec{}, fmt.Errorf("field must be a type tag or a type/constraints mapping")
	}
}

func parseForeignKeys(e *EntitySchema, node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%s must be a mapping of field to reference", KeyForeignKeys)
	}
	for i := 0; i < len(node.Content); i += 2 {
		field := node.Content[i].Value
		ref, err := parseForeignKeyRef(node.Content[i+1])
		if err != nil {
			return fmt.Errorf("foreign key %q: %w", field, err)
		}
		if _, dup := e.ForeignKeys[field]; !dup {
			e.FKOrder = append(e.FKOrder, field)
		}
		e.ForeignKeys[field] = ref
	}
	return nil
}

// parseForeignKeyRef accepts the two reference shapes authors use:
// a two-element sequence [entity, column] or a mapping with entity/column
// keys (schema/field and target_entity/target_column are accepted aliases).
func parseForeignKeyRef(node *yaml.Node) (ForeignKeyRef, error) {
	switch node.Kind {
	case yaml.SequenceNode:
		if len(node.Content) != 2 {
			return ForeignKeyRef{}, fmt.Errorf("expected [entity, column], got %d elements", len(node.Content))
		}
		ref := ForeignKeyRef{
			TargetEntity: node.Content[0].Value,
			TargetColumn: node.Content[1].Value,
		}
		if ref.TargetEntity == "" || ref.TargetColumn == "" {
			return ForeignKeyRef{}, fmt.Errorf("entity and column must be non-empty")
		}
		return ref, nil

	case yaml.MappingNode:
		fields := make(map[string]string, 2)
		for i := 0; i < len(node.Content); i += 2 {
			fields[node.Content[i].Value] = node.Content[i+1].Value
		}
		ref := ForeignKeyRef{
			TargetEntity: firstNonEmpty(fields["entity"], fields["schema"], fields["target_entity"]),
			TargetColumn: firstNonEmpty(fields["column"], fields["field"], fields["target_column"]),
		}
		if ref.TargetEntity == "" || ref.TargetColumn == "" {
			return ForeignKeyRef{}, fmt.Errorf("mapping must name an entity and a column")
		}
		return ref, nil

	default:
		return ForeignKeyRef{}, fmt.Errorf("reference must be [entity, column] or an entity/column mapping")
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
