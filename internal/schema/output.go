package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteYAML writes the schema set to a YAML file at the given path, in the
// same shape LoadYAML reads.
func (s *Set) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := s.ToYAML()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ToYAML returns the schema set as a YAML byte slice, entities and fields in
// declaration order.
func (s *Set) ToYAML() ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range s.order {
		e := s.entities[name]
		doc.Content = append(doc.Content,
			scalarNode(name),
			entityNode(e),
		)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema set: %w", err)
	}
	return data, nil
}

func entityNode(e *EntitySchema) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}

	if len(e.ForeignKeys) > 0 {
		fks := &yaml.Node{Kind: yaml.MappingNode}
		for _, field := range e.FKOrder {
			ref := e.ForeignKeys[field]
			seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
			seq.Content = append(seq.Content, scalarNode(ref.TargetEntity), scalarNode(ref.TargetColumn))
			fks.Content = append(fks.Content, scalarNode(field), seq)
		}
		n.Content = append(n.Content, scalarNode(KeyForeignKeys), fks)
	}

	for _, f := range e.Fields {
		n.Content = append(n.Content, scalarNode(f.Name), fieldNode(f.Spec))
	}

	if e.TemplateSource != "" {
		n.Content = append(n.Content, scalarNode(KeyTemplateSource), scalarNode(e.TemplateSource))
	}
	if e.InputKind != "" {
		n.Content = append(n.Content, scalarNode(KeyInputKind), scalarNode(e.InputKind))
	}
	if e.OutputKind != "" {
		n.Content = append(n.Content, scalarNode(KeyOutputKind), scalarNode(e.OutputKind))
	}
	if e.Description != "" {
		n.Content = append(n.Content, scalarNode(KeyDescription), scalarNode(e.Description))
	}
	return n
}

func fieldNode(spec FieldSpec) *yaml.Node {
	tag := spec.RawType
	if tag == "" {
		tag = string(spec.Type)
	}
	if spec.Constraints == nil {
		return scalarNode(tag)
	}

	n := &yaml.Node{Kind: yaml.MappingNode}
	n.Content = append(n.Content, scalarNode("type"), scalarNode(tag))

	var cn yaml.Node
	if err := cn.Encode(spec.Constraints); err == nil {
		n.Content = append(n.Content, scalarNode("constraints"), &cn)
	}
	return n
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

// Summary returns a human-readable summary of the schema set.
func (s *Set) Summary() string {
	var fields, fks, templated int
	for _, name := range s.order {
		e := s.entities[name]
		fields += len(e.Fields)
		fks += len(e.ForeignKeys)
		if e.TemplateSource != "" {
			templated++
		}
	}
	return fmt.Sprintf("%d entities, %d fields, %d foreign keys, %d templated",
		s.Len(), fields, fks, templated)
}
