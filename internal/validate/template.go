package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"text/template"

	"github.com/fabrica/fabrica/internal/schema"
)

// placeholderPattern matches the double-brace placeholders a template binds
// schema fields with: {{ field_name }}.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// TemplateChecker validates template-backed entities: document-kind metadata
// must be present, the template file must be readable and syntactically
// parseable, every placeholder must resolve to a declared field, and every
// declared field should appear in the template.
type TemplateChecker struct {
	// BaseDir resolves relative template paths; usually the directory the
	// schema file was loaded from.
	BaseDir string
}

// CheckEntity validates the template binding of one entity. Entities without
// a template source are skipped entirely.
func (c TemplateChecker) CheckEntity(e *schema.EntitySchema) []Finding {
	if e.TemplateSource == "" {
		return nil
	}
	var out []Finding

	if e.InputKind == "" {
		out = append(out, Finding{
			Severity: SeverityError,
			Code:     CodePlaceholder,
			Message:  fmt.Sprintf("template %q declared without %s", e.TemplateSource, schema.KeyInputKind),
		})
	}
	if e.OutputKind == "" {
		out = append(out, Finding{
			Severity: SeverityError,
			Code:     CodePlaceholder,
			Message:  fmt.Sprintf("template %q declared without %s", e.TemplateSource, schema.KeyOutputKind),
		})
	}

	path := e.TemplateSource
	if !filepath.IsAbs(path) && c.BaseDir != "" {
		path = filepath.Join(c.BaseDir, path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		out = append(out, Finding{
			Severity: SeverityError,
			Code:     CodePlaceholder,
			Message:  fmt.Sprintf("template file not readable: %v", err),
		})
		return out
	}

	placeholders, order := extractPlaceholders(content)

	if len(order) == 0 {
		out = append(out, Finding{
			Severity: SeverityWarning,
			Code:     CodePlaceholder,
			Message:  fmt.Sprintf("template %q contains no placeholders", e.TemplateSource),
		})
	}

	for _, name := range order {
		if !e.HasField(name) {
			out = append(out, Finding{
				Severity: SeverityError,
				Code:     CodePlaceholder,
				Message:  fmt.Sprintf("template references undefined field %q", name),
			})
		}
	}
	for _, f := range e.Fields {
		if !placeholders[f.Name] {
			out = append(out, Finding{
				Severity: SeverityWarning,
				Code:     CodePlaceholder,
				Message:  fmt.Sprintf("field %q is never referenced by template %q", f.Name, e.TemplateSource),
			})
		}
	}

	if err := parseCheck(e.Name, content, order); err != nil {
		out = append(out, Finding{
			Severity: SeverityError,
			Code:     CodePlaceholder,
			Message:  fmt.Sprintf("template %q has invalid syntax: %v", e.TemplateSource, err),
		})
	}

	return out
}

// extractPlaceholders returns the set of placeholder names in the template
// and their first-appearance order.
func extractPlaceholders(content []byte) (map[string]bool, []string) {
	seen := make(map[string]bool)
	var order []string
	for _, m := range placeholderPattern.FindAllSubmatch(content, -1) {
		name := string(m[1])
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	return seen, order
}

// parseCheck runs the template through the engine's parser to catch
// structural mistakes the placeholder regex cannot see, such as an unclosed
// action. Known placeholders are registered as no-op functions so that bare
// identifiers parse.
func parseCheck(name string, content []byte, placeholders []string) error {
	funcs := make(template.FuncMap, len(placeholders))
	for _, p := range placeholders {
		funcs[p] = func() string { return "" }
	}
	_, err := template.New(name).Funcs(funcs).Parse(string(content))
	return err
}
