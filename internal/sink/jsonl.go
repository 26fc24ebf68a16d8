package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fabrica/fabrica/internal/generate"
	"github.com/fabrica/fabrica/internal/schema"
)

// JSONL writes one <entity>.jsonl file per entity into Dir, one JSON object
// per row. Keys keep field declaration order, which encoding/json's map
// handling would not.
type JSONL struct {
	Dir string
}

func (s JSONL) Write(ctx context.Context, set *schema.Set, ds *generate.Dataset) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, name := range ds.Entities() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, ok := set.Get(name)
		if !ok {
			return fmt.Errorf("dataset contains unknown entity %q", name)
		}
		if err := s.writeEntity(e, ds.Rows(name)); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

func (s JSONL) writeEntity(e *schema.EntitySchema, rows []generate.Row) error {
	f, err := os.Create(filepath.Join(s.Dir, e.Name+".jsonl"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fields := e.FieldNames()
	for _, row := range rows {
		line, err := encodeRow(fields, row)
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func encodeRow(fields []string, row generate.Row) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(field)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		val, err := json.Marshal(row[field])
		if err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", field, err)
		}
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
