package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fabrica/fabrica/internal/generate"
	"github.com/fabrica/fabrica/internal/schema"
)

// CSV writes one <entity>.csv file per entity into Dir, header first, fields
// in declaration order.
type CSV struct {
	Dir string
}

func (s CSV) Write(ctx context.Context, set *schema.Set, ds *generate.Dataset) error {
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

func (s CSV) writeEntity(e *schema.EntitySchema, rows []generate.Row) error {
	f, err := os.Create(filepath.Join(s.Dir, e.Name+".csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	fields := e.FieldNames()
	if err := w.Write(fields); err != nil {
		return err
	}

	record := make([]string, len(fields))
	for _, row := range rows {
		for i, field := range fields {
			record[i] = formatValue(row[field])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
