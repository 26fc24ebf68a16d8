// Package sink persists generated datasets: flat files for quick inspection,
// Postgres and MongoDB for loading straight into a database. Entities are
// always written in generation order, so database sinks never insert a child
// row before its parent.
package sink

import (
	"context"
	"fmt"

	"github.com/fabrica/fabrica/internal/generate"
	"github.com/fabrica/fabrica/internal/schema"
)

// Sink writes a generated dataset to a destination.
type Sink interface {
	Write(ctx context.Context, set *schema.Set, ds *generate.Dataset) error
}

// formatValue renders a generated value for text formats. Nulls become the
// empty string.
func formatValue(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}
