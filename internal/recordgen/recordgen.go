// Package recordgen produces field values for synthetic rows. The generation
// coordinator owns ordering and referential integrity; generators here only
// decide what a single non-foreign-key value looks like.
package recordgen

import (
	"context"
	"errors"

	"github.com/fabrica/fabrica/internal/schema"
)

// Request carries everything a generator needs to produce one field value.
type Request struct {
	Entity *schema.EntitySchema
	Field  string
	Spec   schema.FieldSpec
	// Row holds the values generated so far for the current row.
	Row map[string]any
	// Index is the zero-based row index within the entity's batch.
	Index int
}

// Generator produces one field value. Implementations must be safe for
// concurrent use; the coordinator calls them from multiple goroutines.
type Generator interface {
	GenerateValue(ctx context.Context, req Request) (any, error)
}

// ErrForeignKeyField is returned when a generator is asked for a foreign key
// value; those are drawn from parent identifier domains, never generated.
var ErrForeignKeyField = errors.New("foreign key values are drawn from the parent domain, not generated")
