// Package generate materializes synthetic rows for a validated schema set in
// dependency order: parents first, level by level, so every foreign key value
// is drawn from an already-materialized identifier domain.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/fabrica/fabrica/internal/recordgen"
	"github.com/fabrica/fabrica/internal/schema"
	"github.com/fabrica/fabrica/internal/validate"
)

const (
	defaultRows           = 10
	defaultRowConcurrency = 4
	defaultMaxAttempts    = 3
	defaultRetryInterval  = 100 * time.Millisecond
	// nullChance is the probability a nullable field is left null.
	nullChance = 0.1
)

// Options tune a generation run.
type Options struct {
	// Rows maps entity name to row count. Entities not listed get
	// DefaultRows.
	Rows map[string]int
	// DefaultRows is the row count for unlisted entities. Zero means 10.
	DefaultRows int
	// RowConcurrency caps concurrent row generation within one entity.
	// Zero means 4; 1 makes a seeded run fully deterministic.
	RowConcurrency int
	// MaxAttempts is how often a failing row value is retried before the
	// run aborts. Zero means 3.
	MaxAttempts int
	// RetryInterval is the initial backoff between attempts.
	RetryInterval time.Duration
	// Seed seeds foreign-key draws and null decisions.
	Seed int64
	// Draw picks a foreign-key value from a parent domain. Nil means a
	// uniform draw.
	Draw DrawStrategy
	// Progress, when set, receives an event after every generated row.
	Progress func(Event)

	Logger *slog.Logger
}

// DrawStrategy picks one foreign-key value from a non-empty parent domain.
// The coordinator serializes calls, so implementations may use rng freely.
type DrawStrategy func(rng *rand.Rand, values []any) any

func uniformDraw(rng *rand.Rand, values []any) any {
	return values[rng.Intn(len(values))]
}

// Event reports generation progress for one entity.
type Event struct {
	Entity string
	Level  int
	Done   int
	Total  int
}

// Coordinator runs dependency-ordered generation over a schema set.
type Coordinator struct {
	gen  recordgen.Generator
	opts Options

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a coordinator that produces values with the given generator.
func New(gen recordgen.Generator, opts Options) *Coordinator {
	if opts.DefaultRows <= 0 {
		opts.DefaultRows = defaultRows
	}
	if opts.RowConcurrency <= 0 {
		opts.RowConcurrency = defaultRowConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	if opts.Draw == nil {
		opts.Draw = uniformDraw
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{
		gen:  gen,
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),
	}
}

// Run generates rows for every entity in the set. Entities on the same
// dependency level run concurrently; a level only starts once the previous
// one has fully materialized. A row failure aborts the run after in-flight
// rows drain; entities that already completed stay in the returned dataset,
// while the failing level's unfinished entities are discarded.
func (c *Coordinator) Run(ctx context.Context, set *schema.Set) (*Dataset, error) {
	if set == nil || set.Len() == 0 {
		return nil, fmt.Errorf("nothing to generate: schema set is empty")
	}

	order, err := validate.BuildGraph(set).TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("cannot order entities: %w", err)
	}
	levels := dependencyLevels(order, set)
	referenced := referencedColumns(set)

	ds := NewDataset()
	doms := newDomains()
	var dsMu sync.Mutex

	start := time.Now()
	for levelIdx, level := range levels {
		// Each level gets its own group; Wait is the barrier that keeps a
		// child level from starting before its parents are materialized.
		g, lvlCtx := errgroup.WithContext(ctx)
		for _, name := range level {
			e, _ := set.Get(name)
			g.Go(func() error {
				rows, err := c.generateEntity(lvlCtx, e, levelIdx, doms, referenced[name])
				if err != nil {
					return err
				}
				dsMu.Lock()
				ds.Append(name, rows...)
				dsMu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return ds, err
		}
	}

	c.opts.Logger.Info("generation complete",
		"entities", set.Len(), "rows", ds.TotalRows(), "elapsed", time.Since(start))
	return ds, nil
}

// generateEntity materializes all rows of one entity, appending referenced
// column values to the entity's identifier domains as each row lands.
func (c *Coordinator) generateEntity(ctx context.Context, e *schema.EntitySchema, level int, doms *domains, refCols []string) ([]Row, error) {
	total := c.rowsFor(e.Name)
	rows := make([]Row, total)

	c.opts.Logger.Debug("generating entity", "entity", e.Name, "rows", total, "level", level)

	var done atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.RowConcurrency)
	for i := range rows {
		g.Go(func() error {
			row, err := c.generateRow(ctx, e, doms, i)
			if err != nil {
				return err
			}
			rows[i] = row
			for _, col := range refCols {
				doms.appendValue(e.Name, col, row[col])
			}
			if c.opts.Progress != nil {
				c.opts.Progress(Event{Entity: e.Name, Level: level, Done: int(done.Add(1)), Total: total})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// generateRow builds one row, field by field in declaration order. Foreign
// keys are drawn from materialized domains; everything else goes through the
// value generator with bounded retry.
func (c *Coordinator) generateRow(ctx context.Context, e *schema.EntitySchema, doms *domains, idx int) (Row, error) {
	row := make(Row, len(e.Fields))

	for _, f := range e.Fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if ref, ok := e.ForeignKeyFor(f.Name); ok {
			v, err := c.drawForeignKey(e, f, ref, doms)
			if err != nil {
				return nil, &Error{Entity: e.Name, RowIndex: idx, Field: f.Name, Err: err}
			}
			row[f.Name] = v
			continue
		}

		if f.Spec.Constraints != nil && f.Spec.Constraints.Nullable && c.flip(nullChance) {
			row[f.Name] = nil
			continue
		}

		v, err := c.generateValue(ctx, e, f, row, idx)
		if err != nil {
			return nil, &Error{Entity: e.Name, RowIndex: idx, Field: f.Name, Err: err}
		}
		row[f.Name] = v
	}
	return row, nil
}

// drawForeignKey picks a parent value for one fk field. Self-references draw
// from the entity's own partially-built domain and fall back to null while it
// is still empty; anything else with an empty domain is a hard error, since
// level ordering should have materialized the parent already.
func (c *Coordinator) drawForeignKey(e *schema.EntitySchema, f schema.Field, ref schema.ForeignKeyRef, doms *domains) (any, error) {
	if ref.TargetEntity == e.Name && doms.size(ref.TargetEntity, ref.TargetColumn) == 0 {
		return nil, nil
	}
	vals, err := doms.values(ref.TargetEntity, ref.TargetColumn)
	if err != nil {
		return nil, fmt.Errorf("unmet dependency: %w", err)
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.opts.Draw(c.rng, vals), nil
}

// generateValue calls the generator with exponential backoff. The context
// cancels the retry loop as well as the in-flight attempt.
func (c *Coordinator) generateValue(ctx context.Context, e *schema.EntitySchema, f schema.Field, row Row, idx int) (any, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxAttempts-1)), ctx)

	return backoff.RetryWithData(func() (any, error) {
		return c.gen.GenerateValue(ctx, recordgen.Request{
			Entity: e,
			Field:  f.Name,
			Spec:   f.Spec,
			Row:    row,
			Index:  idx,
		})
	}, policy)
}

func (c *Coordinator) rowsFor(entity string) int {
	if n, ok := c.opts.Rows[entity]; ok && n > 0 {
		return n
	}
	return c.opts.DefaultRows
}

func (c *Coordinator) flip(p float64) bool {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Float64() < p
}

// dependencyLevels groups a topological order into levels: an entity's level
// is one past the deepest entity it references. Same-level entities share no
// dependency and can generate concurrently.
func dependencyLevels(order []string, set *schema.Set) [][]string {
	level := make(map[string]int, len(order))
	max := 0
	for _, name := range order {
		e, _ := set.Get(name)
		l := 0
		for _, field := range e.FKOrder {
			ref := e.ForeignKeys[field]
			if ref.TargetEntity == name {
				continue
			}
			if dl, ok := level[ref.TargetEntity]; ok && dl+1 > l {
				l = dl + 1
			}
		}
		level[name] = l
		if l > max {
			max = l
		}
	}

	out := make([][]string, max+1)
	for _, name := range order {
		out[level[name]] = append(out[level[name]], name)
	}
	return out
}

// referencedColumns maps each entity to the columns other entities (or the
// entity itself) reference, so only those values are kept as domains.
func referencedColumns(set *schema.Set) map[string][]string {
	seen := make(map[string]map[string]bool)
	for _, name := range set.Names() {
		e, _ := set.Get(name)
		for _, field := range e.FKOrder {
			ref := e.ForeignKeys[field]
			if seen[ref.TargetEntity] == nil {
				seen[ref.TargetEntity] = make(map[string]bool)
			}
			seen[ref.TargetEntity][ref.TargetColumn] = true
		}
	}

	out := make(map[string][]string, len(seen))
	for _, name := range set.Names() {
		target, ok := set.Get(name)
		if !ok || seen[name] == nil {
			continue
		}
		// Declaration order keeps the slice deterministic.
		for _, f := range target.Fields {
			if seen[name][f.Name] {
				out[name] = append(out[name], f.Name)
			}
		}
	}
	return out
}

// Error reports a generation failure at a specific entity, row and field.
type Error struct {
	Entity   string
	RowIndex int
	Field    string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("generating %s row %d, field %q: %v", e.Entity, e.RowIndex, e.Field, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
