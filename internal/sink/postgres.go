package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabrica/fabrica/internal/generate"
	"github.com/fabrica/fabrica/internal/schema"
)

// Postgres inserts generated rows into a Postgres database, one table per
// entity, in dependency order so fk constraints hold during the load.
type Postgres struct {
	DSN string
	// Schema is the target pg schema, default public.
	Schema string
	// CreateTables creates a table per entity before inserting.
	CreateTables bool

	pool *pgxpool.Pool
}

// Connect opens the connection pool.
func (s *Postgres) Connect(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(s.DSN)
	if err != nil {
		return fmt.Errorf("parsing connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("pinging PostgreSQL: %w", err)
	}
	s.pool = pool
	return nil
}

// Close releases the connection pool.
func (s *Postgres) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

func (s *Postgres) Write(ctx context.Context, set *schema.Set, ds *generate.Dataset) error {
	if s.pool == nil {
		return fmt.Errorf("not connected; call Connect first")
	}

	for _, name := range ds.Entities() {
		e, ok := set.Get(name)
		if !ok {
			return fmt.Errorf("dataset contains unknown entity %q", name)
		}

		if s.CreateTables {
			if _, err := s.pool.Exec(ctx, createTableSQL(s.schemaName(), e)); err != nil {
				return fmt.Errorf("creating table %s: %w", name, err)
			}
		}

		if err := s.insertRows(ctx, e, ds.Rows(name)); err != nil {
			return fmt.Errorf("inserting into %s: %w", name, err)
		}
	}
	return nil
}

func (s *Postgres) insertRows(ctx context.Context, e *schema.EntitySchema, rows []generate.Row) error {
	if len(rows) == 0 {
		return nil
	}

	sql := insertSQL(s.schemaName(), e)
	fields := e.FieldNames()

	batch := &pgx.Batch{}
	for _, row := range rows {
		args := make([]any, len(fields))
		for i, field := range fields {
			args[i] = row[field]
		}
		batch.Queue(sql, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return br.Close()
}

func (s *Postgres) schemaName() string {
	if s.Schema == "" {
		return "public"
	}
	return s.Schema
}

// insertSQL builds the parameterized insert for one entity.
func insertSQL(pgSchema string, e *schema.EntitySchema) string {
	fields := e.FieldNames()
	cols := make([]string, len(fields))
	params := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quoteIdent(f)
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s)",
		quoteIdent(pgSchema), quoteIdent(e.Name),
		strings.Join(cols, ", "), strings.Join(params, ", "))
}

// createTableSQL builds a create-if-absent DDL statement for one entity.
// Referenced identifier columns get a unique constraint so fk constraints
// can point at them.
func createTableSQL(pgSchema string, e *schema.EntitySchema) string {
	var cols []string
	idField := e.IdentifierField()
	for _, f := range e.Fields {
		col := quoteIdent(f.Name) + " " + pgType(f.Spec.Type)
		if f.Name == idField {
			col += " PRIMARY KEY"
		}
		cols = append(cols, col)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s (%s)",
		quoteIdent(pgSchema), quoteIdent(e.Name), strings.Join(cols, ", "))
}

func pgType(t schema.FieldType) string {
	switch t {
	case schema.TypeInteger:
		return "bigint"
	case schema.TypeNumber:
		return "double precision"
	case schema.TypeBoolean:
		return "boolean"
	case schema.TypeDate:
		return "date"
	case schema.TypeDateTime:
		return "timestamptz"
	case schema.TypeTime:
		return "time"
	case schema.TypeUUID:
		return "uuid"
	default:
		return "text"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
