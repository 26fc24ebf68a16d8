// Package importer builds entity schemas by introspecting an existing
// database, so generation can mirror a real application's shape.
package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabrica/fabrica/internal/config"
	"github.com/fabrica/fabrica/internal/schema"
)

// Postgres introspects a PostgreSQL schema into an entity schema set.
type Postgres struct {
	cfg      config.PostgresConfig
	pool     *pgxpool.Pool
	pgSchema string
}

// NewPostgres creates an importer for the given connection.
func NewPostgres(cfg config.PostgresConfig) *Postgres {
	s := cfg.Schema
	if s == "" {
		s = "public"
	}
	return &Postgres{cfg: cfg, pgSchema: s}
}

// Connect opens a single-connection pool; introspection is all small
// catalog queries.
func (p *Postgres) Connect(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(p.cfg.DSN)
	if err != nil {
		return fmt.Errorf("parsing connection string: %w", err)
	}
	poolCfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("pinging PostgreSQL: %w", err)
	}
	p.pool = pool
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}

// Import reads tables, columns and foreign keys and assembles the schema
// set, tables in name order.
func (p *Postgres) Import(ctx context.Context) (*schema.Set, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("not connected; call Connect first")
	}

	tables, err := p.tableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("schema %q has no tables", p.pgSchema)
	}

	set := schema.NewSet()
	entities := make(map[string]*schema.EntitySchema, len(tables))
	for _, name := range tables {
		e := &schema.EntitySchema{Name: name, ForeignKeys: make(map[string]schema.ForeignKeyRef)}
		entities[name] = e
		set.Add(e)
	}

	if err := p.importColumns(ctx, entities); err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	if err := p.importPrimaryKeys(ctx, entities); err != nil {
		return nil, fmt.Errorf("reading primary keys: %w", err)
	}
	if err := p.importForeignKeys(ctx, entities); err != nil {
		return nil, fmt.Errorf("reading foreign keys: %w", err)
	}
	return set, nil
}

func (p *Postgres) tableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT c.relname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relkind = 'r'
		ORDER BY c.relname`

	rows, err := p.pool.Query(ctx, query, p.pgSchema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (p *Postgres) importColumns(ctx context.Context, entities map[string]*schema.EntitySchema) error {
	query := `
		SELECT
			table_name,
			column_name,
			data_type,
			is_nullable,
			character_maximum_length,
			numeric_precision
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position`

	rows, err := p.pool.Query(ctx, query, p.pgSchema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tableName, colName, dataType, nullable string
			maxLen, precision                      *int
		)
		if err := rows.Scan(&tableName, &colName, &dataType, &nullable, &maxLen, &precision); err != nil {
			return err
		}
		e, ok := entities[tableName]
		if !ok {
			continue
		}
		e.Fields = append(e.Fields, schema.Field{
			Name: colName,
			Spec: fieldSpecFor(colName, dataType, nullable == "YES", maxLen),
		})
	}
	return rows.Err()
}

func (p *Postgres) importPrimaryKeys(ctx context.Context, entities map[string]*schema.EntitySchema) error {
	query := `
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1
		ORDER BY tc.table_name, kcu.ordinal_position`

	rows, err := p.pool.Query(ctx, query, p.pgSchema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName string
		if err := rows.Scan(&tableName, &colName); err != nil {
			return err
		}
		e, ok := entities[tableName]
		if !ok {
			continue
		}
		// Single-column pks become the identifier field.
		for i := range e.Fields {
			if e.Fields[i].Name == colName && e.Fields[i].Spec.Type != schema.TypeUUID {
				e.Fields[i].Spec.Type = schema.TypeID
				e.Fields[i].Spec.RawType = string(schema.TypeID)
			}
		}
	}
	return rows.Err()
}

func (p *Postgres) importForeignKeys(ctx context.Context, entities map[string]*schema.EntitySchema) error {
	query := `
		SELECT
			tc.table_name,
			kcu.column_name,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		  AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		ORDER BY tc.table_name, kcu.ordinal_position`

	rows, err := p.pool.Query(ctx, query, p.pgSchema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName, refTable, refColumn string
		if err := rows.Scan(&tableName, &colName, &refTable, &refColumn); err != nil {
			return err
		}
		e, ok := entities[tableName]
		if !ok {
			continue
		}
		if _, dup := e.ForeignKeys[colName]; !dup {
			e.FKOrder = append(e.FKOrder, colName)
		}
		e.ForeignKeys[colName] = schema.ForeignKeyRef{TargetEntity: refTable, TargetColumn: refColumn}
		for i := range e.Fields {
			if e.Fields[i].Name == colName {
				e.Fields[i].Spec.Type = schema.TypeForeignKey
				e.Fields[i].Spec.RawType = string(schema.TypeForeignKey)
			}
		}
	}
	return rows.Err()
}

// fieldSpecFor maps a Postgres column to a field spec. Name hints beat the
// raw data type for formats Postgres stores as plain text, like emails.
func fieldSpecFor(name, dataType string, nullable bool, maxLen *int) schema.FieldSpec {
	t := typeFor(name, dataType)

	var c *schema.ConstraintSet
	if nullable {
		c = &schema.ConstraintSet{Nullable: true}
	}
	if maxLen != nil && *maxLen > 0 && t == schema.TypeText {
		if c == nil {
			c = &schema.ConstraintSet{}
		}
		c.MaxLength = maxLen
	}
	return schema.FieldSpec{Type: t, RawType: string(t), Constraints: c}
}

func typeFor(name, dataType string) schema.FieldType {
	switch strings.ToLower(dataType) {
	case "smallint", "integer", "bigint", "smallserial", "serial", "bigserial":
		return schema.TypeInteger
	case "real", "double precision", "numeric", "decimal", "money":
		return schema.TypeNumber
	case "boolean":
		return schema.TypeBoolean
	case "date":
		return schema.TypeDate
	case "timestamp without time zone", "timestamp with time zone":
		return schema.TypeDateTime
	case "time without time zone", "time with time zone":
		return schema.TypeTime
	case "uuid":
		return schema.TypeUUID
	}

	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "email"):
		return schema.TypeEmail
	case strings.Contains(lower, "phone"):
		return schema.TypePhone
	case lower == "url" || strings.HasSuffix(lower, "_url"):
		return schema.TypeURL
	}
	return schema.TypeText
}
