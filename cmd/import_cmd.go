package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabrica/fabrica/internal/config"
	"github.com/fabrica/fabrica/internal/importer"
)

var (
	importDSN      string
	importPgSchema string
	importOut      string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import schemas from a PostgreSQL database",
	Long: `Introspect a live PostgreSQL database and write its tables, columns,
primary keys and foreign keys as a Fabrica schema file. The result is a
starting point; review the generated types and constraints before
generating.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		pgCfg := cfg.Import.Postgres
		if importDSN != "" {
			pgCfg.DSN = importDSN
		}
		if importPgSchema != "" {
			pgCfg.Schema = importPgSchema
		}
		if pgCfg.DSN == "" {
			return fmt.Errorf("no database configured; pass --dsn or set import.postgres.dsn")
		}
		if resolved, err := config.ResolveValue(pgCfg.DSN); err == nil {
			pgCfg.DSN = resolved
		} else {
			return fmt.Errorf("resolving dsn: %w", err)
		}

		imp := importer.NewPostgres(pgCfg)
		if err := imp.Connect(cmd.Context()); err != nil {
			return err
		}
		defer imp.Close()

		set, err := imp.Import(cmd.Context())
		if err != nil {
			return fmt.Errorf("importing schemas: %w", err)
		}
		if set.Len() == 0 {
			return fmt.Errorf("no tables found in schema %q", pgCfg.Schema)
		}

		if err := set.WriteYAML(importOut); err != nil {
			return fmt.Errorf("writing schemas: %w", err)
		}

		fmt.Printf("Imported %d entities to %s\n", set.Len(), importOut)
		fmt.Println(set.Summary())
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importDSN, "dsn", "", "PostgreSQL connection string")
	importCmd.Flags().StringVar(&importPgSchema, "schema", "", "database schema to introspect (default public)")
	importCmd.Flags().StringVarP(&importOut, "out", "o", "schemas.yaml", "output schema file")
	rootCmd.AddCommand(importCmd)
}
