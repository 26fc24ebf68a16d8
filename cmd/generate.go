package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fabrica/fabrica/internal/config"
	"github.com/fabrica/fabrica/internal/generate"
	"github.com/fabrica/fabrica/internal/recordgen"
	"github.com/fabrica/fabrica/internal/schema"
	"github.com/fabrica/fabrica/internal/sink"
	"github.com/fabrica/fabrica/internal/tui"
	"github.com/fabrica/fabrica/internal/validate"
)

var (
	genRows           map[string]int
	genDefaultRows    int
	genSeed           int64
	genStrict         bool
	genSkipValidation bool
	genFormat         string
	genOutDir         string
	genPlain          bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <schemas.yaml>",
	Short: "Generate a synthetic dataset",
	Long: `Validate the schemas, then generate rows for every entity in
dependency order and write them to the configured output.

Entities at the same dependency depth are generated concurrently;
foreign-key values are always drawn from rows generated earlier.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := setupLogger(cfg)
		if err != nil {
			return fmt.Errorf("setting up logging: %w", err)
		}

		set, err := schema.LoadYAML(args[0])
		if err != nil {
			return fmt.Errorf("loading schemas: %w", err)
		}

		if !genSkipValidation {
			v := &validate.Validator{
				Strict:          genStrict || cfg.Generation.Strict,
				TemplateBaseDir: filepath.Dir(args[0]),
				Logger:          logger,
			}
			report, err := v.Validate(cmd.Context(), set)
			if err != nil {
				fmt.Println(report.Summary())
				cmd.SilenceErrors = true
				return err
			}
			if report.WarningCount() > 0 {
				fmt.Println(report.Summary())
			}
		}

		seed := genSeed
		if seed == 0 {
			seed = cfg.Generation.Seed
		}
		if seed == 0 {
			seed = rand.Int63()
		}

		out, err := buildSink(cfg)
		if err != nil {
			return err
		}
		// Connect database sinks up front so a bad DSN fails before
		// generation starts.
		switch s := out.(type) {
		case *sink.Postgres:
			if err := s.Connect(cmd.Context()); err != nil {
				return err
			}
			defer s.Close()
		case *sink.Mongo:
			if err := s.Connect(cmd.Context()); err != nil {
				return err
			}
			defer s.Close(context.Background())
		}

		gen := buildGenerator(cfg, seed)
		opts := generate.Options{
			Rows:           genRows,
			DefaultRows:    firstPositive(genDefaultRows, cfg.Generation.DefaultRows),
			RowConcurrency: cfg.Generation.RowConcurrency,
			MaxAttempts:    cfg.Generation.MaxAttempts,
			Seed:           seed,
			Logger:         logger,
		}

		var ds *generate.Dataset
		if genPlain {
			ds, err = runPlain(cmd.Context(), gen, opts, set)
		} else {
			ds, err = runWithTUI(cmd.Context(), gen, opts, set)
		}
		if err != nil {
			return err
		}

		if err := out.Write(cmd.Context(), set, ds); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}

		fmt.Printf("Generated %d rows across %d entities (seed %d)\n",
			ds.TotalRows(), len(ds.Entities()), seed)
		return nil
	},
}

// runPlain runs the coordinator with line-based progress output.
func runPlain(ctx context.Context, gen recordgen.Generator, opts generate.Options, set *schema.Set) (*generate.Dataset, error) {
	opts.Progress = func(ev generate.Event) {
		if ev.Done == ev.Total {
			fmt.Printf("  %-24s %d rows\n", ev.Entity, ev.Total)
		}
	}
	return generate.New(gen, opts).Run(ctx, set)
}

// runWithTUI runs the coordinator behind the progress display. Quitting the
// display cancels the run.
func runWithTUI(ctx context.Context, gen recordgen.Generator, opts generate.Options, set *schema.Set) (*generate.Dataset, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.NewModel())
	opts.Progress = func(ev generate.Event) {
		p.Send(tui.ProgressMsg(ev))
	}

	type result struct {
		ds  *generate.Dataset
		err error
	}
	done := make(chan result, 1)
	go func() {
		ds, err := generate.New(gen, opts).Run(ctx, set)
		total := 0
		if ds != nil {
			total = ds.TotalRows()
		}
		done <- result{ds, err}
		p.Send(tui.DoneMsg{Err: err, TotalRows: total})
	}()

	finalModel, err := p.Run()
	if err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("progress display: %w", err)
	}
	if m, ok := finalModel.(tui.Model); ok && m.Cancelled() {
		cancel()
		<-done
		return nil, fmt.Errorf("generation cancelled")
	}

	res := <-done
	return res.ds, res.err
}

// buildGenerator returns the remote generator when a model endpoint is
// configured, the seeded local generator otherwise.
func buildGenerator(cfg *config.Config, seed int64) recordgen.Generator {
	if cfg.Model.Endpoint != "" {
		return &recordgen.Remote{
			Endpoint: cfg.Model.Endpoint,
			APIKey:   cfg.Model.APIKey,
			Model:    cfg.Model.Model,
		}
	}
	return recordgen.NewLocal(seed)
}

func buildSink(cfg *config.Config) (sink.Sink, error) {
	format := genFormat
	if format == "" {
		format = cfg.Output.Format
	}
	dir := genOutDir
	if dir == "" {
		dir = cfg.Output.Directory
	}

	switch format {
	case "", "csv":
		return sink.CSV{Dir: dir}, nil
	case "jsonl":
		return sink.JSONL{Dir: dir}, nil
	case "postgres":
		if cfg.Output.Postgres.DSN == "" {
			return nil, fmt.Errorf("output format postgres requires output.postgres.dsn in the config")
		}
		return &sink.Postgres{
			DSN:          cfg.Output.Postgres.DSN,
			Schema:       cfg.Output.Postgres.Schema,
			CreateTables: true,
		}, nil
	case "mongodb":
		if cfg.Output.Mongo.ConnectionString == "" {
			return nil, fmt.Errorf("output format mongodb requires output.mongodb.connection_string in the config")
		}
		return &sink.Mongo{
			ConnectionString: cfg.Output.Mongo.ConnectionString,
			Database:         cfg.Output.Mongo.Database,
		}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (csv, jsonl, postgres, mongodb)", format)
	}
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func init() {
	generateCmd.Flags().StringToIntVar(&genRows, "rows", nil, "per-entity row counts, e.g. --rows customers=100,orders=500")
	generateCmd.Flags().IntVar(&genDefaultRows, "default-rows", 0, "row count for entities not listed in --rows (default 10)")
	generateCmd.Flags().Int64Var(&genSeed, "seed", 0, "random seed (0 picks one)")
	generateCmd.Flags().BoolVar(&genStrict, "strict", false, "treat validation warnings as errors")
	generateCmd.Flags().BoolVar(&genSkipValidation, "skip-validation", false, "generate without validating first")
	generateCmd.Flags().StringVarP(&genFormat, "output", "o", "", "output format: csv, jsonl, postgres, mongodb")
	generateCmd.Flags().StringVar(&genOutDir, "out-dir", "", "directory for file outputs (default ./out)")
	generateCmd.Flags().BoolVar(&genPlain, "plain", false, "disable the progress display")
	rootCmd.AddCommand(generateCmd)
}
