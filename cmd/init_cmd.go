package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabrica/fabrica/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	Long:  `Walk through prompts to create a Fabrica configuration file at ~/.fabrica/fabrica.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)

		fmt.Println("Fabrica Configuration Setup")
		fmt.Println("===========================")
		fmt.Println()

		fmt.Println("Generation")
		fmt.Println("----------")
		rowsStr := prompt(reader, "Default rows per entity", "10")
		rows, err := strconv.Atoi(rowsStr)
		if err != nil {
			return fmt.Errorf("invalid row count: %s", rowsStr)
		}
		fmt.Println()

		fmt.Println("Output")
		fmt.Println("------")
		format := prompt(reader, "Output format (csv/jsonl/postgres/mongodb)", "csv")
		cfg := &config.Config{
			Version:    config.CurrentVersion,
			Generation: config.GenerationConfig{DefaultRows: rows},
			Output:     config.OutputConfig{Format: format},
		}
		switch format {
		case "csv", "jsonl":
			cfg.Output.Directory = prompt(reader, "Output directory", "./out")
		case "postgres":
			cfg.Output.Postgres.DSN = prompt(reader, "Connection string", "postgres://localhost:5432/fabrica")
			cfg.Output.Postgres.Schema = prompt(reader, "Schema", "public")
		case "mongodb":
			cfg.Output.Mongo.ConnectionString = prompt(reader, "Connection string", "mongodb://localhost:27017")
			cfg.Output.Mongo.Database = prompt(reader, "Database name", "fabrica")
		default:
			return fmt.Errorf("unknown output format %q", format)
		}
		fmt.Println()

		fmt.Println("Model Service (optional, empty uses the built-in generator)")
		fmt.Println("-----------------------------------------------------------")
		cfg.Model.Endpoint = prompt(reader, "Endpoint URL", "")
		if cfg.Model.Endpoint != "" {
			cfg.Model.APIKey = prompt(reader, "API key (supports ${ENV:VAR})", "")
			cfg.Model.Model = prompt(reader, "Model name", "")
		}
		fmt.Println()

		path := cfgFile
		if path == "" {
			path = config.ExpandHome(config.DefaultPath)
		}
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Printf("Configuration written to %s\n", path)
		return nil
	},
}

func prompt(reader *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func init() {
	rootCmd.AddCommand(initCmd)
}
