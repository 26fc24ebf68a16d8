package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fabrica/fabrica/internal/config"
	"github.com/fabrica/fabrica/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "fabrica",
	Short: "Fabrica — schema-driven synthetic data generator",
	Long: `Fabrica validates relational entity schemas and generates synthetic
datasets whose foreign keys always point at rows that exist.

Entities are generated in dependency order: parents first, children
drawing their foreign-key values from already-materialized parent
identifiers.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.fabrica/fabrica.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// loadConfig reads the config file. A missing default config is not an
// error; commands run fine on defaults alone.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = config.ExpandHome(config.DefaultPath)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// setupLogger builds the shared logger from flags and config.
func setupLogger(cfg *config.Config) (*slog.Logger, error) {
	level := logLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	if level == "" {
		level = "info"
	}
	return logging.Setup(level, cfg.Logging.Directory)
}
