package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.fabrica/fabrica.yaml"
)

// Config is the top-level configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Generation GenerationConfig `yaml:"generation,omitempty"`
	Model      ModelConfig      `yaml:"model,omitempty"`
	Output     OutputConfig     `yaml:"output,omitempty"`
	Import     ImportConfig     `yaml:"import,omitempty"`
	Logging    LogConfig        `yaml:"logging,omitempty"`
}

// GenerationConfig tunes generation runs.
type GenerationConfig struct {
	DefaultRows    int   `yaml:"default_rows,omitempty"`    // default 10
	RowConcurrency int   `yaml:"row_concurrency,omitempty"` // default 4, max 32
	MaxAttempts    int   `yaml:"max_attempts,omitempty"`    // default 3
	Seed           int64 `yaml:"seed,omitempty"`
	Strict         bool  `yaml:"strict,omitempty"`
}

// ModelConfig defines the remote value-generation service. When Endpoint is
// empty, the local generator is used.
type ModelConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

// OutputConfig defines where generated datasets land.
type OutputConfig struct {
	// Format is csv, jsonl, postgres or mongodb.
	Format    string         `yaml:"format,omitempty"`
	Directory string         `yaml:"directory,omitempty"` // for file formats
	Postgres  PostgresConfig `yaml:"postgres,omitempty"`
	Mongo     MongoConfig    `yaml:"mongodb,omitempty"`
}

// PostgresConfig is a Postgres connection, used both as an output sink and as
// an import source.
type PostgresConfig struct {
	DSN    string `yaml:"dsn,omitempty"`
	Schema string `yaml:"schema,omitempty"` // default public
}

// MongoConfig is the MongoDB output sink connection.
type MongoConfig struct {
	ConnectionString string `yaml:"connection_string,omitempty"`
	Database         string `yaml:"database,omitempty"`
}

// ImportConfig defines the database schemas are introspected from.
type ImportConfig struct {
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level         string `yaml:"level,omitempty"`          // debug, info, warn, error
	Directory     string `yaml:"directory,omitempty"`      // default ~/.fabrica/logs/
	RetentionDays int    `yaml:"retention_days,omitempty"` // default 30
}

// Default returns a config with all defaults applied, for running without
// a config file.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the config file from the given path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyDefaults() {
	if c.Generation.DefaultRows == 0 {
		c.Generation.DefaultRows = 10
	}
	if c.Generation.RowConcurrency == 0 {
		c.Generation.RowConcurrency = 4
	}
	if c.Generation.RowConcurrency > 32 {
		c.Generation.RowConcurrency = 32
	}
	if c.Generation.MaxAttempts == 0 {
		c.Generation.MaxAttempts = 3
	}
	if c.Output.Format == "" {
		c.Output.Format = "csv"
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "./out"
	}
	if c.Import.Postgres.Schema == "" {
		c.Import.Postgres.Schema = "public"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.fabrica/logs/")
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = 30
	}
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

func (c *Config) resolveSecrets() error {
	var err error
	c.Model.APIKey, err = ResolveValue(c.Model.APIKey)
	if err != nil {
		return fmt.Errorf("model api key: %w", err)
	}
	c.Output.Postgres.DSN, err = ResolveValue(c.Output.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("output postgres dsn: %w", err)
	}
	c.Output.Mongo.ConnectionString, err = ResolveValue(c.Output.Mongo.ConnectionString)
	if err != nil {
		return fmt.Errorf("output mongodb connection string: %w", err)
	}
	c.Import.Postgres.DSN, err = ResolveValue(c.Import.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("import postgres dsn: %w", err)
	}
	return nil
}

// ResolveValue resolves secret references in a string value.
func ResolveValue(val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
