// Package config loads the ordersync configuration: a YAML file overlaid
// with ORDERSYNC_* environment variables. Flags handled by the CLI override
// both.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/staffingops/ordersync/internal/logging"
)

// Config is the full configuration tree.
type Config struct {
	Source  SourceConfig   `yaml:"source"`
	Table   TableConfig    `yaml:"table"`
	Tracker TrackerConfig  `yaml:"tracker"`
	Web     WebConfig      `yaml:"web"`
	Log     logging.Config `yaml:"log"`
}

// SourceConfig locates the mailbox folder.
type SourceConfig struct {
	// BucketURL is a gocloud.dev bucket URL: file://, gs://, s3://.
	BucketURL string `yaml:"bucket_url"`
	// Prefix narrows listing to one folder within the bucket.
	Prefix string `yaml:"prefix"`
	// CredentialsFile overrides default cloud credential resolution.
	CredentialsFile string `yaml:"credentials_file"`
	// Interval between passes in watch mode.
	Interval time.Duration `yaml:"interval"`
}

// TableConfig selects and locates the table store backend.
type TableConfig struct {
	Backend      string `yaml:"backend"` // "csv" | "postgres" | "memory"
	CSVBucketURL string `yaml:"csv_bucket_url"`
	CSVKey       string `yaml:"csv_key"`
	PostgresDSN  string `yaml:"postgres_dsn"`
}

// TrackerConfig locates the processed-item state file.
type TrackerConfig struct {
	Path string `yaml:"path"`
}

// WebConfig configures the HTTP surface.
type WebConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Interval: 5 * time.Minute,
		},
		Table: TableConfig{
			Backend: "csv",
			CSVKey:  "commandes.csv",
		},
		Tracker: TrackerConfig{
			Path: "ordersync-processed.json",
		},
		Web: WebConfig{
			Addr: ":8080",
		},
		Log: logging.Config{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load reads the config file at path, if any, and applies environment
// overrides. An empty path skips the file and uses defaults + env.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Table.Backend {
	case "csv", "postgres", "memory":
	default:
		return fmt.Errorf("unknown table backend %q", c.Table.Backend)
	}
	if c.Table.Backend == "postgres" && c.Table.PostgresDSN == "" {
		return fmt.Errorf("table backend postgres requires postgres_dsn")
	}
	if c.Source.Interval <= 0 {
		return fmt.Errorf("source interval must be positive")
	}
	return nil
}

// applyEnv overlays ORDERSYNC_* environment variables.
func applyEnv(cfg *Config) {
	setenv(&cfg.Source.BucketURL, "ORDERSYNC_SOURCE_URL")
	setenv(&cfg.Source.Prefix, "ORDERSYNC_SOURCE_PREFIX")
	setenv(&cfg.Source.CredentialsFile, "ORDERSYNC_CREDENTIALS")
	setenv(&cfg.Table.Backend, "ORDERSYNC_TABLE_BACKEND")
	setenv(&cfg.Table.CSVBucketURL, "ORDERSYNC_TABLE_CSV_URL")
	setenv(&cfg.Table.CSVKey, "ORDERSYNC_TABLE_CSV_KEY")
	setenv(&cfg.Table.PostgresDSN, "ORDERSYNC_TABLE_DSN")
	setenv(&cfg.Tracker.Path, "ORDERSYNC_TRACKER_PATH")
	setenv(&cfg.Web.Addr, "ORDERSYNC_WEB_ADDR")
	setenv(&cfg.Log.Level, "ORDERSYNC_LOG_LEVEL")
	setenv(&cfg.Log.Format, "ORDERSYNC_LOG_FORMAT")

	if v := os.Getenv("ORDERSYNC_SOURCE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Source.Interval = d
		}
	}
}

func setenv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
