// Package loader - Configuration Types
//
// Defines the YAML configuration structure for dcmond.
package loader

import (
	"time"

	"github.com/xtxerr/dcmon/internal/archive"
	"github.com/xtxerr/dcmon/internal/retention"
	"github.com/xtxerr/dcmon/internal/store"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for dcmond.
type Config struct {
	// Listen is the HTTP listen address for the metrics endpoint.
	// Format: "host:port" or ":port"
	Listen string `yaml:"listen"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`

	// Database is the metric store (DuckDB).
	Database DatabaseConfig `yaml:"database"`

	// Query configures the read path.
	Query QueryConfig `yaml:"query"`

	// Retention configures automatic deletion of expired data.
	Retention RetentionConfig `yaml:"retention"`

	// Archive configures the parquet cold archive for expired points.
	Archive ArchiveConfig `yaml:"archive"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON selects JSON output instead of text.
	JSON bool `yaml:"json"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	// Path is the database file. Empty means in-memory.
	Path string `yaml:"path"`

	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    Duration `yaml:"query_timeout"`
}

// QueryConfig configures the query engine.
type QueryConfig struct {
	// ActiveWindow bounds how long a silent client still counts as
	// active for default client scoping.
	ActiveWindow Duration `yaml:"active_window"`
}

// RetentionConfig configures the retention job.
type RetentionConfig struct {
	// Days is the point age limit in days.
	Days int `yaml:"days"`

	// LogDays bounds agent log entries. Zero means same as Days.
	LogDays int `yaml:"log_days"`

	// Interval between cleanup runs.
	Interval Duration `yaml:"interval"`
}

// ArchiveConfig configures the parquet cold archive.
type ArchiveConfig struct {
	// Enabled turns archiving of expired points on.
	Enabled bool `yaml:"enabled"`

	// Dir is the directory archive files are written to.
	Dir string `yaml:"dir"`

	// Compression is the parquet codec: zstd, snappy, gzip, or none.
	Compression string `yaml:"compression"`
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Listen: "0.0.0.0:9160",

		Log: LogConfig{
			Level: "info",
		},

		Database: DatabaseConfig{
			Path:            "dcmon.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration(time.Hour),
			QueryTimeout:    Duration(30 * time.Second),
		},

		Query: QueryConfig{
			ActiveWindow: Duration(time.Hour),
		},

		Retention: RetentionConfig{
			Days:     30,
			Interval: Duration(time.Hour),
		},

		Archive: ArchiveConfig{
			Dir:         "archive",
			Compression: "zstd",
		},
	}
}

// =============================================================================
// Conversion
// =============================================================================

// ToStoreConfig converts the database section to the store config.
func ToStoreConfig(cfg *DatabaseConfig) store.Config {
	return store.Config{
		DSN:             cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime.Duration(),
		QueryTimeout:    cfg.QueryTimeout.Duration(),
	}
}

// ToRetentionConfig converts the retention section to the job config.
func ToRetentionConfig(cfg *RetentionConfig) retention.Config {
	return retention.Config{
		RetentionDays:    cfg.Days,
		LogRetentionDays: cfg.LogDays,
		Interval:         cfg.Interval.Duration(),
	}
}

// ToArchiveOptions converts the archive section to archiver options.
// Returns false when archiving is disabled.
func ToArchiveOptions(cfg *ArchiveConfig) (archive.Options, bool) {
	if !cfg.Enabled {
		return archive.Options{}, false
	}
	return archive.Options{
		Dir:         cfg.Dir,
		Compression: cfg.Compression,
	}, true
}

// =============================================================================
// Custom Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		// Try as int (seconds)
		var i int
		if err := unmarshal(&i); err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
