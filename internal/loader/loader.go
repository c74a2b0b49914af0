// Package loader handles configuration file loading and validation.
package loader

import (
	"fmt"
	"os"

	"github.com/xtxerr/dcmon/internal/errors"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file. Environment variables in the
// file are expanded before parsing, so secrets can stay out of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	// Start with defaults so a partial file only overrides what it names.
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration, collecting all problems instead of
// stopping at the first one.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	if cfg.Listen == "" {
		errs.AddField("listen", "cannot be empty")
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs.AddField("log.level", "must be debug, info, warn, or error")
	}

	if cfg.Database.MaxOpenConns < 0 {
		errs.AddField("database.max_open_conns", "cannot be negative")
	}
	if cfg.Database.MaxIdleConns < 0 {
		errs.AddField("database.max_idle_conns", "cannot be negative")
	}

	if cfg.Retention.Days <= 0 {
		errs.AddField("retention.days", "must be positive")
	}
	if cfg.Retention.LogDays < 0 {
		errs.AddField("retention.log_days", "cannot be negative")
	}
	if cfg.Retention.Interval.Duration() <= 0 {
		errs.AddField("retention.interval", "must be positive")
	}

	if cfg.Archive.Enabled {
		if cfg.Archive.Dir == "" {
			errs.AddField("archive.dir", "cannot be empty when enabled")
		}
		switch cfg.Archive.Compression {
		case "", "zstd", "snappy", "lz4", "gzip", "none":
		default:
			errs.AddField("archive.compression", "must be zstd, snappy, lz4, gzip, or none")
		}
	}

	if cfg.Query.ActiveWindow.Duration() <= 0 {
		errs.AddField("query.active_window", "must be positive")
	}

	return errs.Err()
}
