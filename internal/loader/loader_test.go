package loader

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "listen: \":9200\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Listen != ":9200" {
		t.Errorf("listen = %q, want :9200", cfg.Listen)
	}
	// Unset sections keep their defaults.
	if cfg.Retention.Days != 30 {
		t.Errorf("retention.days = %d, want default 30", cfg.Retention.Days)
	}
	if cfg.Database.QueryTimeout.Duration() != 30*time.Second {
		t.Errorf("query_timeout = %v, want 30s", cfg.Database.QueryTimeout.Duration())
	}
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
listen: ":9161"
log:
  level: debug
  json: true
database:
  path: /var/lib/dcmon/dcmon.db
  max_open_conns: 20
  query_timeout: 10s
query:
  active_window: 30m
retention:
  days: 7
  log_days: 3
  interval: 15m
archive:
  enabled: true
  dir: /var/lib/dcmon/archive
  compression: snappy
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Log.Level != "debug" || !cfg.Log.JSON {
		t.Errorf("log = %+v, want debug/json", cfg.Log)
	}
	if cfg.Database.Path != "/var/lib/dcmon/dcmon.db" || cfg.Database.MaxOpenConns != 20 {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Query.ActiveWindow.Duration() != 30*time.Minute {
		t.Errorf("active_window = %v, want 30m", cfg.Query.ActiveWindow.Duration())
	}
	if cfg.Retention.Days != 7 || cfg.Retention.LogDays != 3 {
		t.Errorf("retention = %+v", cfg.Retention)
	}
	if cfg.Retention.Interval.Duration() != 15*time.Minute {
		t.Errorf("retention.interval = %v, want 15m", cfg.Retention.Interval.Duration())
	}
	if !cfg.Archive.Enabled || cfg.Archive.Compression != "snappy" {
		t.Errorf("archive = %+v", cfg.Archive)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("DCMON_DB", "/tmp/env.db")
	path := writeConfig(t, "database:\n  path: ${DCMON_DB}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("path = %q, want /tmp/env.db", cfg.Database.Path)
	}
}

func TestLoad_DurationAsSeconds(t *testing.T) {
	path := writeConfig(t, "retention:\n  interval: 900\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Retention.Interval.Duration() != 900*time.Second {
		t.Errorf("interval = %v, want 900s", cfg.Retention.Interval.Duration())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	// The daemon falls back to defaults when the file is absent; the
	// wrapped error must stay recognizable through errors.Is.
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error %v does not unwrap to fs.ErrNotExist", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty listen", func(c *Config) { c.Listen = "" }, true},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, true},
		{"zero retention", func(c *Config) { c.Retention.Days = 0 }, true},
		{"negative conns", func(c *Config) { c.Database.MaxOpenConns = -1 }, true},
		{"archive without dir", func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Dir = ""
		}, true},
		{"bad compression", func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Compression = "lz9"
		}, true},
		{"zero active window", func(c *Config) { c.Query.ActiveWindow = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Listen = ""
	cfg.Retention.Days = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "listen") || !strings.Contains(msg, "retention.days") {
		t.Errorf("error %q should name both invalid fields", msg)
	}
}
