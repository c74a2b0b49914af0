// dcmond is the fleet hardware monitoring daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xtxerr/dcmon/internal/archive"
	"github.com/xtxerr/dcmon/internal/ingest"
	"github.com/xtxerr/dcmon/internal/loader"
	"github.com/xtxerr/dcmon/internal/logging"
	"github.com/xtxerr/dcmon/internal/metrics"
	"github.com/xtxerr/dcmon/internal/query"
	"github.com/xtxerr/dcmon/internal/retention"
	"github.com/xtxerr/dcmon/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	listen := flag.String("listen", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "database path (overrides config)")
	retentionDays := flag.Int("retention-days", 0, "point retention in days (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	jsonLogs := flag.Bool("json-logs", false, "JSON log output")
	flag.Parse()

	// Load config
	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg = loader.DefaultConfig()
		} else {
			logging.Init(logging.ParseLevel("info"), false)
			logging.Logger.Error("load config failed", "path", *cfgPath, "error", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *retentionDays > 0 {
		cfg.Retention.Days = *retentionDays
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *jsonLogs {
		cfg.Log.JSON = true
	}

	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)
	log := logging.Component("main")
	log.Info("dcmond starting", "version", Version)

	if err := loader.Validate(cfg); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// =========================================================================
	// Store (DuckDB - series registry, points, agent logs)
	// =========================================================================

	log.Info("opening store", "path", cfg.Database.Path)

	st, err := store.New(loader.ToStoreConfig(&cfg.Database))
	if err != nil {
		log.Error("open store failed", "error", err)
		os.Exit(1)
	}

	// =========================================================================
	// Services
	// =========================================================================

	ingestSvc := ingest.New(st, metrics.NewIngestMetrics())

	engine := query.New(st, metrics.NewQueryMetrics())
	engine.SetActiveWindow(cfg.Query.ActiveWindow.Duration())

	var archiver *archive.Archiver
	if opts, ok := loader.ToArchiveOptions(&cfg.Archive); ok {
		archiver = archive.New(opts)
		log.Info("archive enabled", "dir", opts.Dir, "compression", opts.Compression)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := retention.New(loader.ToRetentionConfig(&cfg.Retention), st, archiver, metrics.NewRetentionMetrics())
	job.Start(ctx)

	go runSelfMonitor(ctx, st, ingestSvc)
	go runStatusLogger(ctx, st, engine)

	// =========================================================================
	// HTTP (self-metrics, health)
	// =========================================================================

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Health(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// =========================================================================
	// Signal handling and graceful shutdown
	// =========================================================================

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		job.Stop()
		cancel()

		if err := st.Close(); err != nil {
			log.Warn("store close", "error", err)
		}
	}()

	// =========================================================================
	// Run
	// =========================================================================

	log.Info("listening", "addr", cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("http server failed", "error", err)
		os.Exit(1)
	}
	log.Info("dcmond stopped")
}
