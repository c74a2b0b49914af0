// Package retention handles automatic deletion of expired points.
//
// The job runs on its own timer goroutine, independent of request
// handling. Every run computes a single cutoff and deletes everything
// older, one statement per table; there is no intermediate state, so a
// run interrupted or repeated at any point converges to the same result.
// Series rows are never pruned, even when all their points are gone - a
// small permanent overhead accepted so series identity is stable.
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/xtxerr/dcmon/internal/archive"
	"github.com/xtxerr/dcmon/internal/logging"
	"github.com/xtxerr/dcmon/internal/metrics"
	"github.com/xtxerr/dcmon/internal/model"
	"github.com/xtxerr/dcmon/internal/store"
)

var log = logging.Component("retention")

// Config holds retention job configuration.
type Config struct {
	// RetentionDays is the point age limit. Points older than
	// now - RetentionDays*86400 are deleted.
	RetentionDays int

	// Interval between runs.
	Interval time.Duration

	// LogRetentionDays bounds agent log entries. Zero means "same as
	// RetentionDays".
	LogRetentionDays int
}

// DefaultConfig returns sensible retention defaults.
func DefaultConfig() Config {
	return Config{
		RetentionDays: 30,
		Interval:      time.Hour,
	}
}

// CleanupResult holds the result of one table's cleanup.
type CleanupResult struct {
	Table        string
	RowsDeleted  int64
	RowsArchived int64
}

// Job periodically deletes expired data.
type Job struct {
	config   Config
	store    *store.Store
	archiver *archive.Archiver // nil disables archiving
	stats    *metrics.RetentionMetrics

	mu       sync.Mutex
	lastRun  time.Time
	deleted  int64
	archived int64

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	// now is replaceable for tests.
	now func() time.Time
}

// New creates a retention job. archiver and stats may be nil.
func New(cfg Config, st *store.Store, archiver *archive.Archiver, stats *metrics.RetentionMetrics) *Job {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultConfig().RetentionDays
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.LogRetentionDays <= 0 {
		cfg.LogRetentionDays = cfg.RetentionDays
	}

	return &Job{
		config:   cfg,
		store:    st,
		archiver: archiver,
		stats:    stats,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Start launches the timer goroutine. The job runs until Stop is called
// or ctx is cancelled.
func (j *Job) Start(ctx context.Context) {
	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		return
	}
	j.started = true
	j.mu.Unlock()

	go func() {
		defer close(j.done)

		ticker := time.NewTicker(j.config.Interval)
		defer ticker.Stop()

		log.Info("retention job started",
			"retention_days", j.config.RetentionDays,
			"interval", j.config.Interval)

		for {
			select {
			case <-ticker.C:
				if _, err := j.RunOnce(ctx); err != nil {
					log.Error("retention run failed", "error", err)
				}
			case <-ctx.Done():
				return
			case <-j.stop:
				return
			}
		}
	}()
}

// Stop terminates the timer goroutine and waits for it to exit. Safe to
// call more than once, and a no-op if the job was never started.
func (j *Job) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })

	j.mu.Lock()
	started := j.started
	j.mu.Unlock()
	if started {
		<-j.done
	}
}

// RunOnce performs one cleanup pass over both point tables and the log
// table. Safe to call concurrently with Start's timer runs; the store
// serializes the deletes.
func (j *Job) RunOnce(ctx context.Context) ([]CleanupResult, error) {
	start := j.now()
	cutoff := start.Unix() - int64(j.config.RetentionDays)*86400
	logCutoff := start.Unix() - int64(j.config.LogRetentionDays)*86400

	var results []CleanupResult

	for _, kind := range []model.ValueKind{model.KindInt, model.KindFloat} {
		r, err := j.cleanupPoints(ctx, kind, cutoff, start)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}

	deleted, err := j.store.DeleteLogEntriesBefore(ctx, logCutoff)
	if err != nil {
		return results, err
	}
	results = append(results, CleanupResult{Table: "log_entries", RowsDeleted: deleted})

	var totalDeleted, totalArchived int64
	for _, r := range results {
		totalDeleted += r.RowsDeleted
		totalArchived += r.RowsArchived
		if j.stats != nil {
			j.stats.RowsDeleted.WithLabelValues(r.Table).Add(float64(r.RowsDeleted))
		}
	}
	if j.stats != nil {
		j.stats.RunsTotal.Inc()
		j.stats.RowsArchived.Add(float64(totalArchived))
	}

	j.mu.Lock()
	j.lastRun = start
	j.deleted += totalDeleted
	j.archived += totalArchived
	j.mu.Unlock()

	log.Info("retention run completed",
		"cutoff", cutoff,
		"deleted", totalDeleted,
		"archived", totalArchived,
		"elapsed", j.now().Sub(start))

	return results, nil
}

// cleanupPoints archives (when enabled) and deletes the expired points of
// one kind. The archive write happens before the delete; a crash between
// the two re-archives the same rows on the next run, which only costs a
// redundant file.
func (j *Job) cleanupPoints(ctx context.Context, kind model.ValueKind, cutoff int64, runTime time.Time) (CleanupResult, error) {
	table := "points_" + string(kind)
	result := CleanupResult{Table: table}

	if j.archiver != nil {
		expired, err := j.store.PointsBefore(ctx, kind, cutoff)
		if err != nil {
			return result, err
		}
		if len(expired) > 0 {
			path, n, err := j.archiver.WritePoints(table, expired, runTime)
			if err != nil {
				return result, err
			}
			result.RowsArchived = n
			log.Debug("expired points archived", "table", table, "rows", n, "file", path)
		}
	}

	deleted, err := j.store.DeletePointsBefore(ctx, kind, cutoff)
	if err != nil {
		return result, err
	}
	result.RowsDeleted = deleted

	return result, nil
}

// Stats returns cumulative job statistics.
func (j *Job) Stats() (lastRun time.Time, deleted, archived int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRun, j.deleted, j.archived
}
