package main

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/xtxerr/dcmon/internal/collector"
	"github.com/xtxerr/dcmon/internal/ingest"
	"github.com/xtxerr/dcmon/internal/logging"
	"github.com/xtxerr/dcmon/internal/model"
	"github.com/xtxerr/dcmon/internal/query"
	"github.com/xtxerr/dcmon/internal/store"
)

var selfmonLog = logging.Component("selfmon")

// selfMonitorInterval is how often the daemon reports its own runtime
// metrics through the regular ingest path.
const selfMonitorInterval = time.Minute

// runtimeCollector reports the daemon's own process metrics. It doubles as
// a liveness signal: a node whose dcmond stops reporting is itself a
// hardware-adjacent event worth noticing.
type runtimeCollector struct{}

func (runtimeCollector) Name() string      { return "runtime" }
func (runtimeCollector) IsAvailable() bool { return true }

func (runtimeCollector) Collect() ([]model.Record, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	now := time.Now().Unix()

	labels := map[string]string{"process": "dcmond"}
	return []model.Record{
		{
			MetricName: "process_goroutines",
			Labels:     labels,
			ValueKind:  model.KindInt,
			Value:      float64(runtime.NumGoroutine()),
			Timestamp:  now,
		},
		{
			MetricName: "process_heap_bytes",
			Labels:     labels,
			ValueKind:  model.KindInt,
			Value:      float64(ms.HeapAlloc),
			Timestamp:  now,
		},
		{
			MetricName: "process_gc_total",
			Labels:     labels,
			ValueKind:  model.KindInt,
			Value:      float64(ms.NumGC),
			Timestamp:  now,
		},
	}, nil
}

// runSelfMonitor feeds the daemon's own runtime metrics through WriteBatch
// until ctx is cancelled.
func runSelfMonitor(ctx context.Context, st *store.Store, svc *ingest.Service) {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}

	runner := collector.NewRunner(runtimeCollector{})

	ticker := time.NewTicker(selfMonitorInterval)
	defer ticker.Stop()

	var clientID int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if clientID == 0 {
				clientID, err = st.EnsureClient(ctx, host)
				if err != nil {
					selfmonLog.Warn("self-monitor client registration failed", "error", err)
					continue
				}
			}

			records := runner.Gather(ctx)
			if len(records) == 0 {
				continue
			}
			if _, err := svc.WriteBatch(ctx, clientID, records); err != nil {
				selfmonLog.Warn("self-monitor write failed", "error", err)
			}
			if err := st.TouchClient(ctx, clientID); err != nil {
				selfmonLog.Warn("heartbeat update failed", "error", err)
			}
		}
	}
}

// statusInterval is how often the daemon logs a one-line status summary.
const statusInterval = 15 * time.Minute

// runStatusLogger periodically logs stored point counts and the daemon's
// current goroutine reading, so a log tail shows whether ingest and the
// read path are both alive.
func runStatusLogger(ctx context.Context, st *store.Store, engine *query.Engine) {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ints, err := st.CountPoints(ctx, model.KindInt)
			if err != nil {
				selfmonLog.Warn("status count failed", "error", err)
				continue
			}
			floats, err := st.CountPoints(ctx, model.KindFloat)
			if err != nil {
				selfmonLog.Warn("status count failed", "error", err)
				continue
			}

			goroutines := float64(runtime.NumGoroutine())
			if clientID, err := st.EnsureClient(ctx, host); err == nil {
				if v, ok := engine.LatestValue(ctx, clientID, []string{"process_goroutines"}, nil, ""); ok {
					goroutines = v
				}
			}

			selfmonLog.Info("status",
				"points_int", ints,
				"points_float", floats,
				"goroutines", int(goroutines))
		}
	}
}
