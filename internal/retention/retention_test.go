package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xtxerr/dcmon/internal/archive"
	"github.com/xtxerr/dcmon/internal/model"
	"github.com/xtxerr/dcmon/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(store.DefaultConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func seedPoints(t *testing.T, s *store.Store, now time.Time) (oldSeries, freshSeries int64) {
	t.Helper()
	ctx := context.Background()

	client, err := s.EnsureClient(ctx, "node-1")
	if err != nil {
		t.Fatalf("ensure client: %v", err)
	}

	oldSeries, err = s.GetOrCreateSeries(ctx, client, "fan_rpm", map[string]string{"fan": "0"}, model.KindInt)
	if err != nil {
		t.Fatalf("create series: %v", err)
	}
	freshSeries, err = s.GetOrCreateSeries(ctx, client, "fan_rpm", map[string]string{"fan": "1"}, model.KindInt)
	if err != nil {
		t.Fatalf("create series: %v", err)
	}

	stale := now.Add(-8 * 24 * time.Hour).Unix()
	fresh := now.Add(-24 * time.Hour).Unix()

	if _, err := s.InsertPoints(ctx, model.KindInt, []store.Point{
		{SeriesID: oldSeries, Ts: stale, Value: 3200},
		{SeriesID: freshSeries, Ts: fresh, Value: 4100},
	}); err != nil {
		t.Fatalf("insert points: %v", err)
	}
	return oldSeries, freshSeries
}

func TestRunOnce_DeletesExpiredOnly(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	seedPoints(t, s, now)

	j := New(Config{RetentionDays: 7, Interval: time.Hour}, s, nil, nil)
	j.now = func() time.Time { return now }

	results, err := j.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}

	var deleted int64
	for _, r := range results {
		deleted += r.RowsDeleted
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	count, err := s.CountPoints(context.Background(), model.KindInt)
	if err != nil {
		t.Fatalf("count points: %v", err)
	}
	if count != 1 {
		t.Errorf("surviving points = %d, want 1", count)
	}
}

func TestRunOnce_Idempotent(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	seedPoints(t, s, now)

	j := New(Config{RetentionDays: 7, Interval: time.Hour}, s, nil, nil)
	j.now = func() time.Time { return now }

	if _, err := j.RunOnce(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	results, err := j.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for _, r := range results {
		if r.RowsDeleted != 0 {
			t.Errorf("second run deleted %d rows from %s, want 0", r.RowsDeleted, r.Table)
		}
	}
}

func TestRunOnce_ArchivesBeforeDelete(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	seedPoints(t, s, now)

	arch := archive.New(archive.Options{Dir: t.TempDir(), Compression: "zstd"})
	j := New(Config{RetentionDays: 7, Interval: time.Hour}, s, arch, nil)
	j.now = func() time.Time { return now }

	results, err := j.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}

	var archived int64
	for _, r := range results {
		archived += r.RowsArchived
	}
	if archived != 1 {
		t.Errorf("archived = %d, want 1", archived)
	}

	_, deleted, gotArchived := j.Stats()
	if deleted != 1 || gotArchived != 1 {
		t.Errorf("stats = (deleted %d, archived %d), want (1, 1)", deleted, gotArchived)
	}
}

func TestRunOnce_ArchivesBothKinds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	client, err := s.EnsureClient(ctx, "node-1")
	if err != nil {
		t.Fatalf("ensure client: %v", err)
	}
	intSeries, err := s.GetOrCreateSeries(ctx, client, "fan_rpm", nil, model.KindInt)
	if err != nil {
		t.Fatalf("create int series: %v", err)
	}
	floatSeries, err := s.GetOrCreateSeries(ctx, client, "temp_celsius", nil, model.KindFloat)
	if err != nil {
		t.Fatalf("create float series: %v", err)
	}

	stale := now.Add(-8 * 24 * time.Hour).Unix()
	if _, err := s.InsertPoints(ctx, model.KindInt, []store.Point{{SeriesID: intSeries, Ts: stale, Value: 3200}}); err != nil {
		t.Fatalf("insert int point: %v", err)
	}
	if _, err := s.InsertPoints(ctx, model.KindFloat, []store.Point{{SeriesID: floatSeries, Ts: stale, Value: 55}}); err != nil {
		t.Fatalf("insert float point: %v", err)
	}

	dir := t.TempDir()
	arch := archive.New(archive.Options{Dir: dir})
	j := New(Config{RetentionDays: 7, Interval: time.Hour}, s, arch, nil)
	j.now = func() time.Time { return now }

	if _, err := j.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	// Both tables expire under one runTime; each must keep its own
	// archive file with its own row.
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read archive dir: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d archive files, want 2 (one per table)", len(files))
	}
	var total int
	for _, f := range files {
		rows, err := archive.ReadPoints(filepath.Join(dir, f.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", f.Name(), err)
		}
		total += len(rows)
	}
	if total != 2 {
		t.Errorf("archived %d rows across files, want 2", total)
	}
}

func TestRunOnce_LogRetention(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	client, err := s.EnsureClient(ctx, "node-1")
	if err != nil {
		t.Fatalf("ensure client: %v", err)
	}
	if err := s.InsertLogEntries(ctx, client, []model.LogEntry{
		{Source: "ipmi", Line: "old event", Timestamp: now.Add(-8 * 24 * time.Hour).Unix()},
		{Source: "ipmi", Line: "recent event", Timestamp: now.Add(-time.Hour).Unix()},
	}); err != nil {
		t.Fatalf("insert logs: %v", err)
	}

	j := New(Config{RetentionDays: 30, LogRetentionDays: 7, Interval: time.Hour}, s, nil, nil)
	j.now = func() time.Time { return now }

	if _, err := j.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	entries, err := s.RecentLogEntries(ctx, client, 10)
	if err != nil {
		t.Fatalf("read logs: %v", err)
	}
	if len(entries) != 1 || entries[0].Line != "recent event" {
		t.Errorf("surviving logs = %+v, want only the recent event", entries)
	}
}

func TestStartStop(t *testing.T) {
	s := newTestStore(t)

	j := New(Config{RetentionDays: 7, Interval: 50 * time.Millisecond}, s, nil, nil)
	j.Start(context.Background())
	time.Sleep(120 * time.Millisecond)
	j.Stop()

	lastRun, _, _ := j.Stats()
	if lastRun.IsZero() {
		t.Error("timer never triggered a run")
	}

	// A second Stop must be a harmless no-op.
	j.Stop()
}

func TestStop_WithoutStart(t *testing.T) {
	s := newTestStore(t)

	j := New(DefaultConfig(), s, nil, nil)

	done := make(chan struct{})
	go func() {
		j.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked with no running job")
	}
}
