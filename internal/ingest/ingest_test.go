package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/xtxerr/dcmon/internal/errors"
	"github.com/xtxerr/dcmon/internal/model"
	"github.com/xtxerr/dcmon/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store, int64) {
	t.Helper()

	st, err := store.New(store.DefaultConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	clientID, err := st.EnsureClient(context.Background(), "node-1")
	if err != nil {
		t.Fatalf("ensure client: %v", err)
	}

	return New(st, nil), st, clientID
}

func TestWriteBatch_AcceptedCount(t *testing.T) {
	svc, _, client := newTestService(t)
	ctx := context.Background()

	records := []model.Record{
		{MetricName: "cpu_usage_percent", ValueKind: model.KindFloat, Value: 45.0, Timestamp: 1000},
		{MetricName: "mem_used_bytes", ValueKind: model.KindInt, Value: 1 << 30, Timestamp: 1000},
	}

	n, err := svc.WriteBatch(ctx, client, records)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 2 {
		t.Errorf("accepted %d, want 2", n)
	}

	// Identical resubmission: everything is an idempotent duplicate.
	n, err = svc.WriteBatch(ctx, client, records)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n != 0 {
		t.Errorf("retry accepted %d, want 0", n)
	}
}

func TestWriteBatch_FutureTimestampRejectsWholeBatch(t *testing.T) {
	svc, st, client := newTestService(t)
	ctx := context.Background()

	now := time.Now().Unix()
	records := []model.Record{
		{MetricName: "cpu_usage_percent", ValueKind: model.KindFloat, Value: 45.0, Timestamp: now},
		{MetricName: "cpu_usage_percent", ValueKind: model.KindFloat, Value: 46.0, Timestamp: now + 600},
	}

	_, err := svc.WriteBatch(ctx, client, records)
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !errors.Is(err, errors.ErrFutureTimestamp) {
		t.Errorf("error = %v, want ErrFutureTimestamp", err)
	}

	// No partial acceptance: the valid record must not have landed either.
	total, err := st.CountPoints(ctx, model.KindFloat)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 0 {
		t.Errorf("%d points stored from a rejected batch", total)
	}
}

func TestWriteBatch_FutureSkewWithinBound(t *testing.T) {
	svc, _, client := newTestService(t)
	ctx := context.Background()

	// 299s ahead is inside the allowed skew.
	ts := time.Now().Add(299 * time.Second).Unix()
	n, err := svc.WriteBatch(ctx, client, []model.Record{
		{MetricName: "cpu_usage_percent", ValueKind: model.KindFloat, Value: 45.0, Timestamp: ts},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 1 {
		t.Errorf("accepted %d, want 1", n)
	}
}

func TestWriteBatch_InvalidKindRejects(t *testing.T) {
	svc, _, client := newTestService(t)

	_, err := svc.WriteBatch(context.Background(), client, []model.Record{
		{MetricName: "cpu_usage_percent", ValueKind: "string", Value: 1, Timestamp: 1000},
	})
	if !errors.Is(err, errors.ErrInvalidValueKind) {
		t.Errorf("error = %v, want ErrInvalidValueKind", err)
	}
}

func TestWriteBatch_InvalidNameRejects(t *testing.T) {
	svc, _, client := newTestService(t)

	_, err := svc.WriteBatch(context.Background(), client, []model.Record{
		{MetricName: "cpu usage", ValueKind: model.KindFloat, Value: 1, Timestamp: 1000},
	})
	if !errors.Is(err, errors.ErrInvalidName) {
		t.Errorf("error = %v, want ErrInvalidName", err)
	}
}

func TestWriteBatch_LabelOrderSharesSeries(t *testing.T) {
	svc, st, client := newTestService(t)
	ctx := context.Background()

	if _, err := svc.WriteBatch(ctx, client, []model.Record{
		{MetricName: "temp_celsius", Labels: map[string]string{"sensor": "CPU Temp", "slot": "0"},
			ValueKind: model.KindFloat, Value: 55, Timestamp: 1000},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := svc.WriteBatch(ctx, client, []model.Record{
		{MetricName: "temp_celsius", Labels: map[string]string{"slot": "0", "sensor": "CPU Temp"},
			ValueKind: model.KindFloat, Value: 56, Timestamp: 1030},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	series, err := st.SeriesByMetric(ctx, []string{"temp_celsius"}, nil)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(series) != 1 {
		t.Errorf("got %d series, want 1 (label order must not split a series)", len(series))
	}
}

func TestWriteBatch_MixedKindsSingleTransaction(t *testing.T) {
	svc, st, client := newTestService(t)
	ctx := context.Background()

	n, err := svc.WriteBatch(ctx, client, []model.Record{
		{MetricName: "cpu_usage_percent", ValueKind: model.KindFloat, Value: 45.0, Timestamp: 1000},
		{MetricName: "net_rx_bytes", ValueKind: model.KindInt, Value: 12345, Timestamp: 1000},
		{MetricName: "net_tx_bytes", ValueKind: model.KindInt, Value: 54321, Timestamp: 1000},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 3 {
		t.Errorf("accepted %d, want 3", n)
	}

	ints, _ := st.CountPoints(ctx, model.KindInt)
	floats, _ := st.CountPoints(ctx, model.KindFloat)
	if ints != 2 || floats != 1 {
		t.Errorf("stored int=%d float=%d, want 2/1", ints, floats)
	}
}

func TestAppendLogs(t *testing.T) {
	svc, st, client := newTestService(t)
	ctx := context.Background()

	err := svc.AppendLogs(ctx, client, []model.LogEntry{
		{Source: "dmesg", Line: "nvme nvme0: resetting controller", Timestamp: 100},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := st.RecentLogEntries(ctx, client, 10)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d entries, want 1", len(got))
	}
}
