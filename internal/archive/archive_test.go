package archive

import (
	"testing"
	"time"

	"github.com/xtxerr/dcmon/internal/model"
	"github.com/xtxerr/dcmon/internal/store"
)

func TestWritePoints_Roundtrip(t *testing.T) {
	a := New(Options{Dir: t.TempDir(), Compression: "zstd"})

	points := []store.ExpiredPoint{
		{SeriesID: 1, ClientID: 7, MetricName: "cpu_usage_percent", Kind: model.KindFloat, Ts: 1000, Value: 45.0},
		{SeriesID: 2, ClientID: 7, MetricName: "mem_used_bytes", Kind: model.KindInt, Ts: 1000, Value: 1 << 30},
	}

	runTime := time.Date(2026, 8, 31, 14, 5, 0, 0, time.UTC)
	path, n, err := a.WritePoints("points_float", points, runTime)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 2 {
		t.Errorf("wrote %d rows, want 2", n)
	}

	rows, err := ReadPoints(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("read %d rows, want 2", len(rows))
	}
	if rows[0].MetricName != "cpu_usage_percent" || rows[0].Value != 45.0 {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Kind != "int" {
		t.Errorf("row 1 kind = %q, want int", rows[1].Kind)
	}
}

func TestWritePoints_FileNaming(t *testing.T) {
	a := New(Options{Dir: t.TempDir()})

	runTime := time.Date(2026, 8, 31, 14, 5, 0, 0, time.UTC)
	path, _, err := a.WritePoints("points_int", []store.ExpiredPoint{
		{SeriesID: 1, ClientID: 1, MetricName: "m_x", Kind: model.KindInt, Ts: 1, Value: 1},
	}, runTime)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	const want = "points_int_2026-08-31_14-05.parquet"
	if got := path[len(path)-len(want):]; got != want {
		t.Errorf("file name = %q, want %q", got, want)
	}
}

func TestWritePoints_TablesDoNotCollide(t *testing.T) {
	a := New(Options{Dir: t.TempDir()})

	// A retention run writes both tables under one runTime; each table
	// must land in its own file, and neither write may clobber the other.
	runTime := time.Date(2026, 8, 31, 12, 14, 0, 0, time.UTC)
	intPath, _, err := a.WritePoints("points_int", []store.ExpiredPoint{
		{SeriesID: 1, ClientID: 1, MetricName: "fan_rpm", Kind: model.KindInt, Ts: 1, Value: 4000},
	}, runTime)
	if err != nil {
		t.Fatalf("write int: %v", err)
	}
	floatPath, _, err := a.WritePoints("points_float", []store.ExpiredPoint{
		{SeriesID: 2, ClientID: 1, MetricName: "temp_celsius", Kind: model.KindFloat, Ts: 1, Value: 55},
	}, runTime)
	if err != nil {
		t.Fatalf("write float: %v", err)
	}
	if intPath == floatPath {
		t.Fatalf("both tables archived to %q", intPath)
	}

	ints, err := ReadPoints(intPath)
	if err != nil {
		t.Fatalf("read int archive: %v", err)
	}
	if len(ints) != 1 || ints[0].MetricName != "fan_rpm" {
		t.Errorf("int archive = %+v", ints)
	}
}

func TestWritePoints_RefusesOverwrite(t *testing.T) {
	a := New(Options{Dir: t.TempDir()})

	runTime := time.Date(2026, 8, 31, 12, 14, 0, 0, time.UTC)
	points := []store.ExpiredPoint{
		{SeriesID: 1, ClientID: 1, MetricName: "fan_rpm", Kind: model.KindInt, Ts: 1, Value: 4000},
	}
	if _, _, err := a.WritePoints("points_int", points, runTime); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, _, err := a.WritePoints("points_int", points, runTime); err == nil {
		t.Error("second write to the same file should fail, not truncate")
	}
}

func TestWritePoints_EmptyBatch(t *testing.T) {
	a := New(Options{Dir: t.TempDir()})

	path, n, err := a.WritePoints("points_int", nil, time.Now())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if path != "" || n != 0 {
		t.Errorf("empty batch wrote %q (%d rows)", path, n)
	}
}
