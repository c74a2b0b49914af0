// Package archive writes expired points to Parquet files before retention
// deletes them. Cold data stays queryable with external tooling without
// bloating the live database.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/xtxerr/dcmon/internal/store"
)

// Options configures the archive.
type Options struct {
	// Dir is the directory archive files are written into.
	Dir string

	// Compression algorithm name: zstd, snappy, lz4, gzip, none.
	Compression string
}

// DefaultOptions returns default archive options.
func DefaultOptions() Options {
	return Options{
		Dir:         "archive",
		Compression: "zstd",
	}
}

// codec maps a compression name to the parquet-go codec.
func codec(name string) compress.Codec {
	switch name {
	case "snappy":
		return &parquet.Snappy
	case "lz4":
		return &parquet.Lz4Raw
	case "gzip":
		return &parquet.Gzip
	case "none":
		return &parquet.Uncompressed
	default:
		return &parquet.Zstd
	}
}

// PointRow is one archived point in Parquet format.
type PointRow struct {
	ClientID   int64  `parquet:"client_id"`
	SeriesID   int64  `parquet:"series_id"`
	MetricName string `parquet:"metric_name,zstd"`
	Kind       string `parquet:"kind,zstd"`
	Ts         int64  `parquet:"ts"`
	Value      float64 `parquet:"value"`
}

// Archiver writes batches of expired points to timestamped Parquet files.
type Archiver struct {
	opts Options
}

// New creates an archiver.
func New(opts Options) *Archiver {
	if opts.Dir == "" {
		opts.Dir = DefaultOptions().Dir
	}
	return &Archiver{opts: opts}
}

// WritePoints writes one batch of expired points to a new file named after
// the source table and the wall-clock time of the run, e.g.
// "points_int_2026-08-31_14-05.parquet". One retention run archives each
// table separately under the same runTime; the table component keeps those
// files apart, and an existing file is never overwritten.
// Returns the file path and the number of rows written.
func (a *Archiver) WritePoints(table string, points []store.ExpiredPoint, runTime time.Time) (string, int64, error) {
	if len(points) == 0 {
		return "", 0, nil
	}

	if err := os.MkdirAll(a.opts.Dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create archive dir: %w", err)
	}

	name := table + "_" + runTime.UTC().Format("2006-01-02_15-04") + ".parquet"
	path := filepath.Join(a.opts.Dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("create archive file: %w", err)
	}

	writer := parquet.NewGenericWriter[PointRow](f,
		parquet.Compression(codec(a.opts.Compression)))

	rows := make([]PointRow, len(points))
	for i, p := range points {
		rows[i] = PointRow{
			ClientID:   p.ClientID,
			SeriesID:   p.SeriesID,
			MetricName: p.MetricName,
			Kind:       string(p.Kind),
			Ts:         p.Ts,
			Value:      p.Value,
		}
	}

	n, err := writer.Write(rows)
	if err != nil {
		writer.Close()
		f.Close()
		return "", 0, fmt.Errorf("write rows: %w", err)
	}

	if err := writer.Close(); err != nil {
		f.Close()
		return "", 0, fmt.Errorf("close writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("close file: %w", err)
	}

	return path, int64(n), nil
}

// ReadPoints reads every archived point from a file. Used by tests and
// offline inspection tooling.
func ReadPoints(path string) ([]PointRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[PointRow](f)
	defer reader.Close()

	rows := make([]PointRow, reader.NumRows())
	if len(rows) == 0 {
		return nil, nil
	}

	n, err := reader.Read(rows)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("read archive: %w", err)
	}

	return rows[:n], nil
}
