// Package model defines the core data model shared by the ingestion and
// query paths: labeled metric records as submitted by agents, value kinds,
// and the samples returned by range queries.
package model

import (
	"fmt"
	"time"
)

// =============================================================================
// Value Kinds
// =============================================================================

// ValueKind selects which physical point table a series is stored in.
// The kind is fixed at series creation and never changes.
type ValueKind string

const (
	KindInt   ValueKind = "int"
	KindFloat ValueKind = "float"
)

// ParseValueKind parses a value kind string.
func ParseValueKind(s string) (ValueKind, error) {
	switch s {
	case "int":
		return KindInt, nil
	case "float":
		return KindFloat, nil
	default:
		return "", fmt.Errorf("unknown value kind %q", s)
	}
}

// Valid reports whether k is a known value kind.
func (k ValueKind) Valid() bool {
	return k == KindInt || k == KindFloat
}

// =============================================================================
// Records and Samples
// =============================================================================

// Record is one metric observation submitted by an agent. Value is carried
// as float64 on the wire regardless of kind; int-kind values are truncated
// at storage time.
type Record struct {
	MetricName string            `json:"metric_name"`
	Labels     map[string]string `json:"labels,omitempty"`
	ValueKind  ValueKind         `json:"value_kind"`
	Value      float64           `json:"value"`
	Timestamp  int64             `json:"timestamp"` // Unix seconds
}

// LogEntry is a log line submitted alongside a metrics batch. Log entries
// bypass the series model and land in append-only storage.
type LogEntry struct {
	Source    string `json:"source"`
	Line      string `json:"line"`
	Timestamp int64  `json:"timestamp"` // Unix seconds
}

// Sample is one point returned by a range query, joined with the identity
// of the client that produced it.
type Sample struct {
	ClientID  int64   `json:"client_id"`
	SeriesID  int64   `json:"series_id,omitempty"`
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Client is the slice of fleet-node identity the core needs: its id and
// the last-seen heartbeat used for default query scoping.
type Client struct {
	ID       int64
	Name     string
	LastSeen time.Time
}
