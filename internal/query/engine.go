// Package query implements the read path: label filtering, latest-value
// resolution, raw and aggregated range reads, and rate computation.
//
// The unit the engine reasons about is the series set: every series that
// carries one of the requested metric names and satisfies the label
// filter. Aggregation always operates across that set, never inside a
// single series.
//
// Read-side error contract: storage failures and malformed inputs produce
// an empty result, not an error. Dashboards polling these methods prefer a
// blank panel over a broken page; the strict contract lives on the write
// side.
package query

import (
	"context"
	"sort"
	"time"

	"github.com/xtxerr/dcmon/internal/logging"
	"github.com/xtxerr/dcmon/internal/metrics"
	"github.com/xtxerr/dcmon/internal/model"
	"github.com/xtxerr/dcmon/internal/store"
	"github.com/xtxerr/dcmon/internal/validation"
)

var log = logging.Component("query")

// DefaultActiveWindow scopes queries without an explicit client list to
// clients whose heartbeat is this recent. A freshness filter, not a
// correctness one.
const DefaultActiveWindow = time.Hour

// Engine answers queries against the series registry and point store.
type Engine struct {
	store *store.Store
	stats *metrics.QueryMetrics

	activeWindow time.Duration

	// now is replaceable for tests.
	now func() time.Time
}

// New creates a query engine. stats may be nil.
func New(st *store.Store, stats *metrics.QueryMetrics) *Engine {
	return &Engine{
		store:        st,
		stats:        stats,
		activeWindow: DefaultActiveWindow,
		now:          time.Now,
	}
}

// SetActiveWindow overrides the default client activity window. Zero and
// negative values are ignored.
func (e *Engine) SetActiveWindow(d time.Duration) {
	if d > 0 {
		e.activeWindow = d
	}
}

// RawQuery selects every sample of every matching series in a time range.
type RawQuery struct {
	MetricNames []string
	Start       int64
	End         int64
	ClientIDs   []int64 // empty: default to recently active clients
	Filters     model.LabelFilter
}

// AggQuery is a RawQuery whose per-(client, timestamp) value sets collapse
// under an aggregation.
type AggQuery struct {
	RawQuery
	Aggregation string
}

// RateQuery computes windowed rates of change over counter series.
type RateQuery struct {
	MetricNames   []string
	Start         int64
	End           int64
	WindowMinutes int
	Aggregation   string
	ClientIDs     []int64
	Filters       model.LabelFilter
}

// =============================================================================
// Series set resolution
// =============================================================================

// seriesSet is the resolved form of a query's series selection, split by
// value kind so each id list hits the right point table.
type seriesSet struct {
	byKind map[model.ValueKind][]int64
}

func (ss *seriesSet) empty() bool {
	for _, ids := range ss.byKind {
		if len(ids) > 0 {
			return false
		}
	}
	return true
}

// resolveSeries returns the series set for the requested metric names,
// clients (defaulted to recently active when empty) and label filter.
func (e *Engine) resolveSeries(ctx context.Context, metricNames []string, clientIDs []int64, filters model.LabelFilter) (*seriesSet, error) {
	if len(clientIDs) == 0 {
		active, err := e.store.ActiveClientIDs(ctx, e.now().Add(-e.activeWindow))
		if err != nil {
			return nil, err
		}
		if len(active) == 0 {
			return &seriesSet{byKind: map[model.ValueKind][]int64{}}, nil
		}
		clientIDs = active
	}

	series, err := e.store.SeriesByMetric(ctx, metricNames, clientIDs)
	if err != nil {
		return nil, err
	}

	ss := &seriesSet{byKind: map[model.ValueKind][]int64{}}
	for i := range series {
		if !filters.Matches(series[i].Labels) {
			continue
		}
		ss.byKind[series[i].Kind] = append(ss.byKind[series[i].Kind], series[i].ID)
	}

	return ss, nil
}

// =============================================================================
// RawSeries
// =============================================================================

// RawSeries returns every sample from every matching series in the range,
// joined with client identity and completely unaggregated: callers may see
// several values per (client, timestamp) when several series match.
func (e *Engine) RawSeries(ctx context.Context, q RawQuery) []model.Sample {
	defer e.observe("raw", e.now())

	samples, err := e.rawSeries(ctx, q)
	if err != nil {
		log.Warn("raw series query failed", "metrics", q.MetricNames, "error", err)
		return nil
	}
	return samples
}

func (e *Engine) rawSeries(ctx context.Context, q RawQuery) ([]model.Sample, error) {
	if len(q.MetricNames) == 0 {
		return nil, nil
	}
	if err := validation.ValidateTimeRange(q.Start, q.End); err != nil {
		return nil, err
	}

	ss, err := e.resolveSeries(ctx, q.MetricNames, q.ClientIDs, q.Filters)
	if err != nil {
		return nil, err
	}
	if ss.empty() {
		return nil, nil
	}

	var samples []model.Sample
	for kind, ids := range ss.byKind {
		rows, err := e.store.ReadRange(ctx, kind, ids, q.Start, q.End)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			samples = append(samples, model.Sample{
				ClientID:  r.ClientID,
				SeriesID:  r.SeriesID,
				Timestamp: r.Ts,
				Value:     r.Value,
			})
		}
	}

	sortSamples(samples)
	return samples, nil
}

// =============================================================================
// AggregatedSeries
// =============================================================================

// AggregatedSeries collapses the raw samples at each (client, timestamp)
// into one value using the requested aggregation. This is the read used
// when one logical metric maps to several physical series, such as two PSU
// fans reporting under the same metric name.
func (e *Engine) AggregatedSeries(ctx context.Context, q AggQuery) []model.Sample {
	defer e.observe("aggregated", e.now())

	raw, err := e.rawSeries(ctx, q.RawQuery)
	if err != nil {
		log.Warn("aggregated series query failed", "metrics", q.MetricNames, "error", err)
		return nil
	}

	return combineByClientTime(raw, ParseAggregation(q.Aggregation))
}

// combineByClientTime groups samples by (client, timestamp) and collapses
// each group's values with the aggregation.
func combineByClientTime(samples []model.Sample, agg Aggregation) []model.Sample {
	if len(samples) == 0 {
		return nil
	}

	type key struct {
		client int64
		ts     int64
	}
	groups := make(map[key][]float64)
	for _, s := range samples {
		k := key{s.ClientID, s.Timestamp}
		groups[k] = append(groups[k], s.Value)
	}

	out := make([]model.Sample, 0, len(groups))
	for k, values := range groups {
		v, ok := agg.Apply(values)
		if !ok {
			continue
		}
		out = append(out, model.Sample{ClientID: k.client, Timestamp: k.ts, Value: v})
	}

	sortSamples(out)
	return out
}

// sortSamples orders by timestamp, then client, then series for a
// deterministic result.
func sortSamples(samples []model.Sample) {
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Timestamp != samples[j].Timestamp {
			return samples[i].Timestamp < samples[j].Timestamp
		}
		if samples[i].ClientID != samples[j].ClientID {
			return samples[i].ClientID < samples[j].ClientID
		}
		return samples[i].SeriesID < samples[j].SeriesID
	})
}

func (e *Engine) observe(op string, start time.Time) {
	if e.stats == nil {
		return
	}
	e.stats.QueriesTotal.WithLabelValues(op).Inc()
	e.stats.QueryLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
