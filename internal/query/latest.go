package query

import (
	"context"

	"github.com/xtxerr/dcmon/internal/model"
	"github.com/xtxerr/dcmon/internal/store"
)

// LatestValue resolves the most recent value for a client's metric.
//
// Without an aggregation it returns the value of the single most recently
// timestamped point across all matching series; when several series tie on
// the latest timestamp the lowest series id wins, so the answer is stable
// across calls.
//
// With an aggregation it first finds the maximum timestamp T present in
// ANY matching series, then aggregates the values of every series that has
// a point exactly at T. Series without a sample at T are excluded, not
// zero-filled; there is no interpolation or carry-forward.
//
// ok=false means no matching series has any point.
func (e *Engine) LatestValue(ctx context.Context, clientID int64, metricNames []string, filters model.LabelFilter, aggregation string) (float64, bool) {
	defer e.observe("latest", e.now())

	value, ok, err := e.latestValue(ctx, clientID, metricNames, filters, aggregation)
	if err != nil {
		log.Warn("latest value query failed", "client", clientID, "metrics", metricNames, "error", err)
		return 0, false
	}
	return value, ok
}

func (e *Engine) latestValue(ctx context.Context, clientID int64, metricNames []string, filters model.LabelFilter, aggregation string) (float64, bool, error) {
	if len(metricNames) == 0 {
		return 0, false, nil
	}

	ss, err := e.resolveSeries(ctx, metricNames, []int64{clientID}, filters)
	if err != nil {
		return 0, false, err
	}
	if ss.empty() {
		return 0, false, nil
	}

	if aggregation == "" {
		return e.latestSingle(ctx, ss)
	}
	return e.latestAggregated(ctx, ss, ParseAggregation(aggregation))
}

// latestSingle picks the single most recent point across both kind tables.
func (e *Engine) latestSingle(ctx context.Context, ss *seriesSet) (float64, bool, error) {
	var best store.PointRow
	var found bool

	for kind, ids := range ss.byKind {
		row, ok, err := e.store.LatestPoint(ctx, kind, ids)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			continue
		}
		// Later timestamp wins; on a cross-table tie the lower series id
		// does, matching the per-table tie-break.
		if !found || row.Ts > best.Ts ||
			(row.Ts == best.Ts && row.SeriesID < best.SeriesID) {
			best = row
			found = true
		}
	}

	if !found {
		return 0, false, nil
	}
	return best.Value, true, nil
}

// latestAggregated aggregates the values of all series that have a point
// exactly at the global maximum timestamp.
func (e *Engine) latestAggregated(ctx context.Context, ss *seriesSet, agg Aggregation) (float64, bool, error) {
	// Pass 1: the maximum timestamp present in any matching series.
	var maxTs int64
	var found bool
	for kind, ids := range ss.byKind {
		ts, ok, err := e.store.MaxTimestamp(ctx, kind, ids)
		if err != nil {
			return 0, false, err
		}
		if ok && (!found || ts > maxTs) {
			maxTs = ts
			found = true
		}
	}
	if !found {
		return 0, false, nil
	}

	// Pass 2: every value sampled exactly at that timestamp.
	var values []float64
	for kind, ids := range ss.byKind {
		rows, err := e.store.PointsAt(ctx, kind, ids, maxTs)
		if err != nil {
			return 0, false, err
		}
		for _, r := range rows {
			values = append(values, r.Value)
		}
	}

	v, ok := agg.Apply(values)
	return v, ok, nil
}
