package query

import (
	"context"
	"sort"

	"github.com/xtxerr/dcmon/internal/model"
)

// RateSeries computes windowed rates of change over counter metrics.
//
// The rate is computed independently per series BEFORE any cross-series
// combination. Combining unrelated counters first (disk reads vs. disk
// writes, RX vs. TX) interleaves values that differ by orders of
// magnitude and produces meaningless or negative rates; keeping each
// counter isolated until its rates exist is the correctness invariant of
// this whole function.
//
// Per series and per sample, the trailing window supplies a first and a
// last sample; rate = (value_last - value_first) / (time_last -
// time_first). A window with fewer than two samples yields no rate at that
// point. A counter observed lower at the window end than at its start is
// treated as a reset and reported as rate 0, never negative; no
// wraparound correction is attempted.
//
// Only then are the per-series rates combined per (client, timestamp)
// using the requested aggregation; sum is the usual choice for combining
// directional counters like RX+TX.
func (e *Engine) RateSeries(ctx context.Context, q RateQuery) []model.Sample {
	defer e.observe("rate", e.now())

	samples, err := e.rateSeries(ctx, q)
	if err != nil {
		log.Warn("rate series query failed", "metrics", q.MetricNames, "error", err)
		return nil
	}
	return samples
}

func (e *Engine) rateSeries(ctx context.Context, q RateQuery) ([]model.Sample, error) {
	if len(q.MetricNames) == 0 || q.WindowMinutes <= 0 {
		return nil, nil
	}

	raw, err := e.rawSeries(ctx, RawQuery{
		MetricNames: q.MetricNames,
		Start:       q.Start,
		End:         q.End,
		ClientIDs:   q.ClientIDs,
		Filters:     q.Filters,
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	// Partition by series so no two counters ever share a window.
	bySeries := make(map[int64][]model.Sample)
	for _, s := range raw {
		bySeries[s.SeriesID] = append(bySeries[s.SeriesID], s)
	}

	windowSec := int64(q.WindowMinutes) * 60

	var rates []model.Sample
	for _, samples := range bySeries {
		rates = append(rates, seriesRates(samples, windowSec)...)
	}

	return combineByClientTime(rates, ParseAggregation(q.Aggregation)), nil
}

// seriesRates computes the windowed rate at each sample of one series.
// samples must belong to a single series.
func seriesRates(samples []model.Sample, windowSec int64) []model.Sample {
	if len(samples) < 2 {
		return nil
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp < samples[j].Timestamp
	})

	rates := make([]model.Sample, 0, len(samples))
	first := 0

	for i := range samples {
		last := samples[i]

		// Advance the trailing window edge; first never moves backwards,
		// so the scan is linear over the whole series.
		for samples[first].Timestamp < last.Timestamp-windowSec {
			first++
		}

		// Fewer than two samples in the window: the rate is undefined
		// here and the point is omitted.
		if first == i {
			continue
		}

		lo := samples[first]
		elapsed := last.Timestamp - lo.Timestamp
		if elapsed <= 0 {
			continue
		}

		var rate float64
		if last.Value < lo.Value {
			// Counter reset inside the window.
			rate = 0
		} else {
			rate = (last.Value - lo.Value) / float64(elapsed)
		}

		rates = append(rates, model.Sample{
			ClientID:  last.ClientID,
			SeriesID:  last.SeriesID,
			Timestamp: last.Timestamp,
			Value:     rate,
		})
	}

	return rates
}
