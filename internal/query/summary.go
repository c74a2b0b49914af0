package query

import (
	"context"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/xtxerr/dcmon/internal/model"
)

// relativeAccuracy for percentile sketches: 1% error is invisible on a
// dashboard tile.
const sketchAccuracy = 0.01

// SummaryQuery selects a range to summarize.
type SummaryQuery struct {
	MetricNames []string
	Start       int64
	End         int64
	ClientIDs   []int64
	Filters     model.LabelFilter
}

// Summary holds range statistics for a metric, including sketch-derived
// percentiles.
type Summary struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Sum   float64 `json:"sum"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// SummaryStats computes range statistics over every sample of every
// matching series. Percentiles come from a DDSketch, so memory stays
// bounded regardless of range size. Returns nil when nothing matches.
func (e *Engine) SummaryStats(ctx context.Context, q SummaryQuery) *Summary {
	defer e.observe("summary", e.now())

	raw, err := e.rawSeries(ctx, RawQuery{
		MetricNames: q.MetricNames,
		Start:       q.Start,
		End:         q.End,
		ClientIDs:   q.ClientIDs,
		Filters:     q.Filters,
	})
	if err != nil {
		log.Warn("summary query failed", "metrics", q.MetricNames, "error", err)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	sketch, err := ddsketch.NewDefaultDDSketch(sketchAccuracy)
	if err != nil {
		log.Warn("create sketch failed", "error", err)
		return nil
	}

	s := &Summary{Min: raw[0].Value, Max: raw[0].Value}
	for _, sample := range raw {
		s.Count++
		s.Sum += sample.Value
		if sample.Value < s.Min {
			s.Min = sample.Value
		}
		if sample.Value > s.Max {
			s.Max = sample.Value
		}
		if err := sketch.Add(sample.Value); err != nil {
			log.Warn("sketch add failed", "value", sample.Value, "error", err)
		}
	}
	s.Avg = s.Sum / float64(s.Count)

	if qs, err := sketch.GetValuesAtQuantiles([]float64{0.5, 0.9, 0.95, 0.99}); err == nil {
		s.P50, s.P90, s.P95, s.P99 = qs[0], qs[1], qs[2], qs[3]
	}

	return s
}
