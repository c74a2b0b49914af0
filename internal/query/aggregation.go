package query

// Aggregation collapses the values of several series at one point in time.
type Aggregation string

const (
	AggMax Aggregation = "max"
	AggMin Aggregation = "min"
	AggAvg Aggregation = "avg"
	AggSum Aggregation = "sum"
)

// ParseAggregation parses an aggregation keyword. Unknown keywords fall
// back to max with a warning; dashboards have shipped queries relying on
// that behavior, so it is kept rather than turned into an error.
func ParseAggregation(s string) Aggregation {
	switch Aggregation(s) {
	case AggMax, AggMin, AggAvg, AggSum:
		return Aggregation(s)
	default:
		log.Warn("unknown aggregation keyword, using max", "keyword", s)
		return AggMax
	}
}

// Apply reduces a non-empty value set. Returns ok=false for an empty set.
func (a Aggregation) Apply(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	switch a {
	case AggMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min, true
	case AggAvg:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), true
	case AggSum:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum, true
	default: // AggMax
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max, true
	}
}
