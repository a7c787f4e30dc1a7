package sandbox

import (
	"fmt"
	"math"
	"slices"

	"github.com/habiliai/dataagent/warehouse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// percentile uses linear interpolation between closest ranks, p in [0, 100].
func percentile(xs []float64, p float64) (float64, error) {
	if len(xs) == 0 {
		return math.NaN(), nil
	}
	if p < 0 || p > 100 {
		return 0, fmt.Errorf("percentile must be between 0 and 100, got %g", p)
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo)), nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// stdDev is the sample standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}

func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Variance(xs, nil)
}

func nonNull(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func numbersOf(name string, values []any) ([]float64, error) {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("column %q is not numeric (found %q)", name, warehouse.FormatValue(v))
		}
		out = append(out, f)
	}
	return out, nil
}

func extreme(values []any, sign int) any {
	var best any
	for _, v := range nonNull(values) {
		if best == nil || compareValues(v, best)*sign > 0 {
			best = v
		}
	}
	return best
}

func unique(values []any) []any {
	seen := map[string]struct{}{}
	var out []any
	for _, v := range values {
		key := fmt.Sprintf("%T:%v", v, v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// aggregate reduces the values of one column, as used by columns and group_by.
func aggregate(fn, column string, values []any) (any, error) {
	switch fn {
	case "count":
		return int64(len(nonNull(values))), nil
	case "size":
		return int64(len(values)), nil
	case "nunique":
		return int64(len(unique(nonNull(values)))), nil
	case "min":
		return extreme(values, -1), nil
	case "max":
		return extreme(values, 1), nil
	case "first":
		if len(values) == 0 {
			return nil, nil
		}
		return values[0], nil
	case "last":
		if len(values) == 0 {
			return nil, nil
		}
		return values[len(values)-1], nil
	}

	xs, err := numbersOf(column, values)
	if err != nil {
		return nil, err
	}
	switch fn {
	case "sum":
		return floats.Sum(xs), nil
	case "mean":
		return mean(xs), nil
	case "median":
		return median(xs), nil
	case "std":
		return stdDev(xs), nil
	case "var":
		return variance(xs), nil
	default:
		return nil, fmt.Errorf("unknown aggregation %q", fn)
	}
}
