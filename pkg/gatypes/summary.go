package gatypes

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summarize computes one generation's (max, mean, q1, median, q3, min)
// row over the non-missing entries of fitness. Quantiles use gonum/stat's
// empirical CDF inverse.
func Summarize(fitness FitnessVector) SummaryRow {
	vals := make([]float64, 0, len(fitness))
	for _, v := range fitness {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		nan := math.NaN()
		return SummaryRow{Max: nan, Mean: nan, Q1: nan, Median: nan, Q3: nan, Min: nan}
	}

	sort.Float64s(vals)

	return SummaryRow{
		Max:    vals[len(vals)-1],
		Mean:   stat.Mean(vals, nil),
		Q1:     stat.Quantile(0.25, stat.Empirical, vals, nil),
		Median: stat.Quantile(0.5, stat.Empirical, vals, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, vals, nil),
		Min:    vals[0],
	}
}
