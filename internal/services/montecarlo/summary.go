package montecarlo

import (
	"fmt"
	"slices"

	"StockCast/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// Summarize computes the mean, median and the 2.5th/97.5th percentiles of the
// terminal prices. Percentiles interpolate linearly between order statistics.
func Summarize(final []float64) (models.Summary, error) {
	if len(final) == 0 {
		return models.Summary{}, fmt.Errorf("summarize: %w: no terminal prices", models.ErrInvalidParameter)
	}
	sorted := slices.Clone(final)
	slices.Sort(sorted)

	s := models.Summary{
		Expected: stat.Mean(final, nil),
		Median:   Percentile(sorted, 50),
		CILower:  Percentile(sorted, 2.5),
		CIUpper:  Percentile(sorted, 97.5),
	}
	for _, v := range []float64{s.Expected, s.Median, s.CILower, s.CIUpper} {
		if !models.IsFinite(v) {
			return models.Summary{}, fmt.Errorf("summarize: %w: non-finite statistic %v", models.ErrNumericDegeneracy, v)
		}
	}
	return s, nil
}

// Percentile returns the q-th percentile (0..100) of an ascending slice using
// the "linear" rule: rank h = (n-1)·q/100, value x[⌊h⌋] + (h-⌊h⌋)·(x[⌊h⌋+1]-x[⌊h⌋]).
// gonum's stat.Quantile offers only the empirical and Hyndman-Fan type 4
// rules, which disagree with this convention on small samples.
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case n == 1 || q <= 0:
		return sorted[0]
	case q >= 100:
		return sorted[n-1]
	}
	h := float64(n-1) * q / 100
	i := int(h)
	if i >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(i)
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}
