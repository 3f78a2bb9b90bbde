package features

import (
	"fmt"
	"math"

	"StockCast/internal/domain/models"
)

// Window is the trailing observation count for all rolling statistics.
const Window = 20

// zeroStdTolerance is the relative threshold under which a rolling standard
// deviation counts as zero. Closes hitting it get no z-score and the row is
// dropped; returns hitting it get a var_20 of exactly zero.
const zeroStdTolerance = 1e-12

// MinHistory is the shortest history that can yield one training row.
const MinHistory = Window + 2

// LogReturns computes r_t = ln(C_t / C_{t-1}).
// The result has the same length as closes; index 0 is NaN.
func LogReturns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	out[0] = math.NaN()
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Log(cur / prev)
	}
	return out
}

// Build derives one FeatureRow per trading day and keeps the rows where
// z_score_20, var_20, return_lag1 and target are all defined.
// Every predictor at index t reads only records at indices <= t; target reads t+1.
//
// Latest is the final day only. When its predictors are undefined, for
// example because the last Window closes are flat, HasLatest is false and no
// forecast can be made from the set.
func Build(h models.PriceHistory) (models.FeatureSet, error) {
	if err := h.Validate(); err != nil {
		return models.FeatureSet{}, fmt.Errorf("build features: %w", err)
	}
	closes := h.Closes()
	rets := LogReturns(closes)
	all := computeRows(h, closes, rets)

	set := models.FeatureSet{}
	if n := len(all); n > Window {
		set.Rows = make([]models.FeatureRow, 0, n-Window-1)
	}
	for _, row := range all {
		if row.IsTrainable() {
			set.Rows = append(set.Rows, row)
		}
	}
	if n := len(all); n > 0 && all[n-1].HasPredictors() {
		set.Latest = all[n-1]
		set.HasLatest = true
	}
	return set, nil
}

func computeRows(h models.PriceHistory, closes, rets []float64) []models.FeatureRow {
	nan := math.NaN()
	closeWin := newRollingWindow(Window)
	retWin := newRollingWindow(Window)
	rows := make([]models.FeatureRow, len(closes))

	for t, c := range closes {
		closeWin.Push(c)
		if t >= 1 && !math.IsNaN(rets[t]) {
			retWin.Push(rets[t])
		}

		row := models.FeatureRow{
			Date:       h.Records[t].Date,
			Close:      c,
			LogReturn:  rets[t],
			ZScore20:   nan,
			Var20:      nan,
			ReturnLag1: nan,
			Target:     nan,
		}
		if closeWin.Full() {
			mean, variance := closeWin.MeanVar()
			sd := math.Sqrt(variance)
			if sd > zeroStdTolerance*math.Abs(mean) {
				row.ZScore20 = (c - mean) / sd
			}
		}
		if retWin.Full() {
			mean, variance := retWin.MeanVar()
			if math.Sqrt(variance) <= zeroStdTolerance*math.Abs(mean) {
				variance = 0
			}
			row.Var20 = variance
		}
		if t >= 1 {
			row.ReturnLag1 = rets[t-1]
		}
		rows[t] = row
	}
	for t := 0; t+1 < len(rows); t++ {
		rows[t].Target = rets[t+1]
	}
	return rows
}
