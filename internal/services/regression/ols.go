// Package regression fits the next-day log-return model.
//
// The fit mirrors an ordinary least squares with intercept: predictors and
// target are centered, each predictor is scaled to unit norm, the system is
// solved for the minimum-norm least-squares coefficients, and the intercept is
// recovered from the means. A predictor that is constant over the training
// set, up to rounding noise, gets a zero coefficient.
package regression

import (
	"fmt"
	"math"

	"StockCast/internal/domain/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MinRows is the smallest training set the fitter accepts.
const MinRows = models.PredictorCount + 1

const (
	// constantTolerance is the relative spread under which a predictor
	// column counts as constant.
	constantTolerance = 1e-9
	// maxExtrapolation bounds how far mu_next may sit outside the training
	// targets, in multiples of their range.
	maxExtrapolation = 10.0
)

// Fit estimates the linear model on set.Rows, the residual sigma (ddof=1)
// and the one-step forecast from set.Latest.
func Fit(set models.FeatureSet) (models.FittedModel, error) {
	n := len(set.Rows)
	if n < MinRows {
		return models.FittedModel{}, fmt.Errorf("fit: %w: %d usable rows, need at least %d",
			models.ErrInsufficientData, n, MinRows)
	}
	if !set.HasLatest {
		return models.FittedModel{}, fmt.Errorf("fit: %w: final day has undefined predictors",
			models.ErrInsufficientData)
	}

	const p = models.PredictorCount
	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = make([]float64, n)
	}
	ys := make([]float64, n)
	for i, r := range set.Rows {
		for j, v := range r.Predictors() {
			cols[j][i] = v
		}
		ys[i] = r.Target
	}

	xMean := make([]float64, p)
	for j := range cols {
		xMean[j] = stat.Mean(cols[j], nil)
	}
	yMean := stat.Mean(ys, nil)

	// Constant columns are left out of the solve and keep a zero coefficient.
	// The rest are centered and scaled to unit norm so predictors of very
	// different magnitude share one rank cutoff.
	active := make([]int, 0, p)
	scale := make([]float64, p)
	for j := range cols {
		if isConstant(cols[j], xMean[j]) {
			continue
		}
		ss := 0.0
		for _, v := range cols[j] {
			d := v - xMean[j]
			ss += d * d
		}
		scale[j] = math.Sqrt(ss)
		active = append(active, j)
	}

	coef := make([]float64, p)
	if len(active) > 0 {
		x := mat.NewDense(n, len(active), nil)
		y := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			for k, j := range active {
				x.Set(i, k, (cols[j][i]-xMean[j])/scale[j])
			}
			y.Set(i, 0, ys[i]-yMean)
		}
		sol, err := leastSquares(x, y)
		if err != nil {
			return models.FittedModel{}, fmt.Errorf("fit: %w", err)
		}
		for k, j := range active {
			coef[j] = sol[k] / scale[j]
		}
	}

	m := models.FittedModel{TrainingRows: n}
	m.Intercept = yMean
	for j := 0; j < p; j++ {
		m.Coefficients[j] = coef[j]
		m.Intercept -= coef[j] * xMean[j]
	}

	residuals := make([]float64, n)
	for i, r := range set.Rows {
		residuals[i] = r.Target - m.Predict(r.Predictors())
	}
	m.SigmaHat = stat.StdDev(residuals, nil)
	m.MuNext = m.Predict(set.Latest.Predictors())

	if !models.IsFinite(m.SigmaHat) || !models.IsFinite(m.MuNext) || !models.IsFinite(m.Intercept) {
		return models.FittedModel{}, fmt.Errorf("fit: %w: sigma=%v mu_next=%v",
			models.ErrNumericDegeneracy, m.SigmaHat, m.MuNext)
	}
	lo, hi := floats.Min(ys), floats.Max(ys)
	slack := maxExtrapolation*(hi-lo) + constantTolerance*math.Max(math.Abs(lo), math.Abs(hi))
	if m.MuNext < lo-slack || m.MuNext > hi+slack {
		return models.FittedModel{}, fmt.Errorf("fit: %w: mu_next=%v outside training targets [%v, %v]",
			models.ErrNumericDegeneracy, m.MuNext, lo, hi)
	}
	return m, nil
}

// isConstant reports whether a column varies by no more than rounding noise
// relative to its own magnitude.
func isConstant(col []float64, mean float64) bool {
	spread, mag := 0.0, 0.0
	for _, v := range col {
		spread = math.Max(spread, math.Abs(v-mean))
		mag = math.Max(mag, math.Abs(v))
	}
	return spread <= constantTolerance*mag
}

// leastSquares returns the minimum-norm solution of min ||a·x - b|| using a
// thin SVD. Singular values below eps·max(rows, cols)·σ_max are discarded.
func leastSquares(a, b *mat.Dense) ([]float64, error) {
	rows, cols := a.Dims()
	out := make([]float64, cols)

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: svd did not converge", models.ErrNumericDegeneracy)
	}
	rcond := math.Nextafter(1, 2) - 1
	rcond *= float64(max(rows, cols))
	rank := svd.Rank(rcond)
	if rank == 0 {
		return out, nil
	}

	var sol mat.Dense
	svd.SolveTo(&sol, b, rank)
	for j := range out {
		out[j] = sol.At(j, 0)
	}
	return out, nil
}
