package models

import (
	"math"
	"time"
)

// FeatureRow holds the engineered values for one trading day.
// Undefined quantities are NaN; Target is NaN for the final day.
type FeatureRow struct {
	Date       time.Time
	Close      float64
	LogReturn  float64
	ZScore20   float64
	Var20      float64
	ReturnLag1 float64
	Target     float64
}

// Predictors returns the regressors in fixed order: z_score_20, var_20, return_lag1.
func (r FeatureRow) Predictors() []float64 {
	return []float64{r.ZScore20, r.Var20, r.ReturnLag1}
}

// HasPredictors reports whether all three regressors are finite.
func (r FeatureRow) HasPredictors() bool {
	return finite(r.ZScore20) && finite(r.Var20) && finite(r.ReturnLag1)
}

// IsTrainable reports whether the row can be used for fitting.
func (r FeatureRow) IsTrainable() bool {
	return r.HasPredictors() && finite(r.LogReturn) && finite(r.Target)
}

// FeatureSet is the output of the feature builder.
type FeatureSet struct {
	// Rows are the retained training rows in chronological order.
	Rows []FeatureRow
	// Latest is the final day's row, used for the one-step forecast. It is
	// set only when that row has defined predictors. Its Target is NaN.
	Latest    FeatureRow
	HasLatest bool
}

// PredictorCount is the number of regressors in the linear model.
const PredictorCount = 3

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool { return finite(v) }
