package models

import "time"

// FittedModel is the per-request linear model; never shared across requests.
type FittedModel struct {
	Intercept    float64
	Coefficients [PredictorCount]float64
	SigmaHat     float64 // sample std (ddof=1) of in-sample residuals
	MuNext       float64 // one-step forecast from FeatureSet.Latest
	TrainingRows int
}

// Predict evaluates the model on a predictor vector.
func (m FittedModel) Predict(x []float64) float64 {
	y := m.Intercept
	for i := 0; i < PredictorCount && i < len(x); i++ {
		y += m.Coefficients[i] * x[i]
	}
	return y
}

// PathPoint is one day of a simulated trajectory.
type PathPoint struct {
	Day   int     `json:"day"`
	Price float64 `json:"price"`
}

// SimulationResult is created fresh per request and dropped after assembly.
type SimulationResult struct {
	FinalPrices []float64
	SamplePaths [][]PathPoint
}

// Summary aggregates the terminal-price distribution.
type Summary struct {
	Expected float64
	Median   float64
	CILower  float64
	CIUpper  float64
}

// HistoryPoint is a chronological {date, close} pair.
type HistoryPoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// PredictionResponse is the externally visible result.
type PredictionResponse struct {
	Ticker        string         `json:"ticker"`
	CurrentPrice  float64        `json:"current_price"`
	FutureDays    int            `json:"future_days"`
	NSimulations  int            `json:"n_simulations"`
	ExpectedPrice float64        `json:"expected_price"`
	MedianPrice   float64        `json:"median_price"`
	CI95Lower     float64        `json:"ci_95_lower"`
	CI95Upper     float64        `json:"ci_95_upper"`
	Sigma         float64        `json:"sigma"`
	History       []HistoryPoint `json:"history"`
	SamplePaths   [][]PathPoint  `json:"sample_paths"`
}

// HistoryResponse is returned by the history-only endpoint.
type HistoryResponse struct {
	Ticker  string         `json:"ticker"`
	History []HistoryPoint `json:"history"`
}

// PredictParams is the validated input of one prediction.
type PredictParams struct {
	Ticker     string
	Range      DateRange
	NSim       int
	FutureDays int
	Seed       *uint64
}

// PredictionEvent is published after a successful prediction.
type PredictionEvent struct {
	Ticker        string    `json:"ticker"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	CurrentPrice  float64   `json:"current_price"`
	FutureDays    int       `json:"future_days"`
	NSimulations  int       `json:"n_simulations"`
	ExpectedPrice float64   `json:"expected_price"`
	MedianPrice   float64   `json:"median_price"`
	CI95Lower     float64   `json:"ci_95_lower"`
	CI95Upper     float64   `json:"ci_95_upper"`
	Sigma         float64   `json:"sigma"`
	MuNext        float64   `json:"mu_next"`
	CreatedAt     time.Time `json:"created_at"`
}
