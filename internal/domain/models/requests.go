package models

// Requests for the stock HTTP endpoints. Defined in domain for consistency and reuse.

type HistoryRequest struct {
	Ticker string `param:"ticker" validate:"required,max=32"`
	Start  string `query:"start" default:"2025-02-01" validate:"datetime=2006-01-02"`
	End    string `query:"end" default:"2026-02-06" validate:"datetime=2006-01-02"`
}

// PredictRequest uses pointers for counts so an explicit 0 survives defaulting
// and is rejected instead of silently replaced.
type PredictRequest struct {
	Ticker     string  `param:"ticker" json:"-" validate:"required,max=32"`
	Start      string  `json:"start" default:"2025-02-01" validate:"datetime=2006-01-02"`
	End        string  `json:"end" default:"2026-02-06" validate:"datetime=2006-01-02"`
	NSim       *int    `json:"n_sim" default:"10000"`
	FutureDays *int    `json:"future_days" default:"22"`
	Seed       *uint64 `json:"seed,omitempty"`
}
