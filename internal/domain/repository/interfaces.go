package repository

import (
	"context"

	"StockCast/internal/domain/models"
)

// HistoryProvider supplies daily price history for a ticker over [start, end).
// Implementations return models.ErrNotFound (wrapped) when nothing exists.
type HistoryProvider interface {
	Fetch(ctx context.Context, ticker string, r models.DateRange) (models.PriceHistory, error)
	Name() string
}

// PriceArchive persists fetched history for later reuse as a provider.
type PriceArchive interface {
	StoreHistory(ctx context.Context, h models.PriceHistory) error
}

// PredictionPublisher emits a summary event after each successful prediction.
type PredictionPublisher interface {
	PublishPrediction(ctx context.Context, ev models.PredictionEvent) error
	Close() error
}

// Metrics records prediction pipeline telemetry.
type Metrics interface {
	RecordStage(stage string, seconds float64)
	RecordError(kind string)
	RecordForecast(ticker string, sigma float64, simulations int)
	RecordProviderFetch(provider string, ok bool)
}
