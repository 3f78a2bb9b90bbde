package service

import (
	"context"

	"StockCast/internal/domain/models"
)

// Predictor runs the full fetch, fit and simulate pipeline for one request.
type Predictor interface {
	Predict(ctx context.Context, p models.PredictParams) (*models.PredictionResponse, error)
}

// HistoryReader returns the validated price history for display.
type HistoryReader interface {
	GetHistory(ctx context.Context, ticker string, r models.DateRange) (*models.HistoryResponse, error)
}
