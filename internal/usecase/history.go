package usecase

import (
	"context"
	"fmt"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/pkg/util"
)

// HistoryUseCase serves the cleaned price series without forecasting.
type HistoryUseCase struct {
	provider domrepo.HistoryProvider
}

func NewHistoryUseCase(provider domrepo.HistoryProvider) *HistoryUseCase {
	return &HistoryUseCase{provider: provider}
}

func (uc *HistoryUseCase) GetHistory(ctx context.Context, ticker string, r models.DateRange) (*models.HistoryResponse, error) {
	ticker = util.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", models.ErrInvalidParameter)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	h, err := uc.provider.Fetch(ctx, ticker, r)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	if h.Len() == 0 {
		return nil, fmt.Errorf("fetch %s: %w", ticker, models.ErrNotFound)
	}
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("history %s: %w", ticker, err)
	}

	return &models.HistoryResponse{Ticker: ticker, History: HistoryPoints(h)}, nil
}
