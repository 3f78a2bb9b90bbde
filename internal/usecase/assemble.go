package usecase

import (
	"fmt"

	"StockCast/internal/domain/models"
)

// Assemble composes the response from the pipeline outputs.
func Assemble(params models.PredictParams, hist models.PriceHistory, model models.FittedModel,
	s models.Summary, sim models.SimulationResult) *models.PredictionResponse {
	last, _ := hist.Last()
	paths := sim.SamplePaths
	if paths == nil {
		paths = [][]models.PathPoint{}
	}
	return &models.PredictionResponse{
		Ticker:        params.Ticker,
		CurrentPrice:  last.Close,
		FutureDays:    params.FutureDays,
		NSimulations:  params.NSim,
		ExpectedPrice: s.Expected,
		MedianPrice:   s.Median,
		CI95Lower:     s.CILower,
		CI95Upper:     s.CIUpper,
		Sigma:         model.SigmaHat,
		History:       HistoryPoints(hist),
		SamplePaths:   paths,
	}
}

// HistoryPoints maps records to chronological {date, close} pairs.
func HistoryPoints(h models.PriceHistory) []models.HistoryPoint {
	out := make([]models.HistoryPoint, len(h.Records))
	for i, r := range h.Records {
		out[i] = models.HistoryPoint{Date: r.Date.Format(models.DateLayout), Close: r.Close}
	}
	return out
}

// CheckFinite rejects a response carrying NaN or ±Inf anywhere.
func CheckFinite(r *models.PredictionResponse) error {
	scalars := map[string]float64{
		"current_price":  r.CurrentPrice,
		"expected_price": r.ExpectedPrice,
		"median_price":   r.MedianPrice,
		"ci_95_lower":    r.CI95Lower,
		"ci_95_upper":    r.CI95Upper,
		"sigma":          r.Sigma,
	}
	for name, v := range scalars {
		if !models.IsFinite(v) {
			return fmt.Errorf("%w: %s is %v", models.ErrNumericDegeneracy, name, v)
		}
	}
	for _, h := range r.History {
		if !models.IsFinite(h.Close) {
			return fmt.Errorf("%w: close on %s is %v", models.ErrNumericDegeneracy, h.Date, h.Close)
		}
	}
	for i, path := range r.SamplePaths {
		for _, pt := range path {
			if !models.IsFinite(pt.Price) {
				return fmt.Errorf("%w: sample path %d day %d is %v", models.ErrNumericDegeneracy, i, pt.Day, pt.Price)
			}
		}
	}
	return nil
}
