package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/services/features"
	"StockCast/internal/services/montecarlo"
	"StockCast/internal/services/regression"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/util"
)

// Limits bounds caller-supplied simulation sizes.
type Limits struct {
	MaxSimulations int
	MaxFutureDays  int
	SamplePaths    int
}

// DefaultLimits mirrors the shipped configuration.
var DefaultLimits = Limits{MaxSimulations: 100000, MaxFutureDays: 252, SamplePaths: montecarlo.DefaultSamplePaths}

// PredictorOption configures Predictor.
type PredictorOption func(*Predictor)

// Predictor runs fetch → features → OLS → Monte Carlo → assembly for one request.
// It keeps no per-request state.
type Predictor struct {
	provider  domrepo.HistoryProvider
	publisher domrepo.PredictionPublisher
	metrics   domrepo.Metrics
	log       *applogger.Logger
	limits    Limits
	now       func() time.Time
}

func NewPredictor(provider domrepo.HistoryProvider, opts ...PredictorOption) *Predictor {
	p := &Predictor{
		provider:  provider,
		publisher: noopPublisher{},
		metrics:   noopMetrics{},
		log:       applogger.NewNop(),
		limits:    DefaultLimits,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithPublisher emits a PredictionEvent after every successful prediction.
func WithPublisher(pub domrepo.PredictionPublisher) PredictorOption {
	return func(p *Predictor) {
		if pub != nil {
			p.publisher = pub
		}
	}
}

// WithMetrics sets the telemetry sink.
func WithMetrics(m domrepo.Metrics) PredictorOption {
	return func(p *Predictor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *applogger.Logger) PredictorOption {
	return func(p *Predictor) {
		if l != nil {
			p.log = l
		}
	}
}

// WithLimits overrides simulation size limits.
func WithLimits(l Limits) PredictorOption {
	return func(p *Predictor) {
		p.limits = l
	}
}

// Predict forecasts the terminal price distribution of params.Ticker
// params.FutureDays trading days after the last close in params.Range.
func (p *Predictor) Predict(ctx context.Context, params models.PredictParams) (*models.PredictionResponse, error) {
	started := time.Now()
	resp, err := p.predict(ctx, params)
	if err != nil {
		p.metrics.RecordError(ErrorKind(err))
		return nil, err
	}
	p.metrics.RecordStage("total", time.Since(started).Seconds())
	p.metrics.RecordForecast(resp.Ticker, resp.Sigma, resp.NSimulations)
	return resp, nil
}

func (p *Predictor) predict(ctx context.Context, params models.PredictParams) (*models.PredictionResponse, error) {
	params.Ticker = util.NormalizeTicker(params.Ticker)
	if err := p.validate(params); err != nil {
		return nil, err
	}

	t := time.Now()
	hist, err := p.provider.Fetch(ctx, params.Ticker, params.Range)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", params.Ticker, err)
	}
	if hist.Len() == 0 {
		return nil, fmt.Errorf("fetch %s: no records in range: %w", params.Ticker, models.ErrNotFound)
	}
	p.metrics.RecordStage("fetch", time.Since(t).Seconds())

	t = time.Now()
	set, err := features.Build(hist)
	if err != nil {
		return nil, err
	}
	model, err := regression.Fit(set)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", params.Ticker, err)
	}
	p.metrics.RecordStage("fit", time.Since(t).Seconds())

	last, _ := hist.Last()
	t = time.Now()
	sim, err := montecarlo.Simulate(montecarlo.Params{
		MuNext:         model.MuNext,
		SigmaHat:       model.SigmaHat,
		CurrentPrice:   last.Close,
		NSim:           params.NSim,
		FutureDays:     params.FutureDays,
		Seed:           params.Seed,
		MaxSamplePaths: p.limits.SamplePaths,
	})
	if err != nil {
		return nil, err
	}
	summary, err := montecarlo.Summarize(sim.FinalPrices)
	if err != nil {
		return nil, err
	}
	p.metrics.RecordStage("simulate", time.Since(t).Seconds())

	resp := Assemble(params, hist, model, summary, sim)
	if err := CheckFinite(resp); err != nil {
		return nil, fmt.Errorf("%s: %w", params.Ticker, err)
	}

	p.publish(ctx, params, model, resp)
	p.log.Info("prediction completed",
		applogger.String("ticker", resp.Ticker),
		applogger.Int("history_rows", hist.Len()),
		applogger.Int("training_rows", model.TrainingRows),
		applogger.Int("n_sim", resp.NSimulations),
		applogger.Int("future_days", resp.FutureDays),
		applogger.Float64("sigma", resp.Sigma),
		applogger.Float64("mu_next", model.MuNext),
		applogger.Float64("expected_price", resp.ExpectedPrice),
		applogger.String("provider", p.provider.Name()),
	)
	return resp, nil
}

func (p *Predictor) validate(params models.PredictParams) error {
	if params.Ticker == "" {
		return fmt.Errorf("%w: ticker is required", models.ErrInvalidParameter)
	}
	if err := params.Range.Validate(); err != nil {
		return err
	}
	if params.NSim < 1 {
		return fmt.Errorf("%w: n_sim must be >= 1, got %d", models.ErrInvalidParameter, params.NSim)
	}
	if params.FutureDays < 1 {
		return fmt.Errorf("%w: future_days must be >= 1, got %d", models.ErrInvalidParameter, params.FutureDays)
	}
	if p.limits.MaxSimulations > 0 && params.NSim > p.limits.MaxSimulations {
		return fmt.Errorf("%w: n_sim must be <= %d, got %d", models.ErrInvalidParameter, p.limits.MaxSimulations, params.NSim)
	}
	if p.limits.MaxFutureDays > 0 && params.FutureDays > p.limits.MaxFutureDays {
		return fmt.Errorf("%w: future_days must be <= %d, got %d", models.ErrInvalidParameter, p.limits.MaxFutureDays, params.FutureDays)
	}
	return nil
}

// publish is best effort; a broker outage never fails a computed prediction.
func (p *Predictor) publish(ctx context.Context, params models.PredictParams, model models.FittedModel, resp *models.PredictionResponse) {
	ev := models.PredictionEvent{
		Ticker:        resp.Ticker,
		Start:         params.Range.Start.Format(models.DateLayout),
		End:           params.Range.End.Format(models.DateLayout),
		CurrentPrice:  resp.CurrentPrice,
		FutureDays:    resp.FutureDays,
		NSimulations:  resp.NSimulations,
		ExpectedPrice: resp.ExpectedPrice,
		MedianPrice:   resp.MedianPrice,
		CI95Lower:     resp.CI95Lower,
		CI95Upper:     resp.CI95Upper,
		Sigma:         resp.Sigma,
		MuNext:        model.MuNext,
		CreatedAt:     p.now().UTC(),
	}
	if err := p.publisher.PublishPrediction(ctx, ev); err != nil {
		p.metrics.RecordError("publish")
		p.log.Warn("publish prediction failed",
			applogger.String("ticker", resp.Ticker),
			applogger.Error(err),
		)
	}
}

// ErrorKind maps an error to a low-cardinality metrics label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, models.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, models.ErrNumericDegeneracy):
		return "numeric_degeneracy"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

type noopPublisher struct{}

func (noopPublisher) PublishPrediction(context.Context, models.PredictionEvent) error { return nil }

func (noopPublisher) Close() error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordStage(string, float64) {}

func (noopMetrics) RecordError(string) {}

func (noopMetrics) RecordForecast(string, float64, int) {}

func (noopMetrics) RecordProviderFetch(string, bool) {}
