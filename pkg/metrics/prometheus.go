package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	stageLatency   *prometheus.HistogramVec
	errorsTotal    *prometheus.CounterVec
	lastSigma      *prometheus.GaugeVec
	simulations    *prometheus.CounterVec
	forecasts      *prometheus.CounterVec
	providerFetchs *prometheus.CounterVec
}

// New creates a Prometheus metrics recorder registered on reg
// (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Recorder{
		stageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockcast_stage_duration_seconds",
				Help:    "Duration of prediction pipeline stages in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"stage"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_errors_total",
				Help: "Total number of prediction errors by kind",
			},
			[]string{"kind"},
		),
		lastSigma: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_last_sigma",
				Help: "Residual volatility of the most recent forecast per ticker",
			},
			[]string{"ticker"},
		),
		simulations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_simulated_paths_total",
				Help: "Total number of Monte Carlo paths simulated",
			},
			[]string{"ticker"},
		),
		forecasts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_forecasts_total",
				Help: "Total number of successful forecasts",
			},
			[]string{"ticker"},
		),
		providerFetchs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_provider_fetches_total",
				Help: "History provider fetches by provider and result",
			},
			[]string{"provider", "result"},
		),
	}
}

// RecordStage records a pipeline stage latency in seconds.
func (r *Recorder) RecordStage(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordForecast records a completed forecast.
func (r *Recorder) RecordForecast(ticker string, sigma float64, simulations int) {
	r.lastSigma.WithLabelValues(ticker).Set(sigma)
	r.simulations.WithLabelValues(ticker).Add(float64(simulations))
	r.forecasts.WithLabelValues(ticker).Inc()
}

// RecordProviderFetch records one provider call.
func (r *Recorder) RecordProviderFetch(provider string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.providerFetchs.WithLabelValues(provider, result).Inc()
}
