package api

import (
	"context"
	"net/http"
	"time"

	"StockCast/internal/domain/models"
	domsvc "StockCast/internal/domain/service"
	apimetrics "StockCast/internal/service/metrics"
	"StockCast/internal/service/ratelimit"
	xhttp "StockCast/pkg/http"
	xlogger "StockCast/pkg/logger"
	"StockCast/pkg/util"

	"github.com/labstack/echo/v4"
)

const bannerMessage = "Stock Market Prediction API"

// Defaults fill request fields the caller leaves out.
type Defaults struct {
	Start      string
	End        string
	NSim       int
	FutureDays int
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// StockEchoHandler serves the history and prediction endpoints.
type StockEchoHandler struct {
	logger    *xlogger.Logger
	predictor domsvc.Predictor
	history   domsvc.HistoryReader
	limiter   *ratelimit.Limiter
	defaults  Defaults
	checks    map[string]HealthCheck
}

// HandlerOption configures StockEchoHandler.
type HandlerOption func(*StockEchoHandler)

// WithRateLimiter throttles the predict route per client IP.
func WithRateLimiter(l *ratelimit.Limiter) HandlerOption {
	return func(h *StockEchoHandler) { h.limiter = l }
}

// WithDefaults overrides the request defaults.
func WithDefaults(d Defaults) HandlerOption {
	return func(h *StockEchoHandler) { h.defaults = d }
}

// WithHealthCheck adds a named dependency probe to /healthz.
func WithHealthCheck(name string, check HealthCheck) HandlerOption {
	return func(h *StockEchoHandler) { h.checks[name] = check }
}

func NewStockEchoHandler(logger *xlogger.Logger, predictor domsvc.Predictor, history domsvc.HistoryReader, opts ...HandlerOption) *StockEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	apimetrics.Register()
	h := &StockEchoHandler{
		logger:    logger,
		predictor: predictor,
		history:   history,
		defaults:  Defaults{Start: "2025-02-01", End: "2026-02-06", NSim: 10000, FutureDays: 22},
		checks:    make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *StockEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/healthz", h.Health)

	g := e.Group("/api/stock")
	g.GET("/:ticker", h.History)
	g.POST("/:ticker/predict", h.Predict, h.rateLimit("predict"))
}

func (h *StockEchoHandler) Root(c echo.Context) error {
	return xhttp.JSONResponse(c, map[string]string{"message": bannerMessage})
}

func (h *StockEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	report := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			report[name] = err.Error()
			continue
		}
		report[name] = "ok"
	}
	return xhttp.DataResponse(c, status, report)
}

func (h *StockEchoHandler) History(c echo.Context) error {
	defer observe("history", time.Now())

	req := &models.HistoryRequest{Start: h.defaults.Start, End: h.defaults.End}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		apimetrics.APIErrors.WithLabelValues("history", "ERR_VALIDATION").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	r, err := parseRange(req.Start, req.End)
	if err != nil {
		return h.fail(c, "history", err)
	}

	res, err := h.history.GetHistory(c.Request().Context(), req.Ticker, r)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.JSONResponse(c, res)
}

func (h *StockEchoHandler) Predict(c echo.Context) error {
	defer observe("predict", time.Now())

	nSim, days := h.defaults.NSim, h.defaults.FutureDays
	req := &models.PredictRequest{
		Start:      h.defaults.Start,
		End:        h.defaults.End,
		NSim:       &nSim,
		FutureDays: &days,
	}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		apimetrics.APIErrors.WithLabelValues("predict", "ERR_VALIDATION").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	r, err := parseRange(req.Start, req.End)
	if err != nil {
		return h.fail(c, "predict", err)
	}

	res, err := h.predictor.Predict(c.Request().Context(), models.PredictParams{
		Ticker:     req.Ticker,
		Range:      r,
		NSim:       *req.NSim,
		FutureDays: *req.FutureDays,
		Seed:       req.Seed,
	})
	if err != nil {
		return h.fail(c, "predict", err)
	}
	return xhttp.JSONResponse(c, res)
}

func (h *StockEchoHandler) rateLimit(endpoint string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
				apimetrics.RateLimited.WithLabelValues(endpoint).Inc()
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded, retry later"))
			}
			return next(c)
		}
	}
}

var domainErrorRules = []xhttp.ErrorRule{
	{Target: models.ErrNotFound, Code: "ERR_NOT_FOUND", Status: http.StatusNotFound},
	{Target: models.ErrInvalidParameter, Code: "ERR_INVALID_PARAMETER", Status: http.StatusBadRequest},
	{Target: models.ErrInsufficientData, Code: "ERR_INSUFFICIENT_DATA", Status: http.StatusUnprocessableEntity},
	{Target: models.ErrNumericDegeneracy, Code: "ERR_NUMERIC_DEGENERACY", Status: http.StatusInternalServerError},
	{Target: context.DeadlineExceeded, Code: "ERR_TIMEOUT", Status: http.StatusGatewayTimeout},
}

// FromDomainError maps domain sentinels to HTTP errors.
func FromDomainError(err error) *xhttp.AppError {
	return xhttp.MapError(err, domainErrorRules...)
}

func (h *StockEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := FromDomainError(err)
	apimetrics.APIErrors.WithLabelValues(endpoint, appErr.Code).Inc()

	fields := []xlogger.Field{
		xlogger.String("endpoint", endpoint),
		xlogger.String("ticker", c.Param("ticker")),
		xlogger.String("code", appErr.Code),
		xlogger.Error(err),
	}
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("stock request failed", fields...)
	} else {
		h.logger.Warn("stock request rejected", fields...)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func parseRange(start, end string) (models.DateRange, error) {
	s, err := util.ParseDate(start)
	if err != nil {
		return models.DateRange{}, xhttp.NewAppError("ERR_INVALID_PARAMETER", "start", err.Error(), http.StatusBadRequest)
	}
	e, err := util.ParseDate(end)
	if err != nil {
		return models.DateRange{}, xhttp.NewAppError("ERR_INVALID_PARAMETER", "end", err.Error(), http.StatusBadRequest)
	}
	return models.DateRange{Start: s, End: e}, nil
}

func observe(endpoint string, start time.Time) {
	apimetrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
