package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"StockCast/internal/domain/models"
	drepo "StockCast/internal/domain/repository"
	xhttp "StockCast/pkg/http"
	"StockCast/pkg/logger"
	"StockCast/pkg/util"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	userAgent      = "Mozilla/5.0"
)

// Client implements HistoryProvider against the Yahoo Finance chart API.
type Client struct {
	baseURL string
	http    *xhttp.Client
	log     *logger.Logger
}

// New creates a Yahoo history provider.
func New(baseURL string, httpClient *xhttp.Client, log *logger.Logger) drepo.HistoryProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = xhttp.NewClient()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

func (c *Client) Name() string { return "yahoo" }

// chartResponse mirrors /v8/finance/chart. Close and volume entries are null on
// days without a print. Adjclose is split and dividend adjusted.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns daily closes for ticker with start <= date < end.
func (c *Client) Fetch(ctx context.Context, ticker string, r models.DateRange) (models.PriceHistory, error) {
	if err := r.Validate(); err != nil {
		return models.PriceHistory{}, err
	}
	symbol := util.NormalizeTicker(ticker)
	if symbol == "" {
		return models.PriceHistory{}, fmt.Errorf("%w: empty ticker", models.ErrInvalidParameter)
	}

	var chart chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol),
		Headers: map[string]string{"User-Agent": userAgent},
		QueryParams: map[string][]string{
			"period1":  {strconv.FormatInt(r.Start.Unix(), 10)},
			"period2":  {strconv.FormatInt(r.End.Unix(), 10)},
			"interval":             {"1d"},
			"events":               {"history"},
			"includeAdjustedClose": {"true"},
		},
	}, &chart)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusBadRequest) {
			return models.PriceHistory{}, fmt.Errorf("yahoo %s: %w", symbol, models.ErrNotFound)
		}
		return models.PriceHistory{}, fmt.Errorf("yahoo %s: %w", symbol, err)
	}
	if chart.Chart.Error != nil {
		if c.log != nil {
			c.log.Debug("yahoo chart error",
				logger.String("ticker", symbol),
				logger.String("code", chart.Chart.Error.Code),
				logger.String("description", chart.Chart.Error.Description),
			)
		}
		return models.PriceHistory{}, fmt.Errorf("yahoo %s: %s: %w", symbol, chart.Chart.Error.Description, models.ErrNotFound)
	}

	h := models.PriceHistory{Ticker: symbol, Records: parseRecords(chart, r)}
	if h.Len() == 0 {
		return models.PriceHistory{}, fmt.Errorf("yahoo %s: no prices in range: %w", symbol, models.ErrNotFound)
	}
	return h, nil
}

// parseRecords converts the chart payload into ascending, de-duplicated daily
// records dated in the exchange's local calendar. The adjusted close is used
// when the payload carries one, so splits do not show up as returns.
func parseRecords(chart chartResponse, r models.DateRange) []models.PriceRecord {
	if len(chart.Chart.Result) == 0 {
		return nil
	}
	res := chart.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil
	}
	q := res.Indicators.Quote[0]
	var adj []*float64
	if len(res.Indicators.AdjClose) > 0 {
		adj = res.Indicators.AdjClose[0].AdjClose
	}

	byDate := make(map[time.Time]models.PriceRecord, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		price, ok := priceAt(adj, i)
		if !ok {
			price, ok = priceAt(q.Close, i)
		}
		if !ok {
			continue // holidays and halted sessions come back as null
		}
		day := util.CalendarDay(time.Unix(ts+res.Meta.GMTOffset, 0).UTC())
		if !r.Contains(day) {
			continue
		}
		var vol int64
		if i < len(q.Volume) && q.Volume[i] != nil && *q.Volume[i] > 0 {
			vol = *q.Volume[i]
		}
		// Later timestamps for the same day (intraday snapshot) win.
		byDate[day] = models.PriceRecord{Date: day, Close: price, Volume: vol}
	}

	out := make([]models.PriceRecord, 0, len(byDate))
	for _, rec := range byDate {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func priceAt(series []*float64, i int) (float64, bool) {
	if i >= len(series) || series[i] == nil || !(*series[i] > 0) {
		return 0, false
	}
	return *series[i], true
}
