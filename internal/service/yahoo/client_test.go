package yahoo

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	xhttp "StockCast/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse(models.DateLayout, s)
	return t
}

// 2025-03-03 14:30 UTC is the NYSE open; gmtoffset shifts to New York time.
const chartOK = `{"chart":{"result":[{
 "meta":{"symbol":"AAPL","gmtoffset":-18000},
 "timestamp":[1741012200,1741098600,1741185000,1741271400,1741271500],
 "indicators":{"quote":[{
   "close":[240.5,null,235.7,236.1,237.0],
   "volume":[1000,null,3000,null,5000]
 }]}
}],"error":null}}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, xhttp.NewClient(xhttp.WithTimeout(2*time.Second)), nil).(*Client)
}

func TestFetch_ParsesChart(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartOK))
	})

	rng := models.DateRange{Start: day("2025-03-01"), End: day("2025-03-10")}
	h, err := c.Fetch(context.Background(), "aapl", rng)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/v8/finance/chart/AAPL", got.URL.Path)
	assert.Equal(t, "1d", got.URL.Query().Get("interval"))
	assert.Equal(t, "1740787200", got.URL.Query().Get("period1"))
	assert.NotEmpty(t, got.Header.Get("User-Agent"))

	assert.Equal(t, "AAPL", h.Ticker)
	require.Len(t, h.Records, 3)
	assert.Equal(t, day("2025-03-03"), h.Records[0].Date)
	assert.Equal(t, 240.5, h.Records[0].Close)
	assert.Equal(t, int64(1000), h.Records[0].Volume)
	assert.Equal(t, day("2025-03-05"), h.Records[1].Date)
	// duplicate day keeps the later print
	assert.Equal(t, day("2025-03-06"), h.Records[2].Date)
	assert.Equal(t, 237.0, h.Records[2].Close)
	assert.NoError(t, h.Validate())
}

// A 2:1 split between the first two sessions; the third has no adjusted value.
const chartSplit = `{"chart":{"result":[{
 "meta":{"symbol":"SPLT","gmtoffset":-18000},
 "timestamp":[1741012200,1741098600,1741185000],
 "indicators":{
   "quote":[{"close":[200.0,101.0,102.0],"volume":[10,20,30]}],
   "adjclose":[{"adjclose":[100.0,101.0,null]}]
 }
}],"error":null}}`

func TestFetch_UsesAdjustedClose(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(chartSplit))
	})
	h, err := c.Fetch(context.Background(), "SPLT",
		models.DateRange{Start: day("2025-03-01"), End: day("2025-03-10")})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "true", got.URL.Query().Get("includeAdjustedClose"))

	require.Len(t, h.Records, 3)
	assert.Equal(t, 100.0, h.Records[0].Close)
	assert.Equal(t, 101.0, h.Records[1].Close)
	assert.Equal(t, 102.0, h.Records[2].Close, "missing adjusted value falls back to close")
	assert.InDelta(t, math.Log(1.01), math.Log(h.Records[1].Close/h.Records[0].Close), 1e-12)
}

func TestFetch_FiltersOutsideRange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartOK))
	})
	rng := models.DateRange{Start: day("2025-03-04"), End: day("2025-03-06")}
	h, err := c.Fetch(context.Background(), "AAPL", rng)
	require.NoError(t, err)
	require.Len(t, h.Records, 1)
	assert.Equal(t, day("2025-03-05"), h.Records[0].Date)
}

func TestFetch_NotFound(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"http 404": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
		},
		"chart error": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
		},
		"empty result": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{},"timestamp":[],"indicators":{"quote":[{}]}}],"error":null}}`))
		},
		"all nulls": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{},"timestamp":[1741012200],"indicators":{"quote":[{"close":[null]}]}}],"error":null}}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, h)
			_, err := c.Fetch(context.Background(), "ZZZZ",
				models.DateRange{Start: day("2025-01-01"), End: day("2025-12-31")})
			assert.ErrorIs(t, err, models.ErrNotFound)
		})
	}
}

func TestFetch_UpstreamFailureIsNotNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Fetch(context.Background(), "AAPL",
		models.DateRange{Start: day("2025-01-01"), End: day("2025-12-31")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrNotFound)
}

func TestFetch_InvalidRange(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	_, err := c.Fetch(context.Background(), "AAPL",
		models.DateRange{Start: day("2025-02-01"), End: day("2025-02-01")})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
	assert.False(t, called)
}
