package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/pkg/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse(models.DateLayout, s)
	return t
}

var testRange = models.DateRange{Start: day("2025-02-01"), End: day("2025-03-01")}

func sampleHistory(ticker string, n int) models.PriceHistory {
	h := models.PriceHistory{Ticker: ticker}
	for i := 0; i < n; i++ {
		h.Records = append(h.Records, models.PriceRecord{
			Date:   day("2025-02-03").AddDate(0, 0, i),
			Close:  100 + float64(i),
			Volume: int64(1000 * (i + 1)),
		})
	}
	return h
}

type fakeProvider struct {
	mu    sync.Mutex
	name  string
	calls int
	h     models.PriceHistory
	err   error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Fetch(_ context.Context, ticker string, _ models.DateRange) (models.PriceHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return models.PriceHistory{}, f.err
	}
	return f.h, nil
}

type fakeArchive struct {
	stored []models.PriceHistory
	err    error
}

func (a *fakeArchive) StoreHistory(_ context.Context, h models.PriceHistory) error {
	a.stored = append(a.stored, h)
	return a.err
}

type fakeMetrics struct {
	fetches map[string][]bool
}

func (m *fakeMetrics) RecordStage(string, float64)         {}
func (m *fakeMetrics) RecordError(string)                  {}
func (m *fakeMetrics) RecordForecast(string, float64, int) {}
func (m *fakeMetrics) RecordProviderFetch(p string, ok bool) {
	if m.fetches == nil {
		m.fetches = map[string][]bool{}
	}
	m.fetches[p] = append(m.fetches[p], ok)
}

func TestCachedProvider_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rc := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "stockcast")
	defer rc.Close()

	src := &fakeProvider{name: "yahoo", h: sampleHistory("AAPL", 5)}
	p := NewCachedProvider(src, rc, time.Hour, nil)

	first, err := p.Fetch(ctx, "AAPL", testRange)
	require.NoError(t, err)
	second, err := p.Fetch(ctx, "AAPL", testRange)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("stockcast:history:yahoo:AAPL:2025-02-01:2025-03-01"))

	// a different range is a different key
	_, err = p.Fetch(ctx, "AAPL", models.DateRange{Start: day("2025-01-01"), End: day("2025-03-01")})
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCachedProvider_DoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache()
	defer mc.Close()

	src := &fakeProvider{name: "yahoo", err: models.ErrNotFound}
	p := NewCachedProvider(src, mc, time.Hour, nil)

	_, err := p.Fetch(ctx, "ZZZZ", testRange)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = p.Fetch(ctx, "ZZZZ", testRange)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 0, mc.Len())
}

func TestArchivingProvider(t *testing.T) {
	ctx := context.Background()
	src := &fakeProvider{name: "yahoo", h: sampleHistory("MSFT", 3)}
	arch := &fakeArchive{err: errors.New("clickhouse down")}
	p := NewArchivingProvider(src, arch, time.Second, nil)

	h, err := p.Fetch(ctx, "MSFT", testRange)
	require.NoError(t, err, "archive errors must not fail the fetch")
	assert.Equal(t, 3, h.Len())
	require.Len(t, arch.stored, 1)
	assert.Equal(t, "MSFT", arch.stored[0].Ticker)

	src.err = models.ErrNotFound
	_, err = p.Fetch(ctx, "MSFT", testRange)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Len(t, arch.stored, 1)
}

func TestFallbackProvider(t *testing.T) {
	ctx := context.Background()
	primary := &fakeProvider{name: "clickhouse", err: models.ErrNotFound}
	secondary := &fakeProvider{name: "yahoo", h: sampleHistory("AAPL", 2)}
	m := &fakeMetrics{}
	p := NewFallbackProvider(primary, secondary, m)

	h, err := p.Fetch(ctx, "AAPL", testRange)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, []bool{false}, m.fetches["clickhouse"])
	assert.Equal(t, []bool{true}, m.fetches["yahoo"])

	primary.err = nil
	primary.h = sampleHistory("AAPL", 4)
	h, err = p.Fetch(ctx, "AAPL", testRange)
	require.NoError(t, err)
	assert.Equal(t, 4, h.Len())
	assert.Equal(t, 1, secondary.calls)

	primary.err = models.ErrInvalidParameter
	_, err = p.Fetch(ctx, "AAPL", testRange)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
	assert.Equal(t, 1, secondary.calls)
}

func TestBuildInserts(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	stmts := buildInserts("stockcast.daily_prices", "yahoo", sampleHistory("aapl", 3), now)
	require.Len(t, stmts, 1)
	assert.True(t, strings.HasPrefix(stmts[0].query,
		"INSERT INTO stockcast.daily_prices (ticker, date, close, volume, source, ingested_at) VALUES"))
	assert.Equal(t, 3, strings.Count(stmts[0].query, "(?, ?, ?, ?, ?, ?)"))
	require.Len(t, stmts[0].args, 18)
	assert.Equal(t, "AAPL", stmts[0].args[0])
	assert.Equal(t, day("2025-02-03"), stmts[0].args[1])
	assert.Equal(t, 100.0, stmts[0].args[2])
	assert.Equal(t, "yahoo", stmts[0].args[4])

	big := sampleHistory("AAPL", insertChunk+1)
	assert.Len(t, buildInserts("t", "yahoo", big, now), 2)
	assert.Empty(t, buildInserts("t", "yahoo", models.PriceHistory{}, now))
}

func TestPriceSchema(t *testing.T) {
	stmts := PriceSchema("stockcast.daily_prices")
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS stockcast", stmts[0])
	assert.Contains(t, stmts[1], "ReplacingMergeTree(ingested_at)")
	assert.Contains(t, stmts[1], "ORDER BY (ticker, date)")
}

type fakeProducer struct {
	topic  string
	key    []byte
	value  interface{}
	closed bool
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.topic, f.key, f.value = topic, key, value
	return nil
}

func (f *fakeProducer) Close() error { f.closed = true; return nil }

func TestKafkaPredictionPublisher(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewKafkaPredictionPublisher(prod, "stockcast.predictions")
	ev := models.PredictionEvent{Ticker: "aapl", ExpectedPrice: 101}
	require.NoError(t, pub.PublishPrediction(context.Background(), ev))
	assert.Equal(t, "stockcast.predictions", prod.topic)
	assert.Equal(t, []byte("AAPL"), prod.key)
	assert.Equal(t, ev, prod.value)
	require.NoError(t, pub.Close())
	assert.True(t, prod.closed)
}
