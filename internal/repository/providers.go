package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/pkg/cache"
	applogger "StockCast/pkg/logger"
)

// CachedProvider memoizes successful fetches of another provider. Failures,
// including not-found, are never cached.
type CachedProvider struct {
	next  domrepo.HistoryProvider
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedProvider(next domrepo.HistoryProvider, c cache.Service, ttl time.Duration, l *applogger.Logger) *CachedProvider {
	return &CachedProvider{next: next, cache: c, ttl: ttl, l: l}
}

func (p *CachedProvider) Name() string { return p.next.Name() + "+cache" }

func (p *CachedProvider) Fetch(ctx context.Context, ticker string, r models.DateRange) (models.PriceHistory, error) {
	key := historyKey(p.next.Name(), ticker, r)

	var h models.PriceHistory
	err := p.cache.Get(ctx, key, &h)
	if err == nil && h.Len() > 0 {
		return h, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) && p.l != nil {
		p.l.Warn("history cache get failed", applogger.String("key", key), applogger.Error(err))
	}

	h, err = p.next.Fetch(ctx, ticker, r)
	if err != nil {
		return models.PriceHistory{}, err
	}
	if err := p.cache.Set(ctx, key, h, p.ttl); err != nil && p.l != nil {
		p.l.Warn("history cache set failed", applogger.String("key", key), applogger.Error(err))
	}
	return h, nil
}

func historyKey(provider, ticker string, r models.DateRange) string {
	return cache.GenerateKeyWithParams("history", provider, ticker,
		r.Start.Format(models.DateLayout), r.End.Format(models.DateLayout))
}

// ArchivingProvider copies every successful fetch into a PriceArchive.
// Archive failures are logged and never fail the fetch.
type ArchivingProvider struct {
	next    domrepo.HistoryProvider
	archive domrepo.PriceArchive
	timeout time.Duration
	l       *applogger.Logger
}

func NewArchivingProvider(next domrepo.HistoryProvider, archive domrepo.PriceArchive, timeout time.Duration, l *applogger.Logger) *ArchivingProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ArchivingProvider{next: next, archive: archive, timeout: timeout, l: l}
}

func (p *ArchivingProvider) Name() string { return p.next.Name() }

func (p *ArchivingProvider) Fetch(ctx context.Context, ticker string, r models.DateRange) (models.PriceHistory, error) {
	h, err := p.next.Fetch(ctx, ticker, r)
	if err != nil {
		return h, err
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.archive.StoreHistory(actx, h); err != nil && p.l != nil {
		p.l.Warn("history archive failed",
			applogger.String("ticker", h.Ticker),
			applogger.Int("rows", h.Len()),
			applogger.Error(err),
		)
	}
	return h, nil
}

// FallbackProvider asks primary first and secondary when primary has nothing.
type FallbackProvider struct {
	primary   domrepo.HistoryProvider
	secondary domrepo.HistoryProvider
	metrics   domrepo.Metrics
}

func NewFallbackProvider(primary, secondary domrepo.HistoryProvider, m domrepo.Metrics) *FallbackProvider {
	return &FallbackProvider{primary: primary, secondary: secondary, metrics: m}
}

func (p *FallbackProvider) Name() string {
	return fmt.Sprintf("%s|%s", p.primary.Name(), p.secondary.Name())
}

func (p *FallbackProvider) Fetch(ctx context.Context, ticker string, r models.DateRange) (models.PriceHistory, error) {
	h, err := p.primary.Fetch(ctx, ticker, r)
	p.record(p.primary.Name(), err)
	if err == nil || errors.Is(err, models.ErrInvalidParameter) || ctx.Err() != nil {
		return h, err
	}
	h, err = p.secondary.Fetch(ctx, ticker, r)
	p.record(p.secondary.Name(), err)
	return h, err
}

func (p *FallbackProvider) record(name string, err error) {
	if p.metrics != nil {
		p.metrics.RecordProviderFetch(name, err == nil)
	}
}
