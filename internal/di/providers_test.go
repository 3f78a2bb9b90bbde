package di

import (
	"testing"

	"StockCast/pkg/cache"
	"StockCast/pkg/config"
	applogger "StockCast/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg
}

func TestInitializeApp_Defaults(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Log.Format = "json"
	cfg.Log.Level = "error"

	app, err := InitializeApp(cfg)
	require.NoError(t, err)
	assert.NotNil(t, app)
}

func TestProvideCache(t *testing.T) {
	cfg := defaultConfig(t)

	cfg.Cache.Driver = "none"
	c, err := ProvideCache(cfg)
	require.NoError(t, err)
	assert.IsType(t, cache.Noop{}, c)

	cfg.Cache.Driver = "memory"
	c, err = ProvideCache(cfg)
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache{}, c)
	require.NoError(t, c.Close())

	mr := miniredis.RunT(t)
	cfg.Cache.Redis.Addr = mr.Addr()

	cfg.Cache.Driver = "redis"
	c, err = ProvideCache(cfg)
	require.NoError(t, err)
	assert.IsType(t, &cache.RedisCache{}, c)
	require.NoError(t, c.Close())

	cfg.Cache.Driver = "layered"
	c, err = ProvideCache(cfg)
	require.NoError(t, err)
	assert.IsType(t, &cache.LayeredCache{}, c)
	require.NoError(t, c.Close())
}

func TestProvideHistoryProvider_Chain(t *testing.T) {
	cfg := defaultConfig(t)
	l := applogger.NewNop()

	cfg.Cache.Driver = "none"
	p, err := ProvideHistoryProvider(cfg, l, nil, cache.Noop{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "yahoo", p.Name())

	cfg.Cache.Driver = "memory"
	p, err = ProvideHistoryProvider(cfg, l, nil, cache.NewMemoryCache(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "yahoo+cache", p.Name())

	cfg.Provider.ProxyURL = "://bad"
	_, err = ProvideHistoryProvider(cfg, l, nil, cache.Noop{}, nil, nil)
	assert.Error(t, err)
}

func TestOptionalInfrastructureIsNilWhenDisabled(t *testing.T) {
	cfg := defaultConfig(t)

	ch, err := ProvideClickHouseClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, ch)

	producer, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	assert.Nil(t, producer)

	assert.Nil(t, ProvidePriceStore(cfg, nil, nil))
	assert.Nil(t, ProvideArchiveQueue(cfg, nil, nil))

	cfg.RateLimit.Enabled = false
	assert.Nil(t, ProvideRateLimiter(cfg))
}
