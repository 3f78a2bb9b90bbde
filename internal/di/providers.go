package di

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/handler/api"
	internalrepo "StockCast/internal/repository"
	"StockCast/internal/service/ratelimit"
	"StockCast/internal/service/yahoo"
	"StockCast/internal/usecase"
	"StockCast/pkg/cache"
	pkgch "StockCast/pkg/clickhouse"
	"StockCast/pkg/config"
	xhttp "StockCast/pkg/http"
	pkgkafka "StockCast/pkg/kafka"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/metrics"
	"StockCast/pkg/queue"
	"StockCast/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New(nil)
}

// ProvideCache creates the history cache for the configured driver.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	c := cfg.Cache
	switch c.Driver {
	case "none":
		return cache.Noop{}, nil
	case "memory":
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(c.MaxSize)), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(c.Redis.Addr),
		cache.WithRedisPassword(c.Redis.Password),
		cache.WithRedisDB(c.Redis.DB),
		cache.WithRedisPool(c.Redis.PoolSize, c.Redis.PoolSize/2, 30*time.Second),
		cache.WithRedisPrefix(c.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if c.Driver == "layered" {
		return cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(c.MaxSize),
			cache.WithLayeredMemoryTTL(c.MemoryTTL),
		), nil
	}
	return rc, nil
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when no host is configured.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	ch := cfg.ClickHouse
	if ch.Host == "" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithPool(10, 5, 5*time.Minute),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout, ch.WriteTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if ch.InitSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.PriceSchema(ch.Table)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return client, nil
}

// ProvidePriceStore wraps ClickHouse as a price provider and archive.
func ProvidePriceStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHPriceStore {
	if ch == nil {
		return nil
	}
	store := internalrepo.NewCHPriceStore(ch, cfg.ClickHouse.Table, "yahoo")
	store.SetLogger(l)
	return store
}

// ProvideArchiveQueue creates the Redis work queue that writes archives
// in the background, or nil when the queue is disabled.
func ProvideArchiveQueue(cfg *config.Config, l *applogger.Logger, store *internalrepo.CHPriceStore) *queue.RedisQueue {
	if !cfg.Queue.Enabled || store == nil {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	q := queue.NewRedisQueue(l, queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client, queue.WithKeyPrefix(cfg.Queue.Prefix))
	q.RegisterJob(internalrepo.NewArchiveJob(store))
	return q
}

// ProvideHistoryProvider assembles the provider chain:
// cache -> [clickhouse fallback] -> [archive] -> yahoo.
func ProvideHistoryProvider(
	cfg *config.Config,
	l *applogger.Logger,
	store *internalrepo.CHPriceStore,
	c cache.Service,
	q *queue.RedisQueue,
	m domrepo.Metrics,
) (domrepo.HistoryProvider, error) {
	opts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Provider.Timeout)}
	if cfg.Provider.ProxyURL != "" {
		proxy, err := url.Parse(cfg.Provider.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("provider.proxy_url: %w", err)
		}
		opts = append(opts, xhttp.WithTransport(&http.Transport{Proxy: http.ProxyURL(proxy)}))
	}
	var p domrepo.HistoryProvider = yahoo.New(cfg.Provider.BaseURL, xhttp.NewClient(opts...), l)

	if cfg.Provider.Archive && store != nil {
		var archive domrepo.PriceArchive = store
		if q != nil {
			archive = internalrepo.NewQueuedArchive(q)
		}
		p = internalrepo.NewArchivingProvider(p, archive, cfg.Provider.ArchiveTO, l)
	}
	if cfg.Provider.Type == "clickhouse" && store != nil {
		p = internalrepo.NewFallbackProvider(store, p, m)
	}
	if cfg.Cache.Driver != "none" {
		p = internalrepo.NewCachedProvider(p, c, cfg.Cache.TTL, l)
	}
	return p, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	k := cfg.Kafka
	if !k.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatching(k.Producer.BatchSize, k.Producer.BatchBytes, k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the prediction event publisher.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.PredictionPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaPredictionPublisher(producer, cfg.Kafka.Topic)
}

// ProvidePredictor creates the prediction use case.
func ProvidePredictor(
	cfg *config.Config,
	provider domrepo.HistoryProvider,
	pub domrepo.PredictionPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Predictor {
	return usecase.NewPredictor(provider,
		usecase.WithPublisher(pub),
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
		usecase.WithLimits(usecase.Limits{
			MaxSimulations: cfg.Forecast.MaxSimulations,
			MaxFutureDays:  cfg.Forecast.MaxFutureDays,
			SamplePaths:    cfg.Forecast.SamplePaths,
		}),
	)
}

// ProvideHistoryUseCase creates the history-only use case.
func ProvideHistoryUseCase(provider domrepo.HistoryProvider) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(provider)
}

// ProvideRateLimiter creates the predict-route limiter, or nil when disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideStockHandler creates the HTTP handler with health probes for the
// configured backends.
func ProvideStockHandler(
	cfg *config.Config,
	l *applogger.Logger,
	predictor *usecase.Predictor,
	history *usecase.HistoryUseCase,
	limiter *ratelimit.Limiter,
	c cache.Service,
	ch *pkgch.Client,
) *api.StockEchoHandler {
	f := cfg.Forecast
	opts := []api.HandlerOption{
		api.WithDefaults(api.Defaults{
			Start:      f.DefaultStart,
			End:        f.DefaultEnd,
			NSim:       f.DefaultSimulations,
			FutureDays: f.DefaultFutureDays,
		}),
	}
	if limiter != nil {
		opts = append(opts, api.WithRateLimiter(limiter))
	}
	if ch != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", ch.Health))
	}
	if cfg.Cache.Driver == "redis" || cfg.Cache.Driver == "layered" {
		opts = append(opts, api.WithHealthCheck("cache", func(ctx context.Context) error {
			_, err := c.Exists(ctx, "healthz")
			return err
		}))
	}
	return api.NewStockEchoHandler(l, predictor, history, opts...)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.StockEchoHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORS(cfg.CORS.Enabled),
		xhttp.WithAllowOrigins(cfg.CORS.AllowOrigins, cfg.CORS.AllowCredentials),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application server and registers shutdown order:
// log collector, publisher (closes the Kafka producer), cache, ClickHouse.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	q *queue.RedisQueue,
	limiter *ratelimit.Limiter,
	producer *pkgkafka.Producer,
	pub domrepo.PredictionPublisher,
	c cache.Service,
	ch *pkgch.Client,
) *server.App {
	opts := []server.AppOption{server.WithShutdownTimeout(cfg.Server.ShutdownTimeout)}

	if cfg.Log.Collect && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: cfg.Log.CollectWindow,
			Topic:        cfg.Log.CollectTopic,
			Service:      "stockcast",
			Publisher:    producer,
		})
		opts = append(opts, server.WithCloser("log collector", func() error {
			l.RemoveCollector()
			return nil
		}))
	}
	if q != nil {
		opts = append(opts, server.WithWorker(q))
	}
	if limiter != nil {
		opts = append(opts, server.WithBackground(func(stop <-chan struct{}) {
			limiter.RunPruner(time.Minute, 10*time.Minute, stop)
		}))
	}

	if q != nil {
		opts = append(opts, server.WithCloser("queue", q.Close))
	}
	opts = append(opts,
		server.WithCloser("publisher", pub.Close),
		server.WithCloser("cache", c.Close),
	)
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch.Close))
	}

	l.Info("application wired",
		applogger.String("env", cfg.Environment),
		applogger.String("provider", cfg.Provider.Type),
		applogger.String("cache", cfg.Cache.Driver),
		applogger.Bool("archive", cfg.Provider.Archive),
		applogger.Bool("queue", q != nil),
		applogger.Bool("kafka", producer != nil),
	)
	return server.New(l, srv, opts...)
}
