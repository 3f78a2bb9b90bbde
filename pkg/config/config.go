package config

import (
	"fmt"
	"os"
	"time"

	"StockCast/pkg/util"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
	} `yaml:"server"`
	CORS struct {
		Enabled          bool     `yaml:"enabled" default:"true"`
		AllowOrigins     []string `yaml:"allow_origins" default:"[\"http://localhost:3000\"]"`
		AllowCredentials bool     `yaml:"allow_credentials" default:"true"`
	} `yaml:"cors"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Provider struct {
		Type      string        `yaml:"type" default:"yahoo"`
		BaseURL   string        `yaml:"base_url" default:"https://query1.finance.yahoo.com"`
		ProxyURL  string        `yaml:"proxy_url"`
		Timeout   time.Duration `yaml:"timeout" default:"15s"`
		Archive   bool          `yaml:"archive"`
		ArchiveTO time.Duration `yaml:"archive_timeout" default:"5s"`
	} `yaml:"provider"`
	Cache struct {
		Driver    string        `yaml:"driver" default:"memory"`
		TTL       time.Duration `yaml:"ttl" default:"15m"`
		MaxSize   int           `yaml:"max_size" default:"512"`
		MemoryTTL time.Duration `yaml:"memory_ttl" default:"1m"`
		Redis     struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"stockcast"`
			PoolSize int    `yaml:"pool_size" default:"10"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"stockcast"`
		Table            string        `yaml:"table" default:"stockcast.daily_prices"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		InitSchema       bool          `yaml:"init_schema" default:"true"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"stockcast.predictions"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async" default:"true"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Forecast struct {
		DefaultStart       string `yaml:"default_start" default:"2025-02-01"`
		DefaultEnd         string `yaml:"default_end" default:"2026-02-06"`
		DefaultSimulations int    `yaml:"default_simulations" default:"10000"`
		DefaultFutureDays  int    `yaml:"default_future_days" default:"22"`
		MaxSimulations     int    `yaml:"max_simulations" default:"100000"`
		MaxFutureDays      int    `yaml:"max_future_days" default:"252"`
		SamplePaths        int    `yaml:"sample_paths" default:"20"`
	} `yaml:"forecast"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit" default:"5"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
		Prefix     string        `yaml:"prefix" default:"stockcast:queue"`
	} `yaml:"queue"`
	RateLimit struct {
		Enabled      bool    `yaml:"enabled" default:"true"`
		Capacity     float64 `yaml:"capacity" default:"10"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"1"`
	} `yaml:"ratelimit"`
	Log struct {
		Level      string `yaml:"level" default:"info"`
		Format     string `yaml:"format" default:"json"`
		Output     string `yaml:"output" default:"stdout"`
		TimeFormat string `yaml:"time_format"`
		// Collect ships aggregated error digests to Kafka.
		Collect       bool          `yaml:"collect"`
		CollectTopic  string        `yaml:"collect_topic" default:"stockcast.logs"`
		CollectWindow time.Duration `yaml:"collect_window" default:"1m"`
	} `yaml:"log"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path skips the file and starts from defaults.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("STOCKCAST_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("PROVIDER"); v != "" {
		c.Provider.Type = v
	}
	if v := os.Getenv("CACHE_DRIVER"); v != "" {
		c.Cache.Driver = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("ALLOW_ORIGINS"); v != "" {
		c.CORS.AllowOrigins = util.SplitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Provider.Type {
	case "yahoo":
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when provider.type is 'clickhouse'")
		}
	default:
		return fmt.Errorf("provider.type must be 'yahoo' or 'clickhouse', got '%s'", c.Provider.Type)
	}
	if c.Provider.Archive && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when provider.archive is enabled")
	}
	switch c.Cache.Driver {
	case "none", "memory":
	case "redis", "layered":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for driver '%s'", c.Cache.Driver)
		}
	default:
		return fmt.Errorf("cache.driver must be one of none, memory, redis, layered, got '%s'", c.Cache.Driver)
	}
	if c.Queue.Enabled {
		if !c.Provider.Archive {
			return fmt.Errorf("queue.enabled requires provider.archive")
		}
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("queue.enabled requires cache.redis.addr")
		}
	}
	if c.Log.Collect && !c.Kafka.Enabled {
		return fmt.Errorf("log.collect requires kafka.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	f := c.Forecast
	if _, err := util.ParseDate(f.DefaultStart); err != nil {
		return fmt.Errorf("forecast.default_start: %w", err)
	}
	if _, err := util.ParseDate(f.DefaultEnd); err != nil {
		return fmt.Errorf("forecast.default_end: %w", err)
	}
	if f.DefaultSimulations < 1 || f.DefaultFutureDays < 1 {
		return fmt.Errorf("forecast defaults must be >= 1")
	}
	if f.MaxSimulations < f.DefaultSimulations || f.MaxFutureDays < f.DefaultFutureDays {
		return fmt.Errorf("forecast maxima must not be below the defaults")
	}
	if f.SamplePaths < 0 {
		return fmt.Errorf("forecast.sample_paths must be >= 0")
	}
	return nil
}
