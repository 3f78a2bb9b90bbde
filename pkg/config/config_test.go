package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 8000, c.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, c.CORS.AllowOrigins)
	assert.True(t, c.CORS.AllowCredentials)
	assert.Equal(t, "yahoo", c.Provider.Type)
	assert.Equal(t, "memory", c.Cache.Driver)
	assert.Equal(t, 15*time.Minute, c.Cache.TTL)
	assert.Equal(t, "2025-02-01", c.Forecast.DefaultStart)
	assert.Equal(t, "2026-02-06", c.Forecast.DefaultEnd)
	assert.Equal(t, 10000, c.Forecast.DefaultSimulations)
	assert.Equal(t, 22, c.Forecast.DefaultFutureDays)
	assert.Equal(t, 20, c.Forecast.SamplePaths)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, 1048576, c.Kafka.Producer.BatchBytes)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
environment: production
server:
  port: 9090
  read_timeout: 3s
cors:
  allow_origins: ["https://app.example.com"]
  allow_credentials: false
cache:
  driver: redis
  redis:
    addr: redis:6379
forecast:
  max_simulations: 50000
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 3*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, c.Server.WriteTimeout)
	assert.Equal(t, []string{"https://app.example.com"}, c.CORS.AllowOrigins)
	assert.False(t, c.CORS.AllowCredentials)
	assert.Equal(t, "redis", c.Cache.Driver)
	assert.Equal(t, "redis:6379", c.Cache.Redis.Addr)
	assert.Equal(t, 50000, c.Forecast.MaxSimulations)
	assert.Equal(t, 10000, c.Forecast.DefaultSimulations)
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("STOCKCAST_ENV", "staging")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ALLOW_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("SERVER_PORT", "9001")

	c, err := LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.CORS.AllowOrigins)
	assert.Equal(t, "cache:6380", c.Cache.Redis.Addr)
	assert.Equal(t, 9001, c.Server.Port)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"unknown provider":        "provider:\n  type: bloomberg\n",
		"clickhouse without host": "provider:\n  type: clickhouse\n",
		"archive without host":    "provider:\n  archive: true\n",
		"unknown cache":           "cache:\n  driver: memcached\n",
		"kafka without brokers":   "kafka:\n  enabled: true\n",
		"bad default date":        "forecast:\n  default_start: 01/02/2025\n",
		"max below default":       "forecast:\n  max_simulations: 10\n",
		"port out of range":       "server:\n  port: 70000\n",
		"queue without archive":   "queue:\n  enabled: true\n",
		"collect without kafka":   "log:\n  collect: true\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
