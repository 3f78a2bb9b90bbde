package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN_Native(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:        "ch.internal",
		Database:    "stockcast",
		User:        "svc",
		Password:    "p@ss:w/rd",
		DialTimeout: 5 * time.Second,
		ReadTimeout: 10 * time.Second,
		MaxExecTime: 30 * time.Second,
		AsyncInsert: true,
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.internal:9000", u.Host)
	assert.Equal(t, "/stockcast", u.Path)
	assert.Equal(t, "svc", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss:w/rd", pw)

	q := u.Query()
	assert.Equal(t, "5s", q.Get("dial_timeout"))
	assert.Equal(t, "10s", q.Get("read_timeout"))
	assert.Equal(t, "30", q.Get("max_execution_time"))
	assert.Equal(t, "1", q.Get("async_insert"))
	assert.Empty(t, q.Get("wait_for_async_insert"))
	assert.Empty(t, q.Get("write_timeout"))
}

func TestBuildDSN_HTTP(t *testing.T) {
	dsn := buildDSN(ClientConfig{Host: "localhost", Database: "default", UseHTTP: true, AsyncInsert: true, WaitForAsync: true})
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "localhost:8123", u.Host)
	assert.Equal(t, "1", u.Query().Get("wait_for_async_insert"))
}

func TestNewClient_RejectsBadConfig(t *testing.T) {
	_, err := NewClient(WithPort(9000))
	assert.Error(t, err)

	_, err = NewClient(WithHost("localhost"), WithPort(70000))
	assert.Error(t, err)

	_, err = NewClient(WithHost("localhost"), WithPool(2, 4, 0))
	assert.Error(t, err)
}

func TestClientConfig_Addr(t *testing.T) {
	assert.Equal(t, "db:9000", ClientConfig{Host: "db"}.addr())
	assert.Equal(t, "db:8123", ClientConfig{Host: "db", UseHTTP: true}.addr())
	assert.Equal(t, "db:19000", ClientConfig{Host: "db", Port: 19000}.addr())
	assert.Equal(t, "[::1]:9000", ClientConfig{Host: "::1"}.addr())
}
