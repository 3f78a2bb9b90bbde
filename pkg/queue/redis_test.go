package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordJob struct {
	mu       sync.Mutex
	failures int
	calls    int
	got      []string
}

func (j *recordJob) Type() string { return "archive_history" }

func (j *recordJob) Handle(_ context.Context, payload json.RawMessage) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	if j.calls <= j.failures {
		return errors.New("clickhouse unavailable")
	}
	var p struct {
		Ticker string `json:"ticker"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	j.got = append(j.got, p.Ticker)
	return nil
}

func (j *recordJob) snapshot() (int, []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls, append([]string(nil), j.got...)
}

func newQueue(t *testing.T, cfg QueueConfig, job Job) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedisQueue(nil, cfg, client, WithKeyPrefix("test:queue"))
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q
}

func fastConfig() QueueConfig {
	return QueueConfig{
		Workers:    2,
		RetryLimit: 2,
		RetryDelay: 10 * time.Millisecond,
		RetryPoll:  20 * time.Millisecond,
		PopTimeout: 50 * time.Millisecond,
	}
}

func TestRedisQueue_ProcessesMessages(t *testing.T) {
	job := &recordJob{}
	q := newQueue(t, fastConfig(), job)

	require.NoError(t, q.Enqueue(context.Background(), "archive_history", map[string]string{"ticker": "AAPL"}))
	require.NoError(t, q.Enqueue(context.Background(), "archive_history", map[string]string{"ticker": "MSFT"}))

	assert.Eventually(t, func() bool {
		_, got := job.snapshot()
		return len(got) == 2
	}, 3*time.Second, 10*time.Millisecond)
	_, got := job.snapshot()
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, got)
}

func TestRedisQueue_RetriesThenSucceeds(t *testing.T) {
	job := &recordJob{failures: 2}
	q := newQueue(t, fastConfig(), job)

	require.NoError(t, q.Enqueue(context.Background(), "archive_history", map[string]string{"ticker": "AAPL"}))

	assert.Eventually(t, func() bool {
		_, got := job.snapshot()
		return len(got) == 1
	}, 5*time.Second, 10*time.Millisecond)
	calls, _ := job.snapshot()
	assert.Equal(t, 3, calls)

	n, err := q.DeadLetters(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisQueue_DeadLettersAfterRetryLimit(t *testing.T) {
	job := &recordJob{failures: 100}
	q := newQueue(t, fastConfig(), job)

	require.NoError(t, q.Enqueue(context.Background(), "archive_history", map[string]string{"ticker": "AAPL"}))

	assert.Eventually(t, func() bool {
		n, err := q.DeadLetters(context.Background())
		return err == nil && n == 1
	}, 5*time.Second, 10*time.Millisecond)
	calls, _ := job.snapshot()
	assert.Equal(t, 3, calls)
}

func TestRedisQueue_RejectsUnknownType(t *testing.T) {
	q := newQueue(t, fastConfig(), &recordJob{})
	err := q.Enqueue(context.Background(), "unknown", nil)
	assert.Error(t, err)
}
