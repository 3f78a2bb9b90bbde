package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	xhttp "StockCast/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeWorker struct {
	name     string
	rec      *recorder
	startErr error
}

func (w *fakeWorker) Start() error {
	w.rec.add("start " + w.name)
	return w.startErr
}

func (w *fakeWorker) Stop(context.Context) error {
	w.rec.add("stop " + w.name)
	return nil
}

func TestApp_LifecycleOrder(t *testing.T) {
	rec := &recorder{}
	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0), xhttp.WithMetricsPath(""))
	bgDone := make(chan struct{})

	app := New(nil, srv,
		WithWorker(&fakeWorker{name: "queue", rec: rec}),
		WithBackground(func(stop <-chan struct{}) {
			<-stop
			close(bgDone)
		}),
		WithCloser("kafka", func() error { rec.add("close kafka"); return nil }),
		WithCloser("redis", func() error { rec.add("close redis"); return errors.New("already closed") }),
		WithShutdownTimeout(2*time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	<-bgDone
	assert.Equal(t, []string{"start queue", "stop queue", "close kafka", "close redis"}, rec.list())
}

func TestApp_WorkerStartFailure(t *testing.T) {
	rec := &recorder{}
	srv := xhttp.NewServer(nil, xhttp.WithMetricsPath(""))
	app := New(nil, srv,
		WithWorker(&fakeWorker{name: "a", rec: rec}),
		WithWorker(&fakeWorker{name: "b", rec: rec, startErr: errors.New("redis down")}),
		WithCloser("ch", func() error { rec.add("close ch"); return nil }),
	)

	err := app.RunContext(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"start a", "start b", "stop a", "close ch"}, rec.list())
}
