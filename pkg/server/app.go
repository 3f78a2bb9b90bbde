package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "StockCast/pkg/http"
	applogger "StockCast/pkg/logger"
)

// Worker is a background component with an explicit lifecycle, e.g. the archive queue.
type Worker interface {
	Start() error
	Stop(ctx context.Context) error
}

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	log        *applogger.Logger
	httpServer *xhttp.Server
	workers    []Worker
	background []func(stop <-chan struct{})
	closers    []closer
	shutdownTO time.Duration
}

// AppOption configures App.
type AppOption func(*App)

// WithWorker starts w before the HTTP server and stops it after.
func WithWorker(w Worker) AppOption {
	return func(a *App) { a.workers = append(a.workers, w) }
}

// WithBackground runs fn in its own goroutine until shutdown.
func WithBackground(fn func(stop <-chan struct{})) AppOption {
	return func(a *App) { a.background = append(a.background, fn) }
}

// WithCloser releases a resource on shutdown. Closers run in registration order.
func WithCloser(name string, fn func() error) AppOption {
	return func(a *App) { a.closers = append(a.closers, closer{name: name, fn: fn}) }
}

// WithShutdownTimeout bounds how long workers get to drain.
func WithShutdownTimeout(d time.Duration) AppOption {
	return func(a *App) { a.shutdownTO = d }
}

// New creates a new App instance with all dependencies.
func New(log *applogger.Logger, httpServer *xhttp.Server, opts ...AppOption) *App {
	if log == nil {
		log = applogger.NewNop()
	}
	a := &App{log: log, httpServer: httpServer, shutdownTO: 10 * time.Second}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts everything and blocks until ctx is done or the HTTP
// server fails, then shuts down.
func (a *App) RunContext(ctx context.Context) error {
	started := 0
	for _, w := range a.workers {
		if err := w.Start(); err != nil {
			a.stopWorkers(a.workers[:started])
			a.runClosers()
			return fmt.Errorf("start worker: %w", err)
		}
		started++
	}

	stopBg := make(chan struct{})
	for _, fn := range a.background {
		go fn(stopBg)
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		close(stopBg)
		a.stopWorkers(a.workers)
		a.runClosers()
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-a.httpServer.Errors():
		runErr = err
	}

	close(stopBg)
	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown stops the HTTP server first so no new work arrives, then the
// workers, then releases clients.
func (a *App) shutdown() error {
	a.log.Info("shutting down")
	var errs []error

	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTO)
	defer cancel()
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	a.stopWorkers(a.workers)
	a.runClosers()

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) stopWorkers(ws []Worker) {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTO)
	defer cancel()
	for i := len(ws) - 1; i >= 0; i-- {
		if err := ws[i].Stop(ctx); err != nil {
			a.log.Warn("worker stop error", applogger.Error(err))
		}
	}
}

func (a *App) runClosers() {
	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}
}
