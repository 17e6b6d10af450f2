package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RiskLens/internal/service/ratelimit"
	"RiskLens/pkg/config"
	xhttp "RiskLens/pkg/http"
	pkgkafka "RiskLens/pkg/kafka"
	applogger "RiskLens/pkg/logger"
)

const (
	sweepInterval = time.Minute
	sweepIdle     = 10 * time.Minute
)

type closer struct {
	name string
	c    io.Closer
}

// Worker is a background component started with the app and stopped before the closers run.
type Worker interface {
	Start() error
	Stop(ctx context.Context) error
}

type worker struct {
	name string
	w    Worker
}

// App encapsulates the service lifecycle: HTTP API, request consumer and the
// infrastructure clients closed on shutdown.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	limiter    *ratelimit.Limiter
	workers    []worker
	closers    []closer
}

// New creates a new App. httpServer, consumer, kh and limiter may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	limiter *ratelimit.Limiter,
) *App {
	if l == nil {
		l = applogger.NewNop()
	}
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: httpServer,
		consumer:   consumer,
		kh:         kh,
		limiter:    limiter,
	}
}

// AddCloser registers a resource released on shutdown, in reverse order of registration.
func (a *App) AddCloser(name string, c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, closer{name: name, c: c})
	}
}

// AddWorker registers a background worker.
func (a *App) AddWorker(name string, w Worker) {
	if w != nil {
		a.workers = append(a.workers, worker{name: name, w: w})
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

// Serve starts every component and blocks until ctx is done, then shuts down.
func (a *App) Serve(ctx context.Context) error {
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		a.consumer.WithConsumerHook(pkgkafka.NewTracingHook(a.l))
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	for _, w := range a.workers {
		if err := w.w.Start(); err != nil {
			a.l.Error("worker start error", applogger.String("worker", w.name), applogger.Error(err))
			return err
		}
		a.l.Info("worker started", applogger.String("worker", w.name))
	}

	if a.limiter != nil {
		go a.sweep(ctx)
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.l.Error("http server start error", applogger.Error(err))
			return err
		}
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) sweep(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Sweep(sweepIdle); n > 0 {
				a.l.Debug("rate limiter swept", applogger.Int("removed", n), applogger.Int("tracked", a.limiter.Len()))
			}
		}
	}
}

// shutdown stops intake first, then releases clients.
func (a *App) shutdown() error {
	timeout := 10 * time.Second
	if a.cfg != nil && a.cfg.Server.ShutdownTimeout > 0 {
		timeout = a.cfg.Server.ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	for _, w := range a.workers {
		if err := w.w.Stop(ctx); err != nil {
			a.l.Warn("worker stop error", applogger.String("worker", w.name), applogger.Error(err))
			errs = append(errs, err)
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.c.Close(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
