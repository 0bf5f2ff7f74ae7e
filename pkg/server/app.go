package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	domrepo "github.com/GabrielWalak/delivery-prediction/internal/domain/repository"
	"github.com/GabrielWalak/delivery-prediction/internal/usecase"
	xhttp "github.com/GabrielWalak/delivery-prediction/pkg/http"
	pkgkafka "github.com/GabrielWalak/delivery-prediction/pkg/kafka"
	applogger "github.com/GabrielWalak/delivery-prediction/pkg/logger"
)

// Trainer is the startup training step of the prediction engine.
type Trainer interface {
	Train(ctx context.Context) (models.TrainingReport, error)
}

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	log          *applogger.Logger
	engine       Trainer
	httpServer   *xhttp.Server
	trainTimeout time.Duration
	stopTimeout  time.Duration

	recorder domrepo.TrainingRecorder
	consumer *pkgkafka.Consumer
	handlers []pkgkafka.MessageHandler
	closers  []namedCloser
}

// AppOption configures optional App components.
type AppOption func(*App)

// WithTrainingRecorder persists every training report.
func WithTrainingRecorder(r domrepo.TrainingRecorder) AppOption {
	return func(a *App) {
		a.recorder = r
	}
}

// WithConsumer starts c with the given handlers after the HTTP server is up.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) AppOption {
	return func(a *App) {
		a.consumer = c
		a.handlers = handlers
	}
}

// WithCloser registers an infrastructure client closed on shutdown, in
// registration order.
func WithCloser(name string, c io.Closer) AppOption {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, namedCloser{name: name, c: c})
		}
	}
}

// WithTimeouts bounds the startup training run and the shutdown sequence.
func WithTimeouts(train, stop time.Duration) AppOption {
	return func(a *App) {
		a.trainTimeout = train
		a.stopTimeout = stop
	}
}

// New creates a new App instance with all dependencies.
func New(log *applogger.Logger, engine Trainer, httpServer *xhttp.Server, opts ...AppOption) *App {
	if log == nil {
		log = applogger.Nop()
	}
	a := &App{
		log:         log,
		engine:      engine,
		httpServer:  httpServer,
		stopTimeout: 15 * time.Second,
	}
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

// RunContext trains, serves and consumes until ctx is done or the HTTP server
// fails, then shuts everything down.
func (a *App) RunContext(ctx context.Context) error {
	a.Bootstrap(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		a.shutdown()
		return err
	}

	if a.consumer != nil && len(a.handlers) > 0 {
		topics := make([]string, 0, len(a.handlers))
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
			topics = append(topics, h.Topic())
		}
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.Strings("topics", topics))
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-a.httpServer.Errors():
		a.log.Error("http server stopped unexpectedly", applogger.Error(runErr))
	}

	a.shutdown()
	return runErr
}

// Bootstrap runs the single training attempt and records its report. A failed
// run is logged and the app keeps serving with a cold engine.
func (a *App) Bootstrap(ctx context.Context) models.TrainingReport {
	if a.recorder != nil {
		if err := a.recorder.Init(ctx); err != nil {
			a.log.Warn("training recorder unavailable", applogger.Error(err))
			a.recorder = nil
		}
	}

	trainCtx := ctx
	if a.trainTimeout > 0 {
		var cancel context.CancelFunc
		trainCtx, cancel = context.WithTimeout(ctx, a.trainTimeout)
		defer cancel()
	}

	report, err := a.engine.Train(trainCtx)
	if errors.Is(err, usecase.ErrAlreadyTrained) {
		return report
	}
	if err != nil {
		a.log.Warn("continuing with a cold prediction engine", applogger.Error(err))
	}

	if a.recorder != nil {
		if err := a.recorder.Record(ctx, report); err != nil {
			a.log.Warn("training report not recorded", applogger.Error(err))
		}
	}
	return report
}

// shutdown gracefully stops all services.
func (a *App) shutdown() {
	ctx := context.Background()
	if a.stopTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.stopTimeout)
		defer cancel()
	}
	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.log.Warn("training recorder close error", applogger.Error(err))
		}
	}

	// Collected error logs go out through the producer, so drain them first.
	a.log.Flush()

	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("component", nc.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
}
