package runner

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/fakturo/invoicestack/config"
	"github.com/fakturo/invoicestack/dto"
	"github.com/fakturo/invoicestack/internal/cron"
	"github.com/fakturo/invoicestack/internal/logger"
	"github.com/fakturo/invoicestack/internal/repository"
	"github.com/fakturo/invoicestack/internal/tracing"
	"github.com/fakturo/invoicestack/services"
)

type Runner struct {
	config       *config.Config
	log          logger.Logger
	services     *services.Services
	repositories *repository.Repositories
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewRunner(cfg *config.Config, invoiceDB *gorm.DB) (*Runner, error) {
	// Initialize logger
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	// Initialize tracing
	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		log.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}
	opentracing.SetGlobalTracer(tracer)

	// Initialize repositories
	repos := repository.InitRepositories(invoiceDB)

	// Initialize services
	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return nil, err
	}

	return &Runner{
		config:       cfg,
		log:          appLogger,
		services:     svcs,
		repositories: repos,
		tracerCloser: closer,
	}, nil
}

// RunOnce drains the unread backlog a single time and returns the summary.
// Per-message failures live inside the summary, the returned error covers
// setup-class problems only.
func (r *Runner) RunOnce(ctx context.Context) (*dto.RunSummary, error) {
	defer r.shutdown()

	var summary *dto.RunSummary
	var runErr error
	r.wrapGoroutine("process_inbox", func() {
		summary, runErr = r.services.Pipeline.Run(ctx)
	})
	if runErr != nil {
		return nil, runErr
	}
	if summary == nil {
		return nil, errors.New("run aborted before completion")
	}

	return summary, nil
}

// RunWatch starts the scheduler and stays resident until an interrupt arrives.
func (r *Runner) RunWatch() error {
	cronManager := cron.NewCronManager(r.config, r.log, r.services.Pipeline)
	cronManager.StartCron()
	r.cronManager = cronManager

	r.log.Info("Watch mode active. Press Ctrl+C to exit.")

	return r.waitForShutdown()
}

func (r *Runner) recoverWithJaeger(name string) {
	if rec := recover(); rec != nil {
		// Create a new span for the panic
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		// Mark span as failed
		ext.Error.Set(span, true)

		// Log panic details
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", rec),
			"stack", string(debug.Stack()),
		)

		r.log.Errorf("❌ Panic in %s: %v\n%s", name, rec, debug.Stack())
	}
}

func (r *Runner) wrapGoroutine(name string, fn func()) {
	defer r.recoverWithJaeger(name)
	fn()
}

func (r *Runner) waitForShutdown() error {
	defer r.recoverWithJaeger("shutdown")

	// Set up signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Wait for termination signal
	<-stop
	r.log.Info("Shutting down...")

	// Stop the scheduler with timeout and panic recovery
	stopDone := make(chan struct{})
	go r.wrapGoroutine("cron_shutdown", func() {
		defer close(stopDone)
		r.cronManager.Stop()
	})

	select {
	case <-stopDone:
		r.log.Info("✅ Scheduler stopped gracefully")
	case <-time.After(15 * time.Second):
		r.log.Warn("⚠️ Scheduler stop timed out, forcing exit")
	}

	r.shutdown()

	return nil
}

func (r *Runner) shutdown() {
	if r.services.EventPublisher != nil {
		if err := r.services.EventPublisher.Close(); err != nil {
			r.log.Warnf("Event publisher close failed: %v", err)
		}
	}
	if r.tracerCloser != nil {
		r.tracerCloser.Close()
	}
}
