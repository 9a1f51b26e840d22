// Command auditworker consumes proposal events in the audit-service group,
// persists each delivery as an audit entry, and serves the paged audit read
// API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ipm/internal/audit"
	"ipm/internal/platform/config"
	"ipm/internal/platform/httpserver"
	"ipm/internal/platform/kafka/consumer"
	"ipm/internal/platform/logger"
	"ipm/internal/platform/metrics"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(config.GroupAudit)

	if err := run(cfg, log); err != nil {
		log.Error("audit worker exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st audit.Store
	if cfg.DatabaseURL != "" {
		db, err := audit.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if _, err := db.ExecContext(ctx, audit.Schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		st = audit.NewPostgres(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory audit store")
		st = audit.NewMemoryStore()
	}

	m := metrics.New()
	recorder := audit.NewRecorder(st, log)

	rt, err := consumer.New(consumer.Config{
		Brokers: cfg.KafkaBrokers,
		Topic:   config.EventsTopic,
		Group:   config.GroupAudit,
		Workers: cfg.ConsumerWorkers,
		Retry: consumer.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			Backoff:     cfg.RetryBackoff,
			DLTSuffix:   config.DLTSuffix,
		},
	}, audit.NewEventHandler(recorder), log, consumer.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("create audit consumer: %w", err)
	}
	defer rt.Close()

	router := chi.NewRouter()
	audit.NewHandler(recorder, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("audit read API started", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return rt.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
