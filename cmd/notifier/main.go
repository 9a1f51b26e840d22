// Command notifier consumes proposal events in the notification-service
// group and performs the notification side effect once per event id.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ipm/internal/notification"
	"ipm/internal/platform/config"
	"ipm/internal/platform/httpserver"
	"ipm/internal/platform/kafka/consumer"
	"ipm/internal/platform/logger"
	"ipm/internal/platform/metrics"
	"ipm/internal/platform/redis"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(config.GroupNotification)

	if err := run(cfg, log); err != nil {
		log.Error("notifier exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dedupe notification.Deduper
	rc, err := redis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		defer rc.Close()
		dedupe = notification.NewRedisDeduper(rc.Client, cfg.DedupeTTL)
	} else {
		log.Warn("REDIS_URL not set, deduplicating in memory only")
		dedupe = notification.NewMemoryDeduper()
	}

	m := metrics.New()
	notifier := notification.NewNotifier(dedupe, log)

	rt, err := consumer.New(consumer.Config{
		Brokers: cfg.KafkaBrokers,
		Topic:   config.EventsTopic,
		Group:   config.GroupNotification,
		Workers: cfg.ConsumerWorkers,
		Retry: consumer.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			Backoff:     cfg.RetryBackoff,
			DLTSuffix:   config.DLTSuffix,
		},
	}, notification.NewEventHandler(notifier), log, consumer.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("create notification consumer: %w", err)
	}
	defer rt.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := httpserver.New(cfg.Addr, mux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("notifier started", "addr", cfg.Addr)
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
