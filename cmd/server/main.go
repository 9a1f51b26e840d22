// Command server runs the proposal API: the approval workflow over HTTP,
// event publishing, and a probe consumer in the service's own group that
// logs each event it sees flow through the channel.
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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ipm/internal/platform/config"
	"ipm/internal/platform/httpserver"
	"ipm/internal/platform/kafka/admin"
	"ipm/internal/platform/kafka/consumer"
	"ipm/internal/platform/kafka/producer"
	"ipm/internal/platform/logger"
	"ipm/internal/platform/metrics"
	"ipm/internal/proposal/events"
	"ipm/internal/proposal/handler"
	"ipm/internal/proposal/publisher"
	"ipm/internal/proposal/service"
	"ipm/internal/proposal/store"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(config.GroupProposal)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.EnsureTopics {
		err := admin.EnsureTopics(ctx, cfg.KafkaBrokers,
			admin.Topic{Name: config.EventsTopic, Partitions: 3},
			admin.Topic{Name: config.EventsTopic + config.DLTSuffix, Partitions: 3},
			admin.Topic{Name: config.AuditTopic, Partitions: 1},
		)
		if err != nil {
			return fmt.Errorf("ensure topics: %w", err)
		}
	}

	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		if _, err := pool.Exec(ctx, store.Schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		st = store.NewPostgres(pool)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory proposal store")
		st = store.NewMemoryStore()
	}

	prod, err := producer.New(cfg.KafkaBrokers)
	if err != nil {
		return err
	}
	defer prod.Close()

	m := metrics.New()
	pub := publisher.New(prod, config.EventsTopic, config.AuditTopic,
		publisher.WithLogger(log),
		publisher.WithMetrics(m),
	)
	workflow := service.NewWorkflow(st, pub, service.Config{DefaultChain: cfg.DefaultChain}, log,
		service.WithMetrics(m),
	)

	router := chi.NewRouter()
	handler.New(workflow, log, cfg.JWTSigningKey).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// The service consumes its own events so a broken channel shows up in
	// this service's logs, not only downstream.
	probe, err := consumer.New(consumer.Config{
		Brokers: cfg.KafkaBrokers,
		Topic:   config.EventsTopic,
		Group:   config.GroupProposal,
		Workers: cfg.ConsumerWorkers,
		Retry: consumer.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			Backoff:     cfg.RetryBackoff,
			DLTSuffix:   config.DLTSuffix,
		},
	}, consumer.HandlerFunc(func(ctx context.Context, msg *consumer.Message) error {
		ev, err := events.Decode(msg.Value)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "event observed on channel",
			"event_id", ev.ID,
			"type", ev.Type,
			"proposal_id", ev.ProposalID,
			"partition", msg.Partition,
		)
		return nil
	}), log, consumer.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("create probe consumer: %w", err)
	}
	defer probe.Close()

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server started", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return probe.Run(gctx)
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
