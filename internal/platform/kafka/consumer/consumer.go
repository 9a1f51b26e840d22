// Package consumer runs a Kafka consumer group that delivers each message to
// a handler with bounded retry and dead-lettering. Ordering is preserved
// within a partition; partitions are processed in parallel.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"ipm/internal/platform/kafka/producer"
	"ipm/internal/platform/metrics"
)

// Message is one consumed record, decoupled from the client library so
// handlers stay testable.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler handles one message. Returning an error triggers the retry and
// dead-letter path; the error never reaches the producer side.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// RetryPolicy bounds how often a failing message is retried before it is
// republished to the dead-letter topic.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	DLTSuffix   string
}

// DefaultRetryPolicy mirrors the reference configuration: three attempts,
// one second apart, dead-letter topic named <topic>.DLT.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Second, DLTSuffix: ".DLT"}
}

// DeadLetterTopic names the parking topic for a source topic.
func (p RetryPolicy) DeadLetterTopic(topic string) string {
	return topic + p.DLTSuffix
}

// Config describes one consumer group runtime.
type Config struct {
	Brokers []string
	Topic   string
	Group   string
	Workers int
	Retry   RetryPolicy
}

// Runtime owns the poll/dispatch loop for one consumer group.
type Runtime struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger
	metrics *metrics.Metrics

	client *kgo.Client
	dlt    *producer.Producer

	// Indirections over client calls so the retry/dead-letter path is unit
	// testable without a broker.
	republish func(ctx context.Context, msg *Message, topic string) error
	commit    func(ctx context.Context, rec *kgo.Record) error
}

// Option configures the Runtime.
type Option func(*Runtime)

// WithMetrics records retries, dead letters, and handle durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// New connects a consumer group runtime. The group starts reading from the
// earliest offset the first time it sees the topic.
func New(cfg Config, handler Handler, logger *slog.Logger, opts ...Option) (*Runtime, error) {
	if cfg.Topic == "" || cfg.Group == "" {
		return nil, fmt.Errorf("consumer config requires topic and group")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create consumer group %s: %w", cfg.Group, err)
	}

	dlt, err := producer.New(cfg.Brokers, producer.WithManualPartitions())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create dead-letter producer: %w", err)
	}

	r := &Runtime{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		client:  client,
		dlt:     dlt,
	}
	r.republish = func(ctx context.Context, msg *Message, topic string) error {
		return dlt.Produce(ctx, producer.Record{
			Topic:     topic,
			Key:       msg.Key,
			Value:     msg.Value,
			Partition: msg.Partition,
		})
	}
	r.commit = func(ctx context.Context, rec *kgo.Record) error {
		return client.CommitRecords(ctx, rec)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run polls until ctx is canceled or the client is closed. Within each poll,
// partitions are handled in parallel by at most cfg.Workers goroutines and
// records within a partition strictly in order.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("consumer group started",
		"group", r.cfg.Group,
		"topic", r.cfg.Topic,
		"workers", r.cfg.Workers,
	)
	for {
		fetches := r.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			r.logger.Error("fetch error",
				"group", r.cfg.Group,
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Workers)
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			records := p.Records
			if len(records) == 0 {
				return
			}
			g.Go(func() error {
				for _, rec := range records {
					if err := r.process(gctx, rec); err != nil {
						return err
					}
				}
				return nil
			})
		})
		if err := g.Wait(); err != nil {
			return err
		}
	}
}

// process drives one record through RECEIVED -> HANDLING -> {ACKNOWLEDGED |
// RETRY -> HANDLING | DEAD_LETTERED}. It returns an error only when the
// record could not reach a terminal state (context canceled, dead-letter
// republish failed); the caller must then stop without committing so the
// record is redelivered.
func (r *Runtime) process(ctx context.Context, rec *kgo.Record) error {
	msg := &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Timestamp: rec.Timestamp,
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= r.cfg.Retry.MaxAttempts; attempt++ {
		lastErr = r.handler.Handle(ctx, msg)
		if lastErr == nil {
			break
		}
		r.logger.Warn("handler failed",
			"group", r.cfg.Group,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
			"error", lastErr,
		)
		if attempt < r.cfg.Retry.MaxAttempts {
			if r.metrics != nil {
				r.metrics.HandlerRetries.WithLabelValues(r.cfg.Group).Inc()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.Retry.Backoff):
			}
		}
	}
	if r.metrics != nil {
		r.metrics.HandleDuration.WithLabelValues(r.cfg.Group).Observe(time.Since(start).Seconds())
	}

	if lastErr != nil {
		dltTopic := r.cfg.Retry.DeadLetterTopic(msg.Topic)
		if err := r.republish(ctx, msg, dltTopic); err != nil {
			return fmt.Errorf("republish to %s: %w", dltTopic, err)
		}
		if r.metrics != nil {
			r.metrics.DeadLettered.WithLabelValues(r.cfg.Group).Inc()
		}
		r.logger.Error("message dead-lettered",
			"group", r.cfg.Group,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"dlt", dltTopic,
			"error", lastErr,
		)
	}

	if err := r.commit(ctx, rec); err != nil {
		return fmt.Errorf("commit %s[%d]@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
	}
	return nil
}

// Close releases the consumer and dead-letter producer.
func (r *Runtime) Close() {
	r.client.Close()
	r.dlt.Close()
}
