// Package publisher turns domain events into channel writes: a structured
// record on the events topic plus a human-readable line on the audit topic.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ipm/internal/platform/kafka/producer"
	"ipm/internal/platform/metrics"
	"ipm/internal/proposal/events"
	dErrors "ipm/pkg/domainerrors"
)

// Channel is the produce side of the event channel. *producer.Producer
// satisfies it; tests swap in fakes.
type Channel interface {
	Produce(ctx context.Context, rec producer.Record) error
}

// Publisher writes each event synchronously and never retries or buffers;
// failed writes surface as publish errors to the caller.
type Publisher struct {
	ch          Channel
	eventsTopic string
	auditTopic  string
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// New creates a publisher over the given channel and topics.
func New(ch Channel, eventsTopic, auditTopic string, opts ...Option) *Publisher {
	p := &Publisher{ch: ch, eventsTopic: eventsTopic, auditTopic: auditTopic}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes the structured event keyed by proposal id, so all events
// for one proposal land in the same partition, and an unkeyed audit line.
// Both writes are attempted; either failure is reported as a publish error.
func (p *Publisher) Publish(ctx context.Context, ev events.Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	data, err := events.Encode(ev)
	if err != nil {
		return dErrors.Wrap(dErrors.CodePublish, "encode event", err)
	}

	eventErr := p.ch.Produce(ctx, producer.Record{
		Topic: p.eventsTopic,
		Key:   []byte(strconv.FormatInt(ev.ProposalID, 10)),
		Value: data,
	})

	line := fmt.Sprintf("[%s] %s proposalId=%d payload=%v",
		ev.At.Format(time.RFC3339), ev.Type, ev.ProposalID, ev.Payload)
	auditErr := p.ch.Produce(ctx, producer.Record{
		Topic: p.auditTopic,
		Value: []byte(line),
	})

	if err := errors.Join(eventErr, auditErr); err != nil {
		if p.metrics != nil {
			p.metrics.PublishFailures.Inc()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "event publish failed",
				"event_id", ev.ID,
				"type", ev.Type,
				"proposal_id", ev.ProposalID,
				"error", err,
			)
		}
		return dErrors.Wrap(dErrors.CodePublish, "publish proposal event", err)
	}

	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
	}
	return nil
}
