// Package producer wraps franz-go producing behind a small record type so
// domain packages do not import kgo directly.
package producer

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Header is an opaque key/value pair carried alongside a record.
type Header struct {
	Key   string
	Value []byte
}

// Record is one message to write to the channel. Partition is honored only
// when the producer was built with WithManualPartitions; otherwise records
// are partitioned by hash of Key.
type Record struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Headers   []Header
}

// Producer is a synchronous Kafka producer.
type Producer struct {
	client *kgo.Client
	manual bool
}

// Option configures the Producer.
type Option func(*options)

type options struct {
	manual bool
}

// WithManualPartitions makes the producer honor Record.Partition verbatim.
// The dead-letter path needs this to preserve the original partition.
func WithManualPartitions() Option {
	return func(o *options) { o.manual = true }
}

// New connects a producer to the given brokers.
func New(brokers []string, opts ...Option) (*Producer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kopts := []kgo.Opt{kgo.SeedBrokers(brokers...)}
	if o.manual {
		kopts = append(kopts, kgo.RecordPartitioner(kgo.ManualPartitioner()))
	}

	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client, manual: o.manual}, nil
}

// Produce writes one record and blocks until the broker acknowledges it or
// the write fails. No retries beyond what the client does internally.
func (p *Producer) Produce(ctx context.Context, rec Record) error {
	krec := &kgo.Record{
		Topic: rec.Topic,
		Key:   rec.Key,
		Value: rec.Value,
	}
	if p.manual {
		krec.Partition = rec.Partition
	}
	for _, h := range rec.Headers {
		krec.Headers = append(krec.Headers, kgo.RecordHeader{Key: h.Key, Value: h.Value})
	}

	if err := p.client.ProduceSync(ctx, krec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", rec.Topic, err)
	}
	return nil
}

// Close flushes and releases the underlying client.
func (p *Producer) Close() {
	p.client.Close()
}
