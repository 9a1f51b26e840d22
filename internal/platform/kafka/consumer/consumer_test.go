package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type republishCall struct {
	topic     string
	partition int32
	key       []byte
	value     []byte
}

func newTestRuntime(t *testing.T, handler Handler, policy RetryPolicy) (*Runtime, *[]republishCall, *int) {
	t.Helper()
	var republished []republishCall
	var commits int
	r := &Runtime{
		cfg:     Config{Topic: "proposal-events", Group: "audit-service", Workers: 1, Retry: policy},
		handler: handler,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	r.republish = func(_ context.Context, msg *Message, topic string) error {
		republished = append(republished, republishCall{
			topic:     topic,
			partition: msg.Partition,
			key:       msg.Key,
			value:     msg.Value,
		})
		return nil
	}
	r.commit = func(context.Context, *kgo.Record) error {
		commits++
		return nil
	}
	return r, &republished, &commits
}

func testRecord() *kgo.Record {
	return &kgo.Record{
		Topic:     "proposal-events",
		Partition: 2,
		Offset:    41,
		Key:       []byte("7"),
		Value:     []byte(`{"id":"e1","type":"STEP_APPROVED","proposalId":7}`),
		Timestamp: time.Now(),
	}
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond, DLTSuffix: ".DLT"}
}

func TestProcessAcknowledgesOnSuccess(t *testing.T) {
	handled := 0
	r, republished, commits := newTestRuntime(t, HandlerFunc(func(context.Context, *Message) error {
		handled++
		return nil
	}), fastPolicy())

	require.NoError(t, r.process(context.Background(), testRecord()))

	assert.Equal(t, 1, handled)
	assert.Empty(t, *republished)
	assert.Equal(t, 1, *commits)
}

func TestProcessRetriesSameMessageThenSucceeds(t *testing.T) {
	attempts := 0
	var seen []*Message
	r, republished, commits := newTestRuntime(t, HandlerFunc(func(_ context.Context, msg *Message) error {
		attempts++
		seen = append(seen, msg)
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}), fastPolicy())

	require.NoError(t, r.process(context.Background(), testRecord()))

	assert.Equal(t, 3, attempts)
	// Every attempt sees the identical message, not a redelivered copy.
	for _, msg := range seen {
		assert.Equal(t, int64(41), msg.Offset)
		assert.Equal(t, []byte("7"), msg.Key)
	}
	assert.Empty(t, *republished)
	assert.Equal(t, 1, *commits)
}

func TestProcessDeadLettersAfterExhaustedRetries(t *testing.T) {
	attempts := 0
	r, republished, commits := newTestRuntime(t, HandlerFunc(func(context.Context, *Message) error {
		attempts++
		return errors.New("poison")
	}), fastPolicy())

	rec := testRecord()
	require.NoError(t, r.process(context.Background(), rec))

	assert.Equal(t, 3, attempts, "exactly MaxAttempts handler invocations")
	require.Len(t, *republished, 1)
	dl := (*republished)[0]
	assert.Equal(t, "proposal-events.DLT", dl.topic)
	assert.Equal(t, rec.Partition, dl.partition, "original partition preserved")
	assert.Equal(t, rec.Key, dl.key)
	assert.Equal(t, rec.Value, dl.value, "payload republished verbatim")
	assert.Equal(t, 1, *commits, "original offset acknowledged after dead-lettering")
}

func TestProcessDoesNotCommitWhenRepublishFails(t *testing.T) {
	r, _, commits := newTestRuntime(t, HandlerFunc(func(context.Context, *Message) error {
		return errors.New("poison")
	}), fastPolicy())
	r.republish = func(context.Context, *Message, string) error {
		return errors.New("broker down")
	}

	err := r.process(context.Background(), testRecord())

	require.Error(t, err)
	assert.Equal(t, 0, *commits, "message must be redelivered, never silently dropped")
}

func TestProcessStopsWaitingWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r, _, commits := newTestRuntime(t, HandlerFunc(func(context.Context, *Message) error {
		cancel()
		return errors.New("failing while shutting down")
	}), RetryPolicy{MaxAttempts: 3, Backoff: time.Minute, DLTSuffix: ".DLT"})

	err := r.process(ctx, testRecord())

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, *commits)
}

func TestDeadLetterTopicNaming(t *testing.T) {
	assert.Equal(t, "proposal-events.DLT", DefaultRetryPolicy().DeadLetterTopic("proposal-events"))
}
