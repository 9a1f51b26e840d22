package audit

import (
	"context"

	"ipm/internal/platform/kafka/consumer"
	"ipm/internal/proposal/events"
)

// EventHandler adapts the recorder to the consumer runtime. A decode failure
// is returned as a handler error so malformed payloads take the same
// retry-then-dead-letter path as storage failures.
type EventHandler struct {
	recorder *Recorder
}

// NewEventHandler creates the audit consumer handler.
func NewEventHandler(recorder *Recorder) *EventHandler {
	return &EventHandler{recorder: recorder}
}

// Handle records one consumed event.
func (h *EventHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	ev, err := events.Decode(msg.Value)
	if err != nil {
		return err
	}
	return h.recorder.Record(ctx, ev)
}
