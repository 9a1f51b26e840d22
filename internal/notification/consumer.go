package notification

import (
	"context"

	"ipm/internal/platform/kafka/consumer"
	"ipm/internal/proposal/events"
)

// EventHandler adapts the notifier to the consumer runtime.
type EventHandler struct {
	notifier *Notifier
}

// NewEventHandler creates the notification consumer handler.
func NewEventHandler(notifier *Notifier) *EventHandler {
	return &EventHandler{notifier: notifier}
}

// Handle notifies for one consumed event. Decode failures are handler
// errors so they retry and then dead-letter.
func (h *EventHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	ev, err := events.Decode(msg.Value)
	if err != nil {
		return err
	}
	return h.notifier.Notify(ctx, ev.ID, string(ev.Type), ev.ProposalID)
}
