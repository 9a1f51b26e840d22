// Package notification consumes proposal events and performs the
// notification side effect. The channel delivers at least once, so the
// notifier deduplicates by event id before acting.
package notification

import (
	"context"
	"fmt"
	"log/slog"
)

// Deduper remembers which event ids were already handled. MarkIfFirst
// returns true exactly once per id (within the retention window).
type Deduper interface {
	MarkIfFirst(ctx context.Context, eventID string) (bool, error)
}

// Notifier performs the per-event notification side effect. Integration with
// real channels (email, SMS, push) would branch on event type here; the
// reference behavior is a structured "would notify" log line.
type Notifier struct {
	dedupe Deduper
	logger *slog.Logger
}

// NewNotifier creates a notifier with the given dedup store.
func NewNotifier(dedupe Deduper, logger *slog.Logger) *Notifier {
	return &Notifier{dedupe: dedupe, logger: logger}
}

// Notify handles one event, skipping ids seen before. Errors from the dedup
// store propagate so the runtime retries; the side effect has not happened
// yet at that point.
func (n *Notifier) Notify(ctx context.Context, eventID, eventType string, proposalID int64) error {
	if eventID != "" {
		first, err := n.dedupe.MarkIfFirst(ctx, eventID)
		if err != nil {
			return fmt.Errorf("dedupe event %s: %w", eventID, err)
		}
		if !first {
			n.logger.DebugContext(ctx, "duplicate delivery skipped", "event_id", eventID)
			return nil
		}
	}

	n.logger.InfoContext(ctx, "would notify",
		"event_id", eventID,
		"type", eventType,
		"proposal_id", proposalID,
	)
	return nil
}
