package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"ipm/internal/proposal/events"
)

// Recorder converts consumed events into audit rows.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record persists one consumed event. Safe to call more than once for the
// same event id; at-least-once delivery makes that normal.
func (r *Recorder) Record(ctx context.Context, ev events.Event) error {
	payload := ev.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for event %s: %w", ev.ID, err)
	}

	entry := Entry{
		EventID:     ev.ID,
		EventType:   string(ev.Type),
		ProposalID:  ev.ProposalID,
		PayloadJSON: string(data),
		At:          ev.At,
	}
	if err := r.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry for event %s: %w", ev.ID, err)
	}

	r.logger.InfoContext(ctx, "stored event",
		"event_id", ev.ID,
		"type", ev.Type,
		"proposal_id", ev.ProposalID,
	)
	return nil
}

// List returns a page of audit entries, optionally filtered by proposal.
func (r *Recorder) List(ctx context.Context, proposalID *int64, page, size int) (Page, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	items, total, err := r.store.List(ctx, proposalID, size, page*size)
	if err != nil {
		return Page{}, fmt.Errorf("list audit entries: %w", err)
	}
	if items == nil {
		items = []Entry{}
	}
	return Page{Items: items, Total: total, Page: page, Size: size}, nil
}
