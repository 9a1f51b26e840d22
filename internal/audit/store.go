package audit

import "context"

// Store is the audit persistence contract. Append is called once per
// consumed event delivery, which can be more than once per event id.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, proposalID *int64, limit, offset int) ([]Entry, int, error)
}
