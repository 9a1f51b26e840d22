// Package store persists proposal aggregates. Implementations must serialize
// concurrent writers on the same proposal id so the workflow's "current step
// is PENDING" precondition cannot be invalidated between read and write.
package store

import (
	"context"

	"ipm/internal/proposal/models"
)

// ListFilter narrows and pages a listing.
type ListFilter struct {
	Status *models.Status
	Limit  int
	Offset int
}

// UpdateFn mutates a loaded aggregate in place. Returning an error aborts
// the update without persisting; the error propagates unchanged.
type UpdateFn func(p *models.Proposal) error

// Store is the proposal persistence contract. Get and List return snapshots;
// Update runs fn under the per-proposal write lock and persists the result.
// Unknown ids surface sentinel.ErrNotFound.
type Store interface {
	Create(ctx context.Context, p *models.Proposal) error
	Get(ctx context.Context, id int64) (*models.Proposal, error)
	List(ctx context.Context, f ListFilter) ([]*models.Proposal, int, error)
	Update(ctx context.Context, id int64, fn UpdateFn) (*models.Proposal, error)
}
