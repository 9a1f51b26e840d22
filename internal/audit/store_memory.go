package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps audit entries in order of arrival.
type MemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	entries []Entry
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.ID = s.seq
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemoryStore) List(_ context.Context, proposalID *int64, limit, offset int) ([]Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Entry
	for _, e := range s.entries {
		if proposalID != nil && e.ProposalID != *proposalID {
			continue
		}
		all = append(all, e)
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}
