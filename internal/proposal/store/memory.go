package store

import (
	"context"
	"sort"
	"sync"

	"ipm/internal/proposal/models"
	"ipm/pkg/platform/sentinel"
)

// MemoryStore keeps proposals in a map. Used by unit tests and dev mode.
// A per-proposal mutex gives the same one-writer-at-a-time discipline the
// postgres store gets from row locks.
type MemoryStore struct {
	mu    sync.RWMutex
	seq   int64
	items map[int64]*models.Proposal
	locks map[int64]*sync.Mutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[int64]*models.Proposal),
		locks: make(map[int64]*sync.Mutex),
	}
}

func (s *MemoryStore) Create(_ context.Context, p *models.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	p.ID = s.seq
	s.items[p.ID] = p.Clone()
	s.locks[p.ID] = &sync.Mutex{}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*models.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, f ListFilter) ([]*models.Proposal, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*models.Proposal
	for _, p := range s.items {
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		all = append(all, p.Clone())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (s *MemoryStore) Update(_ context.Context, id int64, fn UpdateFn) (*models.Proposal, error) {
	s.mu.RLock()
	lock, ok := s.locks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	p := s.items[id].Clone()
	s.mu.RUnlock()

	if err := fn(p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.items[id] = p.Clone()
	s.mu.Unlock()
	return p, nil
}
