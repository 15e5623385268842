package audit

import (
	"context"
	"sync"

	id "dealkernel/pkg/domain"
)

// MemoryStore keeps audit entries in process, append order preserved.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(ctx context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryStore) ListByDeal(ctx context.Context, dealID id.DealID) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, e := range m.entries {
		if e.DealID == dealID {
			out = append(out, e)
		}
	}
	return out, nil
}
