// Package store persists the append-only event ledger. The memory and
// postgres implementations share one contract: Append assigns a strictly
// increasing seq and a monotonically non-decreasing timestamp, atomically per
// deal; ReplayPrefix returns ledger order and nothing else.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"dealkernel/internal/event/models"
	id "dealkernel/pkg/domain"
	"dealkernel/pkg/requestcontext"
)

// Memory is the in-memory ledger. A per-deal mutex is the serialization
// point: concurrent appends to one deal are strictly ordered, appends to
// different deals never contend.
type Memory struct {
	mu    sync.RWMutex
	deals map[id.DealID]*dealLog
}

type dealLog struct {
	mu     sync.Mutex
	events []models.Event
}

// NewMemory creates an empty in-memory event ledger.
func NewMemory() *Memory {
	return &Memory{deals: make(map[id.DealID]*dealLog)}
}

func (m *Memory) log(dealID id.DealID) *dealLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.deals[dealID]
	if !ok {
		l = &dealLog{}
		m.deals[dealID] = l
	}
	return l
}

// Append stores a fully validated candidate, assigning seq and createdAt.
// The timestamp is clamped so it never precedes the previous event: replay
// order and timestamp order can then never disagree.
func (m *Memory) Append(ctx context.Context, dealID id.DealID, candidate models.Candidate) (*models.Event, error) {
	l := m.log(dealID)
	l.mu.Lock()
	defer l.mu.Unlock()

	now := requestcontext.Now(ctx).UTC()
	var seq int64 = 1
	if n := len(l.events); n > 0 {
		last := l.events[n-1]
		seq = last.Seq + 1
		if now.Before(last.CreatedAt) {
			now = last.CreatedAt
		}
	}

	stored := models.Event{
		ID:               id.NewEventID(),
		DealID:           dealID,
		Type:             candidate.Type,
		ActorID:          candidate.ActorID,
		Payload:          candidate.Payload,
		AuthorityContext: candidate.AuthorityContext,
		EvidenceRefs:     candidate.EvidenceRefs,
		OverrideUsed:     candidate.OverrideUsed,
		Seq:              seq,
		CreatedAt:        now,
	}
	l.events = append(l.events, stored)
	return &stored, nil
}

// ReplayPrefix returns the deal's events with createdAt <= upto (all events
// when upto is nil) in ledger order. The returned slice is a copy.
func (m *Memory) ReplayPrefix(ctx context.Context, dealID id.DealID, upto *time.Time) ([]models.Event, error) {
	m.mu.RLock()
	l, ok := m.deals[dealID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	l.mu.Lock()
	snapshot := make([]models.Event, len(l.events))
	copy(snapshot, l.events)
	l.mu.Unlock()

	if upto == nil {
		return snapshot, nil
	}
	// Events are stored in ledger order; find the prefix boundary.
	cut := sort.Search(len(snapshot), func(i int) bool {
		return snapshot[i].CreatedAt.After(*upto)
	})
	return snapshot[:cut], nil
}

// LastSeq returns the highest assigned sequence for a deal, 0 when empty.
func (m *Memory) LastSeq(ctx context.Context, dealID id.DealID) (int64, error) {
	m.mu.RLock()
	l, ok := m.deals[dealID]
	m.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return 0, nil
	}
	return l.events[len(l.events)-1].Seq, nil
}
