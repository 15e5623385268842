// Package store persists deals and their actors.
package store

import (
	"context"
	"sync"

	"dealkernel/internal/deal/models"
	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
	"dealkernel/pkg/platform/sentinel"
)

// Memory keeps deals and actors in process.
type Memory struct {
	mu     sync.RWMutex
	deals  map[id.DealID]models.Deal
	actors map[id.DealID]map[id.ActorID]models.Actor
}

// NewMemory creates an empty in-memory deal store.
func NewMemory() *Memory {
	return &Memory{
		deals:  make(map[id.DealID]models.Deal),
		actors: make(map[id.DealID]map[id.ActorID]models.Actor),
	}
}

// CreateDeal stores a new deal.
func (m *Memory) CreateDeal(ctx context.Context, deal *models.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.deals[deal.ID]; exists {
		return sentinel.ErrConflict
	}
	m.deals[deal.ID] = *deal
	m.actors[deal.ID] = make(map[id.ActorID]models.Actor)
	return nil
}

// FindDeal retrieves a deal by ID.
func (m *Memory) FindDeal(ctx context.Context, dealID id.DealID) (*models.Deal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	deal, ok := m.deals[dealID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &deal, nil
}

// UpdateDerivedState overwrites the cached lifecycle fields. Only the
// reconcile path calls this; the fields are projections, not inputs.
func (m *Memory) UpdateDerivedState(ctx context.Context, dealID id.DealID, state domain.LifecycleState, stress bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	deal, ok := m.deals[dealID]
	if !ok {
		return sentinel.ErrNotFound
	}
	deal.State = state
	deal.StressMode = stress
	m.deals[dealID] = deal
	return nil
}

// CreateActor registers an actor on a deal.
func (m *Memory) CreateActor(ctx context.Context, actor *models.Actor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	actors, ok := m.actors[actor.DealID]
	if !ok {
		return sentinel.ErrNotFound
	}
	actors[actor.ID] = *actor
	return nil
}

// FindActor retrieves one actor on a deal.
func (m *Memory) FindActor(ctx context.Context, dealID id.DealID, actorID id.ActorID) (*models.Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	actor, ok := m.actors[dealID][actorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &actor, nil
}

// ActorRoles returns the roles an actor holds on a deal. Satisfies the event
// service's ActorResolver.
func (m *Memory) ActorRoles(ctx context.Context, dealID id.DealID, actorID id.ActorID) ([]domain.Role, error) {
	actor, err := m.FindActor(ctx, dealID, actorID)
	if err != nil {
		return nil, err
	}
	roles := make([]domain.Role, len(actor.Roles))
	copy(roles, actor.Roles)
	return roles, nil
}
