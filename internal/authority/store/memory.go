// Package store persists per-deal authority rules.
package store

import (
	"context"
	"sync"

	"dealkernel/internal/authority/models"
	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
	"dealkernel/pkg/platform/sentinel"
)

// Memory keeps rules in process, seeded once per deal.
type Memory struct {
	mu    sync.RWMutex
	rules map[id.DealID][]models.Rule
}

// NewMemory creates an empty in-memory rule store.
func NewMemory() *Memory {
	return &Memory{rules: make(map[id.DealID][]models.Rule)}
}

// Seed installs a deal's rule set. Seeding twice is a conflict: rules are
// never silently regenerated.
func (m *Memory) Seed(ctx context.Context, dealID id.DealID, rules []models.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rules[dealID]; exists {
		return sentinel.ErrConflict
	}
	cp := make([]models.Rule, len(rules))
	copy(cp, rules)
	m.rules[dealID] = cp
	return nil
}

// RulesFor returns the deal's rules in seeded order.
func (m *Memory) RulesFor(ctx context.Context, dealID id.DealID) ([]models.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rules, ok := m.rules[dealID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := make([]models.Rule, len(rules))
	copy(cp, rules)
	return cp, nil
}

// RuleFor returns the deal's rule for one action.
func (m *Memory) RuleFor(ctx context.Context, dealID id.DealID, action domain.ActionType) (*models.Rule, error) {
	rules, err := m.RulesFor(ctx, dealID)
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
		if r.Action == action {
			rule := r
			return &rule, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
