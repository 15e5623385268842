// Package store persists material records.
package store

import (
	"context"
	"sync"
	"time"

	"dealkernel/internal/material/models"
	id "dealkernel/pkg/domain"
)

// Memory keeps materials in process, ordered by insertion.
type Memory struct {
	mu        sync.RWMutex
	materials map[id.DealID][]models.MaterialObject
}

// NewMemory creates an empty in-memory material store.
func NewMemory() *Memory {
	return &Memory{materials: make(map[id.DealID][]models.MaterialObject)}
}

// Create stores a material record.
func (m *Memory) Create(ctx context.Context, mat *models.MaterialObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.materials[mat.DealID] = append(m.materials[mat.DealID], *mat)
	return nil
}

// ListAsOf returns the deal's materials with asOf <= instant, insertion order.
func (m *Memory) ListAsOf(ctx context.Context, dealID id.DealID, instant time.Time) ([]models.MaterialObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.MaterialObject
	for _, mat := range m.materials[dealID] {
		if !mat.AsOf.After(instant) {
			out = append(out, mat)
		}
	}
	return out, nil
}
