// Package store persists artifacts and their deal links.
package store

import (
	"context"
	"sync"

	"dealkernel/internal/artifact/models"
	id "dealkernel/pkg/domain"
	"dealkernel/pkg/platform/sentinel"
)

// Memory keeps artifacts in process, indexed by ID and by content hash.
type Memory struct {
	mu     sync.RWMutex
	byID   map[id.ArtifactID]*models.Artifact
	byHash map[string]id.ArtifactID
	links  map[id.DealID][]models.Link
}

// NewMemory creates an empty in-memory artifact store.
func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[id.ArtifactID]*models.Artifact),
		byHash: make(map[string]id.ArtifactID),
		links:  make(map[id.DealID][]models.Link),
	}
}

// Put stores the artifact unless its hash already exists, in which case the
// existing artifact is returned. Content addressing makes Put idempotent.
func (m *Memory) Put(ctx context.Context, art *models.Artifact) (*models.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byHash[art.SHA256Hex]; ok {
		copied := *m.byID[existing]
		return &copied, nil
	}
	copied := *art
	m.byID[art.ID] = &copied
	m.byHash[art.SHA256Hex] = art.ID
	out := copied
	return &out, nil
}

// Find returns an artifact with its content.
func (m *Memory) Find(ctx context.Context, artifactID id.ArtifactID) (*models.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	art, ok := m.byID[artifactID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *art
	return &copied, nil
}

// CreateLink records a deal link.
func (m *Memory) CreateLink(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[link.ArtifactID]; !ok {
		return sentinel.ErrNotFound
	}
	m.links[link.DealID] = append(m.links[link.DealID], *link)
	return nil
}

// ListLinksByDeal returns a deal's links in insertion order.
func (m *Memory) ListLinksByDeal(ctx context.Context, dealID id.DealID) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Link, len(m.links[dealID]))
	copy(out, m.links[dealID])
	return out, nil
}
