// Package service records evidence and answers requirement status queries.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dealkernel/internal/domain"
	eventmodels "dealkernel/internal/event/models"
	"dealkernel/internal/material"
	"dealkernel/internal/material/models"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
	"dealkernel/pkg/requestcontext"
)

// Gate is the write path every material record passes through: recording
// evidence is itself a gated action, so role rules apply and the projection
// sees a MaterialRecorded event.
type Gate interface {
	Request(ctx context.Context, dealID id.DealID, candidate eventmodels.Candidate) (*eventmodels.Event, error)
}

// Store persists the material rows backing the ledger view.
type Store interface {
	Create(ctx context.Context, mat *models.MaterialObject) error
	ListAsOf(ctx context.Context, dealID id.DealID, instant time.Time) ([]models.MaterialObject, error)
}

// Service validates and records materials.
type Service struct {
	store Store
	gate  Gate
}

func New(store Store, gate Gate) *Service {
	return &Service{store: store, gate: gate}
}

// RecordInput is a request to record one evidence item.
type RecordInput struct {
	ActorID      id.ActorID
	Type         string
	Data         json.RawMessage
	TruthClass   domain.TruthClass
	AsOf         time.Time
	SourceRef    string
	RoleAsserted domain.Role
	EvidenceRefs []id.ArtifactID
}

// Record validates the input, appends a MaterialRecorded event through the
// gate, then persists the row. The event is the source of truth; the row is
// the queryable ledger view of the same fact.
func (s *Service) Record(ctx context.Context, dealID id.DealID, input RecordInput) (*models.MaterialObject, error) {
	if input.Type == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "material type is required")
	}
	if !domain.ValidTruthClass(input.TruthClass) {
		return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonInvalidTruthClass,
			fmt.Sprintf("truthClass %q is not one of DOC, HUMAN, AI", input.TruthClass))
	}

	now := requestcontext.Now(ctx).UTC()
	asOf := input.AsOf
	if asOf.IsZero() {
		asOf = now
	}

	materialID := id.NewMaterialID()
	payload, err := json.Marshal(domain.MaterialPayload{
		MaterialID:   materialID.String(),
		MaterialType: input.Type,
		TruthClass:   input.TruthClass,
		AsOf:         asOf.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "marshal material payload", err)
	}

	candidate := eventmodels.Candidate{
		Type:         domain.EventMaterialRecorded,
		ActorID:      input.ActorID,
		Payload:      payload,
		EvidenceRefs: input.EvidenceRefs,
	}
	if input.RoleAsserted != "" {
		candidate.AuthorityContext = domain.AuthorityContext{
			Kind:         domain.ContextRoleAssertion,
			RoleAsserted: input.RoleAsserted,
		}
	}

	if _, err := s.gate.Request(ctx, dealID, candidate); err != nil {
		return nil, err
	}

	// The ledger commits first: enforcement reads the projection, and a
	// material the log does not know about must never unlock a gate. If the
	// row write below fails, the event stands and the caller retries the
	// row side; the ledger is the source of truth and rows are a
	// rebuildable view of it.
	mat := &models.MaterialObject{
		ID:         materialID,
		DealID:     dealID,
		Type:       input.Type,
		Data:       input.Data,
		TruthClass: input.TruthClass,
		AsOf:       asOf,
		SourceRef:  input.SourceRef,
		CreatedAt:  now,
	}
	if err := s.store.Create(ctx, mat); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist material", err)
	}
	return mat, nil
}

// StatusAsOf maps each of an action's required material types to its status
// as of the instant, judged against the strongest material of that type.
func (s *Service) StatusAsOf(ctx context.Context, dealID id.DealID, action domain.ActionType, instant time.Time) (map[string]models.Status, error) {
	reqs := material.RequirementsFor(action)
	if len(reqs) == 0 {
		return map[string]models.Status{}, nil
	}

	mats, err := s.store.ListAsOf(ctx, dealID, instant)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list materials", err)
	}

	best := make(map[string]domain.TruthClass)
	for _, m := range mats {
		if cur, ok := best[m.Type]; !ok || m.TruthClass.Strength() > cur.Strength() {
			best[m.Type] = m.TruthClass
		}
	}

	out := make(map[string]models.Status, len(reqs))
	for _, req := range reqs {
		var have *domain.TruthClass
		if tc, ok := best[req.MaterialType]; ok {
			have = &tc
		}
		out[req.MaterialType] = material.StatusAgainst(req, have)
	}
	return out, nil
}
