// Package service validates candidates before they reach the ledger.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dealkernel/internal/domain"
	"dealkernel/internal/event/models"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
	"dealkernel/pkg/platform/sentinel"
)

// Ledger is the raw append-only store underneath validation.
type Ledger interface {
	Append(ctx context.Context, dealID id.DealID, candidate models.Candidate) (*models.Event, error)
	ReplayPrefix(ctx context.Context, dealID id.DealID, upto *time.Time) ([]models.Event, error)
	LastSeq(ctx context.Context, dealID id.DealID) (int64, error)
}

// ActorResolver answers whether an actor is registered on a deal.
type ActorResolver interface {
	ActorRoles(ctx context.Context, dealID id.DealID, actorID id.ActorID) ([]domain.Role, error)
}

// Service validates every append: unknown event types and unresolved actors
// are rejected before any state is touched.
type Service struct {
	ledger Ledger
	actors ActorResolver
}

func New(ledger Ledger, actors ActorResolver) *Service {
	return &Service{ledger: ledger, actors: actors}
}

// Validate runs the structural checks common to the gate's write path and
// the explain path: type membership, actor resolution, authority context
// shape. It does not consult rules; that is the gate's job.
func (s *Service) Validate(ctx context.Context, dealID id.DealID, candidate models.Candidate) ([]domain.Role, error) {
	if !domain.ValidEventType(candidate.Type) {
		return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonUnknownEventType,
			fmt.Sprintf("event type %q is not in the allowed set", candidate.Type))
	}
	if candidate.ActorID.IsZero() {
		return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonMissingActor,
			"actorId is required")
	}
	roles, err := s.actors.ActorRoles(ctx, dealID, candidate.ActorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonMissingActor,
				fmt.Sprintf("actor %s is not registered on deal %s", candidate.ActorID, dealID))
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "resolve actor", err)
	}
	if err := candidate.AuthorityContext.Validate(candidate.Type); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeBadRequest, err.Error(), err)
	}
	return roles, nil
}

// Append validates then persists. Callers needing gate semantics (rules,
// materials) must run the gate instead; this is the ledger-level contract
// only.
func (s *Service) Append(ctx context.Context, dealID id.DealID, candidate models.Candidate) (*models.Event, error) {
	if _, err := s.Validate(ctx, dealID, candidate); err != nil {
		return nil, err
	}
	return s.ledger.Append(ctx, dealID, candidate)
}

// ReplayPrefix exposes the ledger read path unchanged.
func (s *Service) ReplayPrefix(ctx context.Context, dealID id.DealID, upto *time.Time) ([]models.Event, error) {
	return s.ledger.ReplayPrefix(ctx, dealID, upto)
}

// LastSeq exposes the ledger cursor unchanged.
func (s *Service) LastSeq(ctx context.Context, dealID id.DealID) (int64, error) {
	return s.ledger.LastSeq(ctx, dealID)
}
