// Package service orchestrates deal creation, actor registration, and
// reconciliation of the cached derived state.
package service

import (
	"context"
	"errors"
	"fmt"

	"dealkernel/internal/authority"
	authoritymodels "dealkernel/internal/authority/models"
	"dealkernel/internal/deal/models"
	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
	"dealkernel/pkg/platform/sentinel"
	"dealkernel/pkg/requestcontext"
)

// Store is the deal/actor persistence the service drives.
type Store interface {
	CreateDeal(ctx context.Context, deal *models.Deal) error
	FindDeal(ctx context.Context, dealID id.DealID) (*models.Deal, error)
	UpdateDerivedState(ctx context.Context, dealID id.DealID, state domain.LifecycleState, stress bool) error
	CreateActor(ctx context.Context, actor *models.Actor) error
	FindActor(ctx context.Context, dealID id.DealID, actorID id.ActorID) (*models.Actor, error)
}

// RuleSeeder installs the authority catalog for a new deal.
type RuleSeeder interface {
	Seed(ctx context.Context, dealID id.DealID, rules []authoritymodels.Rule) error
}

// TxRunner runs fn inside one storage transaction. A nil runner executes fn
// directly, which is the memory wiring where each write commits on its own.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service wires deal persistence with authority seeding.
type Service struct {
	store Store
	rules RuleSeeder
	txr   TxRunner
}

func New(store Store, rules RuleSeeder, txr TxRunner) *Service {
	return &Service{store: store, rules: rules, txr: txr}
}

// Create stores a new deal in Draft state and seeds its authority rules.
// Rules are seeded exactly once here and never regenerated. The row and its
// rules commit together; a deal without a catalog must never exist.
func (s *Service) Create(ctx context.Context, name string) (*models.Deal, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "deal name is required")
	}
	now := requestcontext.Now(ctx).UTC()
	deal := &models.Deal{
		ID:        id.NewDealID(),
		Name:      name,
		State:     domain.StateDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.atomically(ctx, func(ctx context.Context) error {
		if err := s.store.CreateDeal(ctx, deal); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "create deal", err)
		}
		if err := s.rules.Seed(ctx, deal.ID, authority.Catalog(deal.ID)); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "seed authority rules", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return deal, nil
}

func (s *Service) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txr == nil {
		return fn(ctx)
	}
	return s.txr.RunInTx(ctx, fn)
}

// Get retrieves a deal.
func (s *Service) Get(ctx context.Context, dealID id.DealID) (*models.Deal, error) {
	deal, err := s.store.FindDeal(ctx, dealID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "deal not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "find deal", err)
	}
	return deal, nil
}

// RegisterActorInput describes a new actor on a deal.
type RegisterActorInput struct {
	Type        models.ActorType
	DisplayName string
	Roles       []domain.Role
}

// RegisterActor validates roles and stores the actor.
func (s *Service) RegisterActor(ctx context.Context, dealID id.DealID, input RegisterActorInput) (*models.Actor, error) {
	if _, err := s.Get(ctx, dealID); err != nil {
		return nil, err
	}
	if len(input.Roles) == 0 {
		return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonInvalidRole,
			"at least one role is required")
	}
	for _, r := range input.Roles {
		if !domain.ValidRole(r) {
			return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonInvalidRole,
				fmt.Sprintf("role %q is not a known role", r))
		}
	}
	if input.Type != models.ActorHuman && input.Type != models.ActorSystem {
		return nil, dErrors.New(dErrors.CodeBadRequest, "actor type must be human or system")
	}

	actor := &models.Actor{
		ID:          id.NewActorID(),
		DealID:      dealID,
		Type:        input.Type,
		DisplayName: input.DisplayName,
		Roles:       input.Roles,
		CreatedAt:   requestcontext.Now(ctx).UTC(),
	}
	if err := s.store.CreateActor(ctx, actor); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "create actor", err)
	}
	return actor, nil
}

// ReconcileState refreshes the cached derived fields after an append. The
// projection is the source of truth; this is cache maintenance, not a write
// to independent state.
func (s *Service) ReconcileState(ctx context.Context, dealID id.DealID, state domain.LifecycleState, stress bool) error {
	if err := s.store.UpdateDerivedState(ctx, dealID, state, stress); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "reconcile deal state", err)
	}
	return nil
}
