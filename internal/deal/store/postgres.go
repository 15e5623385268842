package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dealkernel/internal/deal/models"
	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
	"dealkernel/pkg/platform/sentinel"
	txcontext "dealkernel/pkg/platform/tx"
)

// Postgres persists deals and actors.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed deal store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// CreateDeal stores a new deal. Honors a context transaction so deal and
// rule seeding commit together.
func (s *Postgres) CreateDeal(ctx context.Context, deal *models.Deal) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO deals (id, name, state, stress_mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(deal.ID), deal.Name, string(deal.State), deal.StressMode, deal.CreatedAt, deal.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert deal: %w", err)
	}
	return nil
}

// FindDeal retrieves a deal by ID.
func (s *Postgres) FindDeal(ctx context.Context, dealID id.DealID) (*models.Deal, error) {
	var (
		deal  models.Deal
		state string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, state, stress_mode, created_at, updated_at FROM deals WHERE id = $1
	`, uuid.UUID(dealID)).Scan(&deal.Name, &state, &deal.StressMode, &deal.CreatedAt, &deal.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find deal: %w", err)
	}
	deal.ID = dealID
	deal.State = domain.LifecycleState(state)
	return &deal, nil
}

// UpdateDerivedState overwrites the cached lifecycle fields.
func (s *Postgres) UpdateDerivedState(ctx context.Context, dealID id.DealID, state domain.LifecycleState, stress bool) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE deals SET state = $2, stress_mode = $3, updated_at = NOW() WHERE id = $1
	`, uuid.UUID(dealID), string(state), stress)
	if err != nil {
		return fmt.Errorf("update derived state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// CreateActor registers an actor on a deal.
func (s *Postgres) CreateActor(ctx context.Context, actor *models.Actor) error {
	roles := make([]string, len(actor.Roles))
	for i, r := range actor.Roles {
		roles[i] = string(r)
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO deal_actors (id, deal_id, actor_type, display_name, roles, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(actor.ID), uuid.UUID(actor.DealID), string(actor.Type), actor.DisplayName,
		pq.Array(roles), actor.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert actor: %w", err)
	}
	return nil
}

// FindActor retrieves one actor on a deal.
func (s *Postgres) FindActor(ctx context.Context, dealID id.DealID, actorID id.ActorID) (*models.Actor, error) {
	var (
		actor     models.Actor
		actorType string
		roles     []string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT actor_type, display_name, roles, created_at
		FROM deal_actors WHERE deal_id = $1 AND id = $2
	`, uuid.UUID(dealID), uuid.UUID(actorID)).Scan(&actorType, &actor.DisplayName, pq.Array(&roles), &actor.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find actor: %w", err)
	}
	actor.ID = actorID
	actor.DealID = dealID
	actor.Type = models.ActorType(actorType)
	actor.Roles = make([]domain.Role, len(roles))
	for i, r := range roles {
		actor.Roles[i] = domain.Role(r)
	}
	return &actor, nil
}

// ActorRoles returns the roles an actor holds on a deal.
func (s *Postgres) ActorRoles(ctx context.Context, dealID id.DealID, actorID id.ActorID) ([]domain.Role, error) {
	actor, err := s.FindActor(ctx, dealID, actorID)
	if err != nil {
		return nil, err
	}
	return actor.Roles, nil
}
