package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dealkernel/internal/authority/models"
	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
	"dealkernel/pkg/platform/sentinel"
	txcontext "dealkernel/pkg/platform/tx"
)

// Postgres persists authority rules in authority_rules.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed rule store.
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

// Seed installs a deal's rule set. The primary key rejects re-seeding.
// Runs inside the deal-creation transaction when one is on the context, so a
// deal row never exists without its rules.
func (s *Postgres) Seed(ctx context.Context, dealID id.DealID, rules []models.Rule) error {
	exec := s.execer(ctx)
	for _, r := range rules {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO authority_rules
				(deal_id, action, allowed_roles, approver_roles, approval_threshold, override_roles)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			uuid.UUID(dealID), string(r.Action),
			pq.Array(rolesToStrings(r.AllowedRoles)),
			pq.Array(rolesToStrings(r.ApproverRoles)),
			r.ApprovalThreshold,
			pq.Array(rolesToStrings(r.OverrideRoles)),
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("seed rule %s: %w", r.Action, err)
		}
	}
	return nil
}

// RulesFor returns the deal's rules in catalog order.
func (s *Postgres) RulesFor(ctx context.Context, dealID id.DealID) ([]models.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT action, allowed_roles, approver_roles, approval_threshold, override_roles
		FROM authority_rules WHERE deal_id = $1
	`, uuid.UUID(dealID))
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	defer rows.Close()

	byAction := make(map[domain.ActionType]models.Rule)
	for rows.Next() {
		var (
			action    string
			allowed   []string
			approvers []string
			threshold int
			overrides []string
		)
		if err := rows.Scan(&action, pq.Array(&allowed), pq.Array(&approvers), &threshold, pq.Array(&overrides)); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		byAction[domain.ActionType(action)] = models.Rule{
			DealID:            dealID,
			Action:            domain.ActionType(action),
			AllowedRoles:      stringsToRoles(allowed),
			ApproverRoles:     stringsToRoles(approvers),
			ApprovalThreshold: threshold,
			OverrideRoles:     stringsToRoles(overrides),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(byAction) == 0 {
		return nil, sentinel.ErrNotFound
	}

	// Return in catalog order so callers see a deterministic sequence.
	rules := make([]models.Rule, 0, len(byAction))
	for _, action := range domain.ActionTypes {
		if r, ok := byAction[action]; ok {
			rules = append(rules, r)
		}
	}
	return rules, nil
}

// RuleFor returns the deal's rule for one action.
func (s *Postgres) RuleFor(ctx context.Context, dealID id.DealID, action domain.ActionType) (*models.Rule, error) {
	var (
		allowed   []string
		approvers []string
		threshold int
		overrides []string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT allowed_roles, approver_roles, approval_threshold, override_roles
		FROM authority_rules WHERE deal_id = $1 AND action = $2
	`, uuid.UUID(dealID), string(action)).Scan(
		pq.Array(&allowed), pq.Array(&approvers), &threshold, pq.Array(&overrides))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load rule %s: %w", action, err)
	}
	return &models.Rule{
		DealID:            dealID,
		Action:            action,
		AllowedRoles:      stringsToRoles(allowed),
		ApproverRoles:     stringsToRoles(approvers),
		ApprovalThreshold: threshold,
		OverrideRoles:     stringsToRoles(overrides),
	}, nil
}

func rolesToStrings(roles []domain.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func stringsToRoles(raw []string) []domain.Role {
	out := make([]domain.Role, len(raw))
	for i, s := range raw {
		out[i] = domain.Role(s)
	}
	return out
}
