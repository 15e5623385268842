package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "dealkernel/pkg/domain"
	txcontext "dealkernel/pkg/platform/tx"
)

// PostgresStore persists audit entries in audit_log. When a transaction is
// on the context, the entry commits with the write it describes.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO audit_log (id, ts, deal_id, actor_id, action, decision, reason, override, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(entry.ID), entry.Timestamp, uuid.UUID(entry.DealID), uuid.UUID(entry.ActorID),
		entry.Action, entry.Decision, nullable(entry.Reason), entry.Override, nullable(entry.RequestID),
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDeal(ctx context.Context, dealID id.DealID) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, actor_id, action, decision, COALESCE(reason, ''), override, COALESCE(request_id, '')
		FROM audit_log WHERE deal_id = $1 ORDER BY ts, id
	`, uuid.UUID(dealID))
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			eid     uuid.UUID
			actorID uuid.UUID
		)
		if err := rows.Scan(&eid, &e.Timestamp, &actorID, &e.Action, &e.Decision, &e.Reason, &e.Override, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ID = id.EventID(eid)
		e.DealID = dealID
		e.ActorID = id.ActorID(actorID)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
