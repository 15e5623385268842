package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dealkernel/internal/domain"
	"dealkernel/internal/event/models"
	id "dealkernel/pkg/domain"
	"dealkernel/pkg/requestcontext"
)

// Postgres persists the ledger in deal_events. Appends take a per-deal
// advisory transaction lock, so concurrent writers across processes are
// strictly ordered; the UNIQUE (deal_id, seq) constraint backstops the lock.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed event ledger.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Append inserts a validated candidate, assigning seq and createdAt inside
// one transaction. The timestamp is clamped to the previous event's so
// ledger order and timestamp order never disagree.
func (s *Postgres) Append(ctx context.Context, dealID id.DealID, candidate models.Candidate) (*models.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, dealID.String(),
	); err != nil {
		return nil, fmt.Errorf("acquire deal lock: %w", err)
	}

	var lastSeq int64
	var lastCreated time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0), COALESCE(MAX(created_at), 'epoch'::timestamptz)
		FROM deal_events WHERE deal_id = $1
	`, uuid.UUID(dealID)).Scan(&lastSeq, &lastCreated)
	if err != nil {
		return nil, fmt.Errorf("read ledger position: %w", err)
	}

	now := requestcontext.Now(ctx).UTC()
	if now.Before(lastCreated) {
		now = lastCreated
	}

	authCtx, err := json.Marshal(candidate.AuthorityContext)
	if err != nil {
		return nil, fmt.Errorf("marshal authority context: %w", err)
	}

	stored := models.Event{
		ID:               id.NewEventID(),
		DealID:           dealID,
		Type:             candidate.Type,
		ActorID:          candidate.ActorID,
		Payload:          candidate.Payload,
		AuthorityContext: candidate.AuthorityContext,
		EvidenceRefs:     candidate.EvidenceRefs,
		OverrideUsed:     candidate.OverrideUsed,
		Seq:              lastSeq + 1,
		CreatedAt:        now,
	}

	refs := make([]uuid.UUID, len(candidate.EvidenceRefs))
	for i, r := range candidate.EvidenceRefs {
		refs[i] = uuid.UUID(r)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deal_events
			(id, deal_id, seq, event_type, actor_id, payload, authority_context, evidence_refs, override_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		uuid.UUID(stored.ID), uuid.UUID(dealID), stored.Seq, string(stored.Type),
		uuid.UUID(stored.ActorID), nullableJSON(stored.Payload), authCtx,
		pq.Array(refs), stored.OverrideUsed, stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return &stored, nil
}

// ReplayPrefix returns the deal's events with created_at <= upto (all when
// nil) in ledger order.
func (s *Postgres) ReplayPrefix(ctx context.Context, dealID id.DealID, upto *time.Time) ([]models.Event, error) {
	query := `
		SELECT id, seq, event_type, actor_id, payload, authority_context, evidence_refs, override_used, created_at
		FROM deal_events
		WHERE deal_id = $1
	`
	args := []any{uuid.UUID(dealID)}
	if upto != nil {
		query += ` AND created_at <= $2`
		args = append(args, upto.UTC())
	}
	query += ` ORDER BY created_at, seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("replay prefix: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			e       models.Event
			eid     uuid.UUID
			actorID uuid.UUID
			et      string
			payload []byte
			authCtx []byte
			refs    []uuid.UUID
		)
		if err := rows.Scan(&eid, &e.Seq, &et, &actorID, &payload, &authCtx,
			pq.Array(&refs), &e.OverrideUsed, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.ID = id.EventID(eid)
		e.DealID = dealID
		e.Type = domain.EventType(et)
		e.ActorID = id.ActorID(actorID)
		e.Payload = payload
		if err := json.Unmarshal(authCtx, &e.AuthorityContext); err != nil {
			return nil, fmt.Errorf("decode authority context: %w", err)
		}
		e.EvidenceRefs = make([]id.ArtifactID, len(refs))
		for i, r := range refs {
			e.EvidenceRefs[i] = id.ArtifactID(r)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// LastSeq returns the highest assigned sequence for a deal, 0 when empty.
func (s *Postgres) LastSeq(ctx context.Context, dealID id.DealID) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM deal_events WHERE deal_id = $1`,
		uuid.UUID(dealID),
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
