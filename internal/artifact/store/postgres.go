package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dealkernel/internal/artifact/models"
	id "dealkernel/pkg/domain"
	"dealkernel/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

// Postgres persists artifacts in artifacts and artifact_links.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed artifact store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Put stores the artifact. A unique violation on sha256_hex means another
// upload of the same bytes won; the canonical row is returned instead. Two
// racing uploads of identical content both succeed with the same artifact.
func (s *Postgres) Put(ctx context.Context, art *models.Artifact) (*models.Artifact, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, sha256_hex, size_bytes, mime_type, uploader_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		uuid.UUID(art.ID), art.SHA256Hex, art.Size, art.MimeType,
		uuid.UUID(art.UploaderID), art.Content, art.CreatedAt,
	)
	if err == nil {
		copied := *art
		return &copied, nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return s.findByHash(ctx, art.SHA256Hex)
	}
	return nil, fmt.Errorf("insert artifact: %w", err)
}

// Find returns an artifact with its content.
func (s *Postgres) Find(ctx context.Context, artifactID id.ArtifactID) (*models.Artifact, error) {
	return s.findOne(ctx, `WHERE id = $1`, uuid.UUID(artifactID))
}

func (s *Postgres) findByHash(ctx context.Context, sha256Hex string) (*models.Artifact, error) {
	return s.findOne(ctx, `WHERE sha256_hex = $1`, sha256Hex)
}

func (s *Postgres) findOne(ctx context.Context, where string, arg any) (*models.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sha256_hex, size_bytes, mime_type, uploader_id, content, created_at
		FROM artifacts `+where, arg)

	var (
		art        models.Artifact
		artID      uuid.UUID
		uploaderID uuid.UUID
	)
	err := row.Scan(&artID, &art.SHA256Hex, &art.Size, &art.MimeType, &uploaderID, &art.Content, &art.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find artifact: %w", err)
	}
	art.ID = id.ArtifactID(artID)
	art.UploaderID = id.ActorID(uploaderID)
	return &art, nil
}

// CreateLink records a deal link.
func (s *Postgres) CreateLink(ctx context.Context, link *models.Link) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifact_links (id, artifact_id, deal_id, event_id, material_id, tag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		uuid.UUID(link.ID), uuid.UUID(link.ArtifactID), uuid.UUID(link.DealID),
		nullableUUID((*uuid.UUID)(link.EventID)), nullableUUID((*uuid.UUID)(link.MaterialID)),
		nullableString(link.Tag), link.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert artifact link: %w", err)
	}
	return nil
}

// ListLinksByDeal returns a deal's links in creation order.
func (s *Postgres) ListLinksByDeal(ctx context.Context, dealID id.DealID) ([]models.Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, artifact_id, event_id, material_id, tag, created_at
		FROM artifact_links
		WHERE deal_id = $1
		ORDER BY created_at, id
	`, uuid.UUID(dealID))
	if err != nil {
		return nil, fmt.Errorf("list artifact links: %w", err)
	}
	defer rows.Close()

	var out []models.Link
	for rows.Next() {
		var (
			link       models.Link
			linkID     uuid.UUID
			artifactID uuid.UUID
			eventID    uuid.NullUUID
			materialID uuid.NullUUID
			tag        sql.NullString
		)
		if err := rows.Scan(&linkID, &artifactID, &eventID, &materialID, &tag, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact link: %w", err)
		}
		link.ID = id.LinkID(linkID)
		link.ArtifactID = id.ArtifactID(artifactID)
		link.DealID = dealID
		if eventID.Valid {
			eid := id.EventID(eventID.UUID)
			link.EventID = &eid
		}
		if materialID.Valid {
			mid := id.MaterialID(materialID.UUID)
			link.MaterialID = &mid
		}
		link.Tag = tag.String
		out = append(out, link)
	}
	return out, rows.Err()
}

func nullableUUID(u *uuid.UUID) any {
	if u == nil {
		return nil
	}
	return *u
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
