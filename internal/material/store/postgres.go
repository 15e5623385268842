package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dealkernel/internal/domain"
	"dealkernel/internal/material/models"
	id "dealkernel/pkg/domain"
)

// Postgres persists material records in materials.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed material store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Create stores a material record.
func (s *Postgres) Create(ctx context.Context, mat *models.MaterialObject) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO materials (id, deal_id, material_type, data, truth_class, as_of, source_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.UUID(mat.ID), uuid.UUID(mat.DealID), mat.Type, nullableJSON(mat.Data),
		string(mat.TruthClass), mat.AsOf, nullableString(mat.SourceRef), mat.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert material: %w", err)
	}
	return nil
}

// ListAsOf returns the deal's materials with as_of <= instant.
func (s *Postgres) ListAsOf(ctx context.Context, dealID id.DealID, instant time.Time) ([]models.MaterialObject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, material_type, data, truth_class, as_of, source_ref, created_at
		FROM materials
		WHERE deal_id = $1 AND as_of <= $2
		ORDER BY created_at, id
	`, uuid.UUID(dealID), instant.UTC())
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()

	var out []models.MaterialObject
	for rows.Next() {
		var (
			mat       models.MaterialObject
			mid       uuid.UUID
			data      []byte
			truth     string
			sourceRef sql.NullString
		)
		if err := rows.Scan(&mid, &mat.Type, &data, &truth, &mat.AsOf, &sourceRef, &mat.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		mat.ID = id.MaterialID(mid)
		mat.DealID = dealID
		mat.Data = data
		mat.TruthClass = domain.TruthClass(truth)
		mat.SourceRef = sourceRef.String
		out = append(out, mat)
	}
	return out, rows.Err()
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
