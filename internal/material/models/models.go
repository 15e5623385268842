// Package models defines evidence (material) records.
package models

import (
	"encoding/json"
	"time"

	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
)

// MaterialObject is one typed evidence record. TruthClass tags provenance
// strength; requirement checks always compare against the strongest material
// of a type as of an instant.
type MaterialObject struct {
	ID         id.MaterialID     `json:"id"`
	DealID     id.DealID         `json:"dealId"`
	Type       string            `json:"type"`
	Data       json.RawMessage   `json:"data,omitempty"`
	TruthClass domain.TruthClass `json:"truthClass"`
	AsOf       time.Time         `json:"asOf"`
	SourceRef  string            `json:"sourceRef,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Status describes how a material type measures against a requirement.
type Status string

const (
	StatusOK           Status = "OK"
	StatusMissing      Status = "MISSING"
	StatusInsufficient Status = "INSUFFICIENT"
)

// Requirement names a material type an action needs at a minimum truth class.
type Requirement struct {
	MaterialType  string            `json:"materialType"`
	RequiredTruth domain.TruthClass `json:"requiredTruth"`
}
