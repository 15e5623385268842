// Package models defines the ledger event records.
package models

import (
	"encoding/json"
	"time"

	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
)

// Event is one immutable ledger entry. Events are never updated or deleted;
// the log is append-only and totally ordered by (CreatedAt, Seq) per deal.
type Event struct {
	ID               id.EventID              `json:"id"`
	DealID           id.DealID               `json:"dealId"`
	Type             domain.EventType        `json:"type"`
	ActorID          id.ActorID              `json:"actorId"`
	Payload          json.RawMessage         `json:"payload,omitempty"`
	AuthorityContext domain.AuthorityContext `json:"authorityContext"`
	EvidenceRefs     []id.ArtifactID         `json:"evidenceRefs,omitempty"`
	OverrideUsed     bool                    `json:"overrideUsed"`
	Seq              int64                   `json:"seq"`
	CreatedAt        time.Time               `json:"createdAt"`
}

// Candidate is an event before the ledger assigns its position. Validation
// and the gate run against candidates; only accepted candidates become
// Events.
type Candidate struct {
	Type             domain.EventType        `json:"type"`
	ActorID          id.ActorID              `json:"actorId"`
	Payload          json.RawMessage         `json:"payload,omitempty"`
	AuthorityContext domain.AuthorityContext `json:"authorityContext"`
	EvidenceRefs     []id.ArtifactID         `json:"evidenceRefs,omitempty"`
	OverrideUsed     bool                    `json:"overrideUsed,omitempty"`
}
