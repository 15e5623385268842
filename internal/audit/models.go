// Package audit captures the kernel's decision trail. Every gate decision
// and every override lands here; overrides are never silent.
package audit

import (
	"context"
	"time"

	id "dealkernel/pkg/domain"
)

// Entry is one audit record. Keep it transport-agnostic so stores and sinks
// can fan out.
type Entry struct {
	ID        id.EventID `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	DealID    id.DealID  `json:"dealId"`
	ActorID   id.ActorID `json:"actorId"`
	Action    string     `json:"action"`
	Decision  string     `json:"decision"`
	Reason    string     `json:"reason,omitempty"`
	Override  bool       `json:"override"`
	RequestID string     `json:"requestId,omitempty"`
}

// Decision values recorded per entry.
const (
	DecisionAllowed    = "ALLOWED"
	DecisionBlocked    = "BLOCKED"
	DecisionOverridden = "OVERRIDDEN"
)

// Store persists audit entries. Sinks may be local (memory, postgres) or
// remote (Kafka).
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByDeal(ctx context.Context, dealID id.DealID) ([]Entry, error)
}
