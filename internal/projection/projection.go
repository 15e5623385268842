// Package projection folds the event log into point-in-time state. The fold
// is pure and deterministic: the same event prefix always yields the same
// projection, byte for byte, on any process.
package projection

import (
	"time"

	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
)

// Projection is the state-at-T derived from a deal's event log. All slices
// are sorted so marshaling is stable; no map iteration order leaks out.
type Projection struct {
	DealID         id.DealID             `json:"dealId"`
	At             time.Time             `json:"at"`
	LifecycleState domain.LifecycleState `json:"lifecycleState"`
	StressMode     bool                  `json:"stressMode"`
	Approvals      []ActionApprovals     `json:"approvals"`
	Materials      []MaterialState       `json:"materials"`

	// Deterministic is always true: every projection is a full replay from
	// genesis. If checkpoint resumption is ever added, this must report
	// whether the checkpoint was re-verified against a full replay.
	Deterministic bool      `json:"deterministic"`
	ReplayFrom    time.Time `json:"replayFrom"`
	EventsApplied int       `json:"eventsApplied"`
	LastSeq       int64     `json:"lastSeq"`
}

// ActionApprovals is the distinct-role approval tally for one action.
type ActionApprovals struct {
	Action domain.ActionType `json:"action"`
	Roles  []domain.Role     `json:"roles"`
	Count  int               `json:"count"`
}

// MaterialState is the best material of one type as of the instant.
// Tie-breaking is deterministic: stronger truth class wins, then later asOf,
// then later ledger position.
type MaterialState struct {
	Type       string            `json:"type"`
	TruthClass domain.TruthClass `json:"truthClass"`
	AsOf       time.Time         `json:"asOf"`
	MaterialID string            `json:"materialId"`
}

// ApprovalRoles returns the tallied roles for an action, nil when none.
func (p *Projection) ApprovalRoles(action domain.ActionType) []domain.Role {
	for _, a := range p.Approvals {
		if a.Action == action {
			return a.Roles
		}
	}
	return nil
}

// BestMaterial returns the best material of a type, nil when none exists.
func (p *Projection) BestMaterial(materialType string) *MaterialState {
	for i := range p.Materials {
		if p.Materials[i].Type == materialType {
			return &p.Materials[i]
		}
	}
	return nil
}
