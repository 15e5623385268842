// Package models defines deals and their actors.
package models

import (
	"time"

	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
)

// Deal is the aggregate root. State and StressMode are cached projections of
// the event log, reconciled on every append — they are read-through values,
// never independently mutated.
type Deal struct {
	ID         id.DealID             `json:"id"`
	Name       string                `json:"name"`
	State      domain.LifecycleState `json:"state"`
	StressMode bool                  `json:"stressMode"`
	CreatedAt  time.Time             `json:"createdAt"`
	UpdatedAt  time.Time             `json:"updatedAt"`
}

// ActorType distinguishes people from automation.
type ActorType string

const (
	ActorHuman  ActorType = "human"
	ActorSystem ActorType = "system"
)

// Actor is an identity scoped to one deal. The same person registers
// separately per deal and may hold different roles on each.
type Actor struct {
	ID          id.ActorID    `json:"id"`
	DealID      id.DealID     `json:"dealId"`
	Type        ActorType     `json:"type"`
	DisplayName string        `json:"displayName"`
	Roles       []domain.Role `json:"roles"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// HasRole reports whether the actor holds the role.
func (a Actor) HasRole(role domain.Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}
