// Package models defines authority rules.
package models

import (
	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
)

// Rule is one per-deal, per-action authority policy.
//
// AllowedRoles may request the action. ApproverRoles are the roles whose
// ApprovalGranted events count toward ApprovalThreshold — the two sets differ
// where a role must sign off on an action it cannot itself perform (a lender
// approves closing but escrow finalizes it). OverrideRoles may bypass the
// approval and material checks; overrides are always audited.
type Rule struct {
	DealID            id.DealID         `json:"dealId"`
	Action            domain.ActionType `json:"action"`
	AllowedRoles      []domain.Role     `json:"allowedRoles"`
	ApproverRoles     []domain.Role     `json:"approverRoles"`
	ApprovalThreshold int               `json:"approvalThreshold"`
	OverrideRoles     []domain.Role     `json:"overrideRoles"`
}

// HasAllowedRole reports whether any of roles may request the action.
func (r Rule) HasAllowedRole(roles []domain.Role) bool {
	return intersects(r.AllowedRoles, roles)
}

// CountsTowardThreshold reports whether role's approval counts for this rule.
func (r Rule) CountsTowardThreshold(role domain.Role) bool {
	for _, a := range r.ApproverRoles {
		if a == role {
			return true
		}
	}
	return false
}

// HasOverrideRole reports whether any of roles may override this rule.
func (r Rule) HasOverrideRole(roles []domain.Role) bool {
	return intersects(r.OverrideRoles, roles)
}

func intersects(a, b []domain.Role) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
