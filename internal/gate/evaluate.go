package gate

import (
	"fmt"
	"sort"
	"time"

	authoritymodels "dealkernel/internal/authority/models"
	"dealkernel/internal/domain"
	"dealkernel/internal/material"
	materialmodels "dealkernel/internal/material/models"
	"dealkernel/internal/projection"
	dErrors "dealkernel/pkg/domainerrors"
)

// checkInputs is everything the predicate consumes. Nothing else may feed a
// decision: the projection at T plus the deal's rules fully determine the
// outcome, which is what makes enforcement and explanation interchangeable.
type checkInputs struct {
	rule       *authoritymodels.Rule
	actorRoles []domain.Role
	asserted   domain.Role // "" when the actor asserted no specific role
	proj       *projection.Projection
	at         time.Time

	// recordRule is the deal's RECORD_MATERIAL rule, used only to name who
	// can fix a missing material. nil degrades the next step, never the
	// decision.
	recordRule *authoritymodels.Rule
}

// evaluate runs the shared predicate: role permission, distinct-role
// approval threshold, and material requirements, in that order. It never
// short-circuits — a blocked decision lists every unmet check so the caller
// learns the full distance to ALLOWED.
func evaluate(in checkInputs) *Decision {
	d := &Decision{
		Action: in.rule.Action,
		Status: StatusAllowed,
		At:     in.at,
		InputsUsed: InputsUsed{
			DealStateAtT:  in.proj.LifecycleState,
			StressModeAtT: in.proj.StressMode,
			ApprovalsAtT:  in.proj.Approvals,
			MaterialsAtT:  in.proj.Materials,
			EventsApplied: in.proj.EventsApplied,
			LastSeq:       in.proj.LastSeq,
		},
	}

	effective := in.actorRoles
	if in.asserted != "" {
		effective = []domain.Role{in.asserted}
	}
	if !in.rule.HasAllowedRole(effective) {
		d.Reasons = append(d.Reasons, Reason{
			Type: dErrors.ReasonForbiddenRole,
			Message: fmt.Sprintf("action %s requires one of roles %v",
				in.rule.Action, in.rule.AllowedRoles),
		})
		d.NextSteps = append(d.NextSteps, NextStep{
			Description:            fmt.Sprintf("have an actor holding an allowed role request %s", in.rule.Action),
			CanBeFixedByRoles:      in.rule.AllowedRoles,
			CanBeOverriddenByRoles: in.rule.OverrideRoles,
		})
	}

	if in.rule.ApprovalThreshold > 0 {
		approved := countingRoles(in.rule, in.proj.ApprovalRoles(in.rule.Action))
		if len(approved) < in.rule.ApprovalThreshold {
			d.Reasons = append(d.Reasons, Reason{
				Type: dErrors.ReasonApprovalUnmet,
				Message: fmt.Sprintf("%s needs approvals from %d distinct roles, has %d",
					in.rule.Action, in.rule.ApprovalThreshold, len(approved)),
				RequiredCount: in.rule.ApprovalThreshold,
				CurrentCount:  len(approved),
				ApprovedRoles: approved,
			})
			d.NextSteps = append(d.NextSteps, NextStep{
				Description: fmt.Sprintf("obtain %d more approval(s) for %s from distinct roles",
					in.rule.ApprovalThreshold-len(approved), in.rule.Action),
				CanBeFixedByRoles:      missingApprovers(in.rule, approved),
				CanBeOverriddenByRoles: in.rule.OverrideRoles,
			})
		}
	}

	for _, req := range material.RequirementsFor(in.rule.Action) {
		best := in.proj.BestMaterial(req.MaterialType)
		var have *domain.TruthClass
		if best != nil {
			have = &best.TruthClass
		}
		status := material.StatusAgainst(req, have)
		if status == materialmodels.StatusOK {
			continue
		}

		reason := Reason{
			Type:          dErrors.ReasonMaterialUnmet,
			MaterialType:  req.MaterialType,
			RequiredTruth: req.RequiredTruth,
		}
		if status == materialmodels.StatusMissing {
			reason.Message = fmt.Sprintf("no %s recorded; %s requires one at truth class %s or stronger",
				req.MaterialType, in.rule.Action, req.RequiredTruth)
		} else {
			reason.CurrentTruth = best.TruthClass
			reason.Message = fmt.Sprintf("%s exists at truth class %s but %s requires %s or stronger",
				req.MaterialType, best.TruthClass, in.rule.Action, req.RequiredTruth)
		}
		d.Reasons = append(d.Reasons, reason)

		step := NextStep{
			Description: fmt.Sprintf("record a %s with truth class %s or stronger",
				req.MaterialType, req.RequiredTruth),
			CanBeOverriddenByRoles: in.rule.OverrideRoles,
		}
		if in.recordRule != nil {
			step.CanBeFixedByRoles = in.recordRule.AllowedRoles
		}
		d.NextSteps = append(d.NextSteps, step)
	}

	if len(d.Reasons) > 0 {
		d.Status = StatusBlocked
	}
	return d
}

// countingRoles filters a projection's approval tally down to the roles this
// rule accepts, sorted for stable output.
func countingRoles(rule *authoritymodels.Rule, tallied []domain.Role) []domain.Role {
	var out []domain.Role
	for _, r := range tallied {
		if rule.CountsTowardThreshold(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// missingApprovers returns the approver roles that have not yet approved.
func missingApprovers(rule *authoritymodels.Rule, approved []domain.Role) []domain.Role {
	have := make(map[domain.Role]bool, len(approved))
	for _, r := range approved {
		have[r] = true
	}
	var out []domain.Role
	for _, r := range rule.ApproverRoles {
		if !have[r] {
			out = append(out, r)
		}
	}
	return out
}

// applyOverride converts a blocked decision into an allowed one, marking
// every bypassed reason. The reasons stay in the body: an override must be
// readable as "these checks were unmet and an authorized role waived them".
func applyOverride(d *Decision) {
	for i := range d.Reasons {
		d.Reasons[i].SatisfiedByOverride = true
	}
	d.NextSteps = nil
	d.Status = StatusAllowed
	d.OverrideUsed = true
}
