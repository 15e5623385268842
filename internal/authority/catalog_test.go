package authority

import (
	"testing"

	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
)

func TestCatalogCoversEveryActionOnce(t *testing.T) {
	dealID := id.NewDealID()
	rules := Catalog(dealID)

	if len(rules) != len(domain.ActionTypes) {
		t.Fatalf("expected %d rules, got %d", len(domain.ActionTypes), len(rules))
	}

	seen := make(map[domain.ActionType]bool)
	for _, r := range rules {
		if r.DealID != dealID {
			t.Errorf("rule %s not stamped with deal ID", r.Action)
		}
		if seen[r.Action] {
			t.Errorf("duplicate rule for action %s", r.Action)
		}
		seen[r.Action] = true
		if len(r.AllowedRoles) == 0 {
			t.Errorf("rule %s allows no roles; it could never be requested", r.Action)
		}
		if r.ApprovalThreshold > len(r.ApproverRoles) {
			t.Errorf("rule %s threshold %d exceeds approver roles %d; it could never pass",
				r.Action, r.ApprovalThreshold, len(r.ApproverRoles))
		}
	}
	for _, a := range domain.ActionTypes {
		if !seen[a] {
			t.Errorf("no rule for action %s", a)
		}
	}
}

func TestCatalogIsDeterministic(t *testing.T) {
	dealID := id.NewDealID()
	a := Catalog(dealID)
	b := Catalog(dealID)
	for i := range a {
		if a[i].Action != b[i].Action {
			t.Fatalf("catalog order differs at %d: %s vs %s", i, a[i].Action, b[i].Action)
		}
	}
}

func TestScenarioRoleExpectations(t *testing.T) {
	rules := Catalog(id.NewDealID())
	byAction := make(map[domain.ActionType]int)
	for i, r := range rules {
		byAction[r.Action] = i
	}

	review := rules[byAction[domain.ActionOpenReview]]
	if review.HasAllowedRole([]domain.Role{domain.RoleLegal}) {
		t.Error("LEGAL must not be allowed to open review")
	}
	if !review.HasAllowedRole([]domain.Role{domain.RoleGP}) {
		t.Error("GP must be allowed to open review")
	}

	closing := rules[byAction[domain.ActionFinalizeClosing]]
	if closing.ApprovalThreshold != 3 {
		t.Errorf("finalize closing needs 3 distinct-role approvals, got %d", closing.ApprovalThreshold)
	}
	for _, role := range []domain.Role{domain.RoleGP, domain.RoleLender, domain.RoleEscrow} {
		if !closing.CountsTowardThreshold(role) {
			t.Errorf("%s approval must count toward finalize closing", role)
		}
	}

	approve := rules[byAction[domain.ActionApproveDeal]]
	if approve.ApprovalThreshold != 1 {
		t.Errorf("approve deal needs 1 approval, got %d", approve.ApprovalThreshold)
	}
}
