// Package authority seeds and evaluates per-deal authority rules. Role-based
// dispatch is expressed as data, never code: the same rule rows drive both
// the enforcement path and the explain path.
package authority

import (
	"dealkernel/internal/authority/models"
	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
)

// Catalog returns the fixed rule set seeded into every new deal, in a
// deterministic order. It is seeded exactly once at deal creation and never
// silently regenerated; editing this table changes future deals only.
func Catalog(dealID id.DealID) []models.Rule {
	gp := domain.RoleGP
	all := domain.Roles

	rules := []models.Rule{
		{
			Action:        domain.ActionOpenReview,
			AllowedRoles:  []domain.Role{gp, domain.RoleAnalyst},
			OverrideRoles: []domain.Role{gp},
		},
		{
			Action:       domain.ActionGrantApproval,
			AllowedRoles: []domain.Role{gp, domain.RoleLender, domain.RoleEscrow, domain.RoleLegal, domain.RoleTitle, domain.RoleLP},
		},
		{
			Action:       domain.ActionRecordMaterial,
			AllowedRoles: []domain.Role{gp, domain.RoleAnalyst, domain.RoleLegal, domain.RoleSystem},
		},
		{
			Action:       domain.ActionRecordNote,
			AllowedRoles: all,
		},
		{
			Action:            domain.ActionAmendTerms,
			AllowedRoles:      []domain.Role{gp, domain.RoleLegal},
			ApproverRoles:     []domain.Role{gp, domain.RoleLegal, domain.RoleLender},
			ApprovalThreshold: 1,
			OverrideRoles:     []domain.Role{gp},
		},
		{
			Action:            domain.ActionApproveDeal,
			AllowedRoles:      []domain.Role{gp},
			ApproverRoles:     []domain.Role{gp, domain.RoleLender, domain.RoleLP},
			ApprovalThreshold: 1,
			OverrideRoles:     []domain.Role{gp},
		},
		{
			Action:            domain.ActionRequestFunding,
			AllowedRoles:      []domain.Role{gp, domain.RoleLender},
			ApproverRoles:     []domain.Role{gp, domain.RoleLender},
			ApprovalThreshold: 2,
			OverrideRoles:     []domain.Role{gp},
		},
		{
			Action:            domain.ActionExecuteDocuments,
			AllowedRoles:      []domain.Role{gp, domain.RoleLegal},
			ApproverRoles:     []domain.Role{gp, domain.RoleLegal},
			ApprovalThreshold: 1,
		},
		{
			Action:            domain.ActionFinalizeClosing,
			AllowedRoles:      []domain.Role{gp, domain.RoleEscrow},
			ApproverRoles:     []domain.Role{gp, domain.RoleLender, domain.RoleEscrow},
			ApprovalThreshold: 3,
		},
		{
			Action:       domain.ActionEnterStressMode,
			AllowedRoles: []domain.Role{gp, domain.RoleLender, domain.RoleSystem},
		},
		{
			Action:            domain.ActionExitStressMode,
			AllowedRoles:      []domain.Role{gp},
			ApproverRoles:     []domain.Role{gp, domain.RoleLender},
			ApprovalThreshold: 1,
		},
		{
			Action:       domain.ActionRegisterActor,
			AllowedRoles: []domain.Role{gp, domain.RoleSystem},
		},
		{
			Action:       domain.ActionUploadArtifact,
			AllowedRoles: all,
		},
		{
			Action:       domain.ActionLinkArtifact,
			AllowedRoles: []domain.Role{gp, domain.RoleAnalyst, domain.RoleLegal, domain.RoleSystem},
		},
		{
			Action:       domain.ActionExportProofPack,
			AllowedRoles: []domain.Role{gp, domain.RoleLegal, domain.RoleLender, domain.RoleEscrow, domain.RoleLP},
		},
	}

	for i := range rules {
		rules[i].DealID = dealID
		if rules[i].ApproverRoles == nil {
			rules[i].ApproverRoles = []domain.Role{}
		}
		if rules[i].OverrideRoles == nil {
			rules[i].OverrideRoles = []domain.Role{}
		}
	}
	return rules
}
