// Package material is the evidence ledger: typed records with truth classes
// and the static per-action requirement policy.
package material

import (
	"dealkernel/internal/domain"
	"dealkernel/internal/material/models"
)

// Well-known material types. The set is open (any string is storable); these
// are the ones policy requires.
const (
	TypeUnderwritingSummary = "UnderwritingSummary"
	TypeTermSheet           = "TermSheet"
	TypeEntityFormationDocs = "EntityFormationDocs"
	TypeWireConfirmation    = "WireConfirmation"
)

// requirements is the static per-action evidence policy. AI-sourced claims
// never satisfy a DOC or HUMAN requirement; the truth-class total order
// enforces that without special casing.
var requirements = map[domain.ActionType][]models.Requirement{
	domain.ActionApproveDeal: {
		{MaterialType: TypeUnderwritingSummary, RequiredTruth: domain.TruthHuman},
	},
	domain.ActionRequestFunding: {
		{MaterialType: TypeTermSheet, RequiredTruth: domain.TruthHuman},
	},
	domain.ActionExecuteDocuments: {
		{MaterialType: TypeEntityFormationDocs, RequiredTruth: domain.TruthDoc},
	},
	domain.ActionFinalizeClosing: {
		{MaterialType: TypeWireConfirmation, RequiredTruth: domain.TruthDoc},
		{MaterialType: TypeEntityFormationDocs, RequiredTruth: domain.TruthDoc},
	},
}

// RequirementsFor returns the action's evidence requirements in a fixed
// order, empty for actions with none.
func RequirementsFor(action domain.ActionType) []models.Requirement {
	reqs := requirements[action]
	out := make([]models.Requirement, len(reqs))
	copy(out, reqs)
	return out
}

// StatusAgainst measures the best available truth class for a type against a
// requirement. A nil best means no material of that type exists.
func StatusAgainst(req models.Requirement, best *domain.TruthClass) models.Status {
	if best == nil {
		return models.StatusMissing
	}
	if best.Satisfies(req.RequiredTruth) {
		return models.StatusOK
	}
	return models.StatusInsufficient
}
