// Package gate enforces authority rules and material requirements at the
// single choke point every mutating request passes through. Enforcement and
// explanation run the same predicate over the same projection, so the two
// can never disagree.
package gate

import (
	"fmt"
	"time"

	"dealkernel/internal/domain"
	"dealkernel/internal/projection"
	dErrors "dealkernel/pkg/domainerrors"
)

// Status is the outcome of one gate evaluation.
type Status string

const (
	StatusAllowed Status = "ALLOWED"
	StatusBlocked Status = "BLOCKED"
)

// Decision is the full result of evaluating one action against the
// projection at an instant. The same shape serves the enforcement response,
// the explain response, and the blocked-request body, so callers always see
// exactly what the gate saw.
type Decision struct {
	Action  domain.ActionType `json:"action"`
	Status  Status            `json:"status"`
	At      time.Time         `json:"at"`
	Reasons []Reason          `json:"reasons,omitempty"`

	// NextSteps names what would unblock the action, including who can do
	// it. Present only on blocked decisions.
	NextSteps []NextStep `json:"nextSteps,omitempty"`

	// OverrideUsed marks decisions that passed only because an authorized
	// override bypassed unmet checks. The bypassed reasons stay listed with
	// SatisfiedByOverride set; an override is visible, never silent.
	OverrideUsed bool `json:"overrideUsed,omitempty"`

	InputsUsed InputsUsed `json:"inputsUsed"`
}

// Reason is one unmet (or overridden) check.
type Reason struct {
	Type    string `json:"type"`
	Message string `json:"message"`

	// Approval threshold detail.
	RequiredCount int           `json:"requiredCount,omitempty"`
	CurrentCount  int           `json:"currentCount,omitempty"`
	ApprovedRoles []domain.Role `json:"approvedRoles,omitempty"`

	// Material requirement detail. CurrentTruth is empty when no material
	// of the type exists at all.
	MaterialType  string            `json:"materialType,omitempty"`
	RequiredTruth domain.TruthClass `json:"requiredTruth,omitempty"`
	CurrentTruth  domain.TruthClass `json:"currentTruth,omitempty"`

	SatisfiedByOverride bool `json:"satisfiedByOverride,omitempty"`
}

// NextStep is one concrete remediation for a blocked decision.
type NextStep struct {
	Description            string        `json:"description"`
	CanBeFixedByRoles      []domain.Role `json:"canBeFixedByRoles,omitempty"`
	CanBeOverriddenByRoles []domain.Role `json:"canBeOverriddenByRoles,omitempty"`
}

// InputsUsed pins the projection facts the predicate consumed, so a decision
// can be audited against the event log it was derived from.
type InputsUsed struct {
	DealStateAtT  domain.LifecycleState        `json:"dealStateAtT"`
	StressModeAtT bool                         `json:"stressModeAtT"`
	ApprovalsAtT  []projection.ActionApprovals `json:"approvalsAtT"`
	MaterialsAtT  []projection.MaterialState   `json:"materialsAtT"`
	EventsApplied int                          `json:"eventsApplied"`
	LastSeq       int64                        `json:"lastSeq"`
}

// BlockedError carries the full decision through the error path so the HTTP
// layer can return the decision body alongside the right status code.
type BlockedError struct {
	Decision *Decision
	reason   string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("action %s blocked: %s", e.Decision.Action, e.reason)
}

// Unwrap yields the typed domain error so callers can keep matching on
// codes and reasons without knowing about decisions.
func (e *BlockedError) Unwrap() error {
	code := dErrors.CodeConflict
	if e.reason == dErrors.ReasonForbiddenRole || e.reason == dErrors.ReasonForbiddenOverride {
		code = dErrors.CodeForbidden
	}
	return dErrors.NewWithReason(code, e.reason, e.Error())
}

func newBlockedError(d *Decision) *BlockedError {
	reason := dErrors.ReasonApprovalUnmet
	if len(d.Reasons) > 0 {
		reason = d.Reasons[0].Type
	}
	return &BlockedError{Decision: d, reason: reason}
}
