// Package domain holds the enumerations and value types shared by every
// kernel module: roles, truth classes, lifecycle states, event types, action
// types, and the authority context tagged union.
package domain

import (
	"encoding/json"
	"fmt"
)

// Role is the unit of authorization. Actors hold roles per deal; authority
// rules name roles, never individual actors.
type Role string

const (
	RoleGP      Role = "GP"
	RoleLP      Role = "LP"
	RoleLender  Role = "LENDER"
	RoleEscrow  Role = "ESCROW"
	RoleLegal   Role = "LEGAL"
	RoleTitle   Role = "TITLE"
	RoleAnalyst Role = "ANALYST"
	RoleSystem  Role = "SYSTEM"
)

// Roles lists every valid role in a fixed order.
var Roles = []Role{
	RoleGP, RoleLP, RoleLender, RoleEscrow,
	RoleLegal, RoleTitle, RoleAnalyst, RoleSystem,
}

// ValidRole reports whether r is a member of the role enumeration.
func ValidRole(r Role) bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// TruthClass tags the provenance strength of a material. The ordering is
// fixed and total: DOC > HUMAN > AI. An AI-sourced claim never satisfies a
// DOC or HUMAN requirement.
type TruthClass string

const (
	TruthDoc   TruthClass = "DOC"
	TruthHuman TruthClass = "HUMAN"
	TruthAI    TruthClass = "AI"
)

// Strength returns the total-order rank of a truth class; higher is stronger.
// Unknown classes rank below AI so they can never satisfy anything.
func (t TruthClass) Strength() int {
	switch t {
	case TruthDoc:
		return 3
	case TruthHuman:
		return 2
	case TruthAI:
		return 1
	default:
		return 0
	}
}

// Satisfies reports whether evidence of class t meets a requirement of class
// required.
func (t TruthClass) Satisfies(required TruthClass) bool {
	return t.Strength() >= required.Strength()
}

// ValidTruthClass reports whether t is a member of the enumeration.
func ValidTruthClass(t TruthClass) bool {
	return t == TruthDoc || t == TruthHuman || t == TruthAI
}

// LifecycleState is the deal's derived lifecycle position. The state machine
// is forward-only: folds take the running maximum of ranks and never regress.
type LifecycleState string

const (
	StateDraft       LifecycleState = "Draft"
	StateUnderReview LifecycleState = "UnderReview"
	StateApproved    LifecycleState = "Approved"
	StateClosing     LifecycleState = "Closing"
	StateClosed      LifecycleState = "Closed"
)

// Rank orders lifecycle states for the forward-only fold.
func (s LifecycleState) Rank() int {
	switch s {
	case StateDraft:
		return 0
	case StateUnderReview:
		return 1
	case StateApproved:
		return 2
	case StateClosing:
		return 3
	case StateClosed:
		return 4
	default:
		return -1
	}
}

// EventType enumerates every event the ledger accepts. The set is closed:
// appends with any other type fail validation before touching state.
type EventType string

const (
	EventReviewOpened      EventType = "ReviewOpened"
	EventApprovalGranted   EventType = "ApprovalGranted"
	EventMaterialRecorded  EventType = "MaterialRecorded"
	EventNoteAdded         EventType = "NoteAdded"
	EventTermsAmended      EventType = "TermsAmended"
	EventDealApproved      EventType = "DealApproved"
	EventFundingRequested  EventType = "FundingRequested"
	EventDocumentsExecuted EventType = "DocumentsExecuted"
	EventClosingFinalized  EventType = "ClosingFinalized"
	EventStressModeEntered EventType = "StressModeEntered"
	EventStressModeExited  EventType = "StressModeExited"
)

// EventTypes lists the allowed event types in a fixed order.
var EventTypes = []EventType{
	EventReviewOpened,
	EventApprovalGranted,
	EventMaterialRecorded,
	EventNoteAdded,
	EventTermsAmended,
	EventDealApproved,
	EventFundingRequested,
	EventDocumentsExecuted,
	EventClosingFinalized,
	EventStressModeEntered,
	EventStressModeExited,
}

// ValidEventType reports whether t is a member of the closed event type set.
func ValidEventType(t EventType) bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// LifecycleTarget returns the lifecycle state an event type advances toward,
// or "" when the event does not move lifecycle state.
func (t EventType) LifecycleTarget() LifecycleState {
	switch t {
	case EventReviewOpened:
		return StateUnderReview
	case EventDealApproved:
		return StateApproved
	case EventFundingRequested:
		return StateClosing
	case EventClosingFinalized:
		return StateClosed
	default:
		return ""
	}
}

// ActionType keys authority rules and material requirements. Ledger events
// map onto actions via ActionForEvent; a few actions (actor registration,
// artifact handling, proof-pack export) gate non-ledger operations.
type ActionType string

const (
	ActionOpenReview       ActionType = "OPEN_REVIEW"
	ActionGrantApproval    ActionType = "GRANT_APPROVAL"
	ActionRecordMaterial   ActionType = "RECORD_MATERIAL"
	ActionRecordNote       ActionType = "RECORD_NOTE"
	ActionAmendTerms       ActionType = "AMEND_TERMS"
	ActionApproveDeal      ActionType = "APPROVE_DEAL"
	ActionRequestFunding   ActionType = "REQUEST_FUNDING"
	ActionExecuteDocuments ActionType = "EXECUTE_DOCUMENTS"
	ActionFinalizeClosing  ActionType = "FINALIZE_CLOSING"
	ActionEnterStressMode  ActionType = "ENTER_STRESS_MODE"
	ActionExitStressMode   ActionType = "EXIT_STRESS_MODE"
	ActionRegisterActor    ActionType = "REGISTER_ACTOR"
	ActionUploadArtifact   ActionType = "UPLOAD_ARTIFACT"
	ActionLinkArtifact     ActionType = "LINK_ARTIFACT"
	ActionExportProofPack  ActionType = "EXPORT_PROOF_PACK"
)

// ActionTypes lists every action in a fixed order; the authority catalog
// seeds exactly one rule per entry.
var ActionTypes = []ActionType{
	ActionOpenReview,
	ActionGrantApproval,
	ActionRecordMaterial,
	ActionRecordNote,
	ActionAmendTerms,
	ActionApproveDeal,
	ActionRequestFunding,
	ActionExecuteDocuments,
	ActionFinalizeClosing,
	ActionEnterStressMode,
	ActionExitStressMode,
	ActionRegisterActor,
	ActionUploadArtifact,
	ActionLinkArtifact,
	ActionExportProofPack,
}

// ValidAction reports whether a is a member of the action enumeration.
func ValidAction(a ActionType) bool {
	for _, known := range ActionTypes {
		if a == known {
			return true
		}
	}
	return false
}

// ActionForEvent maps a ledger event type to the action it requests.
func ActionForEvent(t EventType) ActionType {
	switch t {
	case EventReviewOpened:
		return ActionOpenReview
	case EventApprovalGranted:
		return ActionGrantApproval
	case EventMaterialRecorded:
		return ActionRecordMaterial
	case EventNoteAdded:
		return ActionRecordNote
	case EventTermsAmended:
		return ActionAmendTerms
	case EventDealApproved:
		return ActionApproveDeal
	case EventFundingRequested:
		return ActionRequestFunding
	case EventDocumentsExecuted:
		return ActionExecuteDocuments
	case EventClosingFinalized:
		return ActionFinalizeClosing
	case EventStressModeEntered:
		return ActionEnterStressMode
	case EventStressModeExited:
		return ActionExitStressMode
	default:
		return ""
	}
}

// AuthorityContextKind discriminates the authority context union.
type AuthorityContextKind string

const (
	ContextRoleAssertion AuthorityContextKind = "role_assertion"
	ContextApproval      AuthorityContextKind = "approval"
	ContextOverride      AuthorityContextKind = "override"
	ContextSystem        AuthorityContextKind = "system"
)

// AuthorityContext snapshots the claims used to authorize an event. It is a
// tagged union rather than an open bag of fields so the projection's
// transition functions stay total: every kind has a known shape.
type AuthorityContext struct {
	Kind AuthorityContextKind `json:"kind"`

	// RoleAsserted is the role the actor acted under. Set for
	// role_assertion, approval, and override contexts.
	RoleAsserted Role `json:"roleAsserted,omitempty"`

	// TargetAction is the action an approval applies to. Approval contexts only.
	TargetAction ActionType `json:"targetAction,omitempty"`

	// Justification records why an override was exercised. Override contexts only.
	Justification string `json:"justification,omitempty"`
}

// Validate checks the union invariants for ctx paired with event type t.
func (c AuthorityContext) Validate(t EventType) error {
	switch c.Kind {
	case ContextRoleAssertion:
		if c.RoleAsserted == "" {
			return fmt.Errorf("role_assertion context requires roleAsserted")
		}
	case ContextApproval:
		if t != EventApprovalGranted {
			return fmt.Errorf("approval context only valid on %s events", EventApprovalGranted)
		}
		if c.RoleAsserted == "" || c.TargetAction == "" {
			return fmt.Errorf("approval context requires roleAsserted and targetAction")
		}
		if !ValidAction(c.TargetAction) {
			return fmt.Errorf("approval context names unknown action %q", c.TargetAction)
		}
	case ContextOverride:
		if c.RoleAsserted == "" {
			return fmt.Errorf("override context requires roleAsserted")
		}
		if c.Justification == "" {
			return fmt.Errorf("override context requires a justification")
		}
	case ContextSystem:
		// No additional fields.
	default:
		return fmt.Errorf("unknown authority context kind %q", c.Kind)
	}
	if c.RoleAsserted != "" && !ValidRole(c.RoleAsserted) {
		return fmt.Errorf("authority context asserts unknown role %q", c.RoleAsserted)
	}
	return nil
}

// ApprovalPayload is the payload shape of ApprovalGranted events.
type ApprovalPayload struct {
	Action ActionType `json:"action"`
}

// MaterialPayload is the payload shape of MaterialRecorded events. Recording
// a material writes the ledger row and appends this event, so projections
// rebuild the material set from the log alone.
type MaterialPayload struct {
	MaterialID   string     `json:"materialId"`
	MaterialType string     `json:"materialType"`
	TruthClass   TruthClass `json:"truthClass"`
	AsOf         string     `json:"asOf"` // RFC3339Nano
}

// DecodePayload unmarshals an event payload into dst, tolerating a nil
// payload as an empty object.
func DecodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
