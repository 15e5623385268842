package handler

import (
	"encoding/json"
	"strings"

	"dealkernel/internal/domain"
	eventmodels "dealkernel/internal/event/models"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
)

// AppendEventRequest is the HTTP request body for POST /deals/{dealID}/events
// and POST /deals/{dealID}/explain.
type AppendEventRequest struct {
	Type             string                  `json:"type"`
	ActorID          string                  `json:"actorId"`
	Payload          json.RawMessage         `json:"payload,omitempty"`
	AuthorityContext AuthorityContextRequest `json:"authorityContext"`
	EvidenceRefs     []string                `json:"evidenceRefs,omitempty"`

	// Parsed values (populated by Validate)
	parsedActorID id.ActorID
	parsedRefs    []id.ArtifactID
}

// AuthorityContextRequest is the wire shape of an authority context.
type AuthorityContextRequest struct {
	Kind          string `json:"kind"`
	RoleAsserted  string `json:"roleAsserted,omitempty"`
	TargetAction  string `json:"targetAction,omitempty"`
	Justification string `json:"justification,omitempty"`
}

// Validate validates and parses the request. Event type membership, actor
// registration, and authority context invariants are the service's job; this
// layer only rejects what cannot be parsed at all.
func (r *AppendEventRequest) Validate() error {
	r.Type = strings.TrimSpace(r.Type)
	if r.Type == "" {
		return dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonUnknownEventType,
			"type is required")
	}

	r.ActorID = strings.TrimSpace(r.ActorID)
	if r.ActorID == "" {
		return dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonMissingActor,
			"actorId is required")
	}
	actorID, err := id.ParseActorID(r.ActorID)
	if err != nil {
		return dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonMissingActor,
			"actorId is not a valid id")
	}
	r.parsedActorID = actorID

	for _, ref := range r.EvidenceRefs {
		artifactID, err := id.ParseArtifactID(strings.TrimSpace(ref))
		if err != nil {
			return dErrors.New(dErrors.CodeBadRequest, "evidenceRefs contains an invalid artifact id")
		}
		r.parsedRefs = append(r.parsedRefs, artifactID)
	}
	return nil
}

// Candidate converts the request to a ledger candidate.
func (r *AppendEventRequest) Candidate() eventmodels.Candidate {
	return eventmodels.Candidate{
		Type:    domain.EventType(r.Type),
		ActorID: r.parsedActorID,
		Payload: r.Payload,
		AuthorityContext: domain.AuthorityContext{
			Kind:          domain.AuthorityContextKind(r.AuthorityContext.Kind),
			RoleAsserted:  domain.Role(strings.ToUpper(strings.TrimSpace(r.AuthorityContext.RoleAsserted))),
			TargetAction:  domain.ActionType(strings.ToUpper(strings.TrimSpace(r.AuthorityContext.TargetAction))),
			Justification: strings.TrimSpace(r.AuthorityContext.Justification),
		},
		EvidenceRefs: r.parsedRefs,
	}
}
