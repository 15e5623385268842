package handler

import (
	"encoding/json"
	"strings"
	"time"

	"dealkernel/internal/domain"
	"dealkernel/internal/material/service"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
)

// RecordMaterialRequest is the HTTP request body for POST
// /deals/{dealID}/materials.
type RecordMaterialRequest struct {
	ActorID      string          `json:"actorId"`
	Type         string          `json:"type"`
	Data         json.RawMessage `json:"data,omitempty"`
	TruthClass   string          `json:"truthClass"`
	AsOf         string          `json:"asOf,omitempty"`
	SourceRef    string          `json:"sourceRef,omitempty"`
	RoleAsserted string          `json:"roleAsserted,omitempty"`
	EvidenceRefs []string        `json:"evidenceRefs,omitempty"`

	// Parsed values (populated by Validate)
	parsedActorID id.ActorID
	parsedAsOf    time.Time
	parsedRefs    []id.ArtifactID
}

// Validate validates and parses the request.
func (r *RecordMaterialRequest) Validate() error {
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

	r.Type = strings.TrimSpace(r.Type)
	if r.Type == "" {
		return dErrors.New(dErrors.CodeBadRequest, "type is required")
	}

	r.TruthClass = strings.ToUpper(strings.TrimSpace(r.TruthClass))
	if !domain.ValidTruthClass(domain.TruthClass(r.TruthClass)) {
		return dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonInvalidTruthClass,
			"truthClass must be one of DOC, HUMAN, AI")
	}

	if r.AsOf != "" {
		asOf, err := time.Parse(time.RFC3339, r.AsOf)
		if err != nil {
			return dErrors.New(dErrors.CodeBadRequest, "asOf must be an RFC 3339 timestamp")
		}
		r.parsedAsOf = asOf.UTC()
	}

	for _, ref := range r.EvidenceRefs {
		artifactID, err := id.ParseArtifactID(strings.TrimSpace(ref))
		if err != nil {
			return dErrors.New(dErrors.CodeBadRequest, "evidenceRefs contains an invalid artifact id")
		}
		r.parsedRefs = append(r.parsedRefs, artifactID)
	}
	return nil
}

// Input converts the request to the service input.
func (r *RecordMaterialRequest) Input() service.RecordInput {
	return service.RecordInput{
		ActorID:      r.parsedActorID,
		Type:         r.Type,
		Data:         r.Data,
		TruthClass:   domain.TruthClass(r.TruthClass),
		AsOf:         r.parsedAsOf,
		SourceRef:    strings.TrimSpace(r.SourceRef),
		RoleAsserted: domain.Role(strings.ToUpper(strings.TrimSpace(r.RoleAsserted))),
		EvidenceRefs: r.parsedRefs,
	}
}
