package handler

import (
	"strings"

	"dealkernel/internal/artifact/service"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
)

// LinkArtifactRequest is the HTTP request body for POST
// /deals/{dealID}/artifacts/links.
type LinkArtifactRequest struct {
	ActorID    string `json:"actorId"`
	ArtifactID string `json:"artifactId"`
	EventID    string `json:"eventId,omitempty"`
	MaterialID string `json:"materialId,omitempty"`
	Tag        string `json:"tag,omitempty"`

	// Parsed values (populated by Validate)
	parsed service.LinkInput
}

// Validate validates and parses the request.
func (r *LinkArtifactRequest) Validate() error {
	actorID, err := id.ParseActorID(strings.TrimSpace(r.ActorID))
	if err != nil {
		return dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonMissingActor,
			"actorId is not a valid id")
	}
	artifactID, err := id.ParseArtifactID(strings.TrimSpace(r.ArtifactID))
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "artifactId is not a valid id")
	}
	r.parsed = service.LinkInput{
		ActorID:    actorID,
		ArtifactID: artifactID,
		Tag:        strings.TrimSpace(r.Tag),
	}

	if raw := strings.TrimSpace(r.EventID); raw != "" {
		eventID, err := id.ParseEventID(raw)
		if err != nil {
			return dErrors.New(dErrors.CodeBadRequest, "eventId is not a valid id")
		}
		r.parsed.EventID = &eventID
	}
	if raw := strings.TrimSpace(r.MaterialID); raw != "" {
		materialID, err := id.ParseMaterialID(raw)
		if err != nil {
			return dErrors.New(dErrors.CodeBadRequest, "materialId is not a valid id")
		}
		r.parsed.MaterialID = &materialID
	}
	return nil
}

// Input converts the request to the service input.
func (r *LinkArtifactRequest) Input() service.LinkInput {
	return r.parsed
}
