package handler

import (
	"strings"

	"dealkernel/internal/deal/models"
	"dealkernel/internal/deal/service"
	"dealkernel/internal/domain"
	dErrors "dealkernel/pkg/domainerrors"
)

// CreateDealRequest is the HTTP request body for POST /deals.
type CreateDealRequest struct {
	Name string `json:"name"`
}

// Validate validates and normalizes the request.
func (r *CreateDealRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeBadRequest, "name is required")
	}
	if len(r.Name) > 200 {
		return dErrors.New(dErrors.CodeBadRequest, "name must be at most 200 characters")
	}
	return nil
}

// RegisterActorRequest is the HTTP request body for POST /deals/{dealID}/actors.
type RegisterActorRequest struct {
	Type        string   `json:"type"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
}

// Validate validates and normalizes the request. Role membership is checked
// by the service; this only rejects the structurally empty.
func (r *RegisterActorRequest) Validate() error {
	r.Type = strings.TrimSpace(r.Type)
	if r.Type == "" {
		r.Type = string(models.ActorHuman)
	}
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	if r.DisplayName == "" {
		return dErrors.New(dErrors.CodeBadRequest, "displayName is required")
	}
	if len(r.Roles) == 0 {
		return dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonInvalidRole,
			"at least one role is required")
	}
	return nil
}

// Input converts the request to the service input.
func (r *RegisterActorRequest) Input() service.RegisterActorInput {
	roles := make([]domain.Role, len(r.Roles))
	for i, role := range r.Roles {
		roles[i] = domain.Role(strings.ToUpper(strings.TrimSpace(role)))
	}
	return service.RegisterActorInput{
		Type:        models.ActorType(r.Type),
		DisplayName: r.DisplayName,
		Roles:       roles,
	}
}
