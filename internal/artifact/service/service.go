// Package service stores artifacts by content hash and assembles proof
// packs.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"dealkernel/internal/artifact/models"
	authoritymodels "dealkernel/internal/authority/models"
	dealmodels "dealkernel/internal/deal/models"
	"dealkernel/internal/domain"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
	"dealkernel/pkg/platform/sentinel"
	"dealkernel/pkg/requestcontext"
)

// Store is the artifact persistence surface.
type Store interface {
	Put(ctx context.Context, art *models.Artifact) (*models.Artifact, error)
	Find(ctx context.Context, artifactID id.ArtifactID) (*models.Artifact, error)
	CreateLink(ctx context.Context, link *models.Link) error
	ListLinksByDeal(ctx context.Context, dealID id.DealID) ([]models.Link, error)
}

// Deals resolves deal existence.
type Deals interface {
	Get(ctx context.Context, dealID id.DealID) (*dealmodels.Deal, error)
}

// ActorResolver answers which roles an actor holds on a deal.
type ActorResolver interface {
	ActorRoles(ctx context.Context, dealID id.DealID, actorID id.ActorID) ([]domain.Role, error)
}

// Rules resolves per-deal authority rules for the deal-scoped artifact
// operations.
type Rules interface {
	RuleFor(ctx context.Context, dealID id.DealID, action domain.ActionType) (*authoritymodels.Rule, error)
}

// Service handles artifact upload, download, linking, and proof-pack export.
type Service struct {
	store  Store
	deals  Deals
	actors ActorResolver
	rules  Rules
	events EventSource
	proj   Projector
}

func New(store Store, deals Deals, actors ActorResolver, rules Rules, events EventSource, proj Projector) *Service {
	return &Service{store: store, deals: deals, actors: actors, rules: rules, events: events, proj: proj}
}

// Upload stores the content under its SHA-256 on behalf of a deal.
// Re-uploading identical bytes returns the existing artifact; the hash, not
// the uploader, is the identity, so artifacts dedupe across deals while each
// deal keeps its own links.
func (s *Service) Upload(ctx context.Context, dealID id.DealID, content []byte, mimeType string, uploaderID id.ActorID) (*models.Artifact, error) {
	if _, err := s.deals.Get(ctx, dealID); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, dealID, uploaderID, domain.ActionUploadArtifact); err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "artifact body is empty")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	sum := sha256.Sum256(content)
	art := &models.Artifact{
		ID:         id.NewArtifactID(),
		SHA256Hex:  hex.EncodeToString(sum[:]),
		Size:       int64(len(content)),
		MimeType:   mimeType,
		UploaderID: uploaderID,
		Content:    content,
		CreatedAt:  requestcontext.Now(ctx).UTC(),
	}
	stored, err := s.store.Put(ctx, art)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "store artifact", err)
	}
	return stored, nil
}

// Download returns the artifact with its content after re-verifying the
// stored hash. A mismatch means the store is corrupt; that is an integrity
// failure, never served as data.
func (s *Service) Download(ctx context.Context, dealID id.DealID, artifactID id.ArtifactID) (*models.Artifact, error) {
	if _, err := s.deals.Get(ctx, dealID); err != nil {
		return nil, err
	}
	art, err := s.store.Find(ctx, artifactID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "artifact not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "find artifact", err)
	}

	sum := sha256.Sum256(art.Content)
	if got := hex.EncodeToString(sum[:]); got != art.SHA256Hex {
		return nil, dErrors.NewWithReason(dErrors.CodeInternal, dErrors.ReasonHashMismatch,
			fmt.Sprintf("artifact %s content hashes to %s, stored hash is %s", artifactID, got, art.SHA256Hex))
	}
	return art, nil
}

// LinkInput describes one artifact-to-deal link.
type LinkInput struct {
	ActorID    id.ActorID
	ArtifactID id.ArtifactID
	EventID    *id.EventID
	MaterialID *id.MaterialID
	Tag        string
}

// Link ties an artifact into a deal's evidence trail. Linking is deal-scoped
// and role-gated like any other action.
func (s *Service) Link(ctx context.Context, dealID id.DealID, input LinkInput) (*models.Link, error) {
	if _, err := s.deals.Get(ctx, dealID); err != nil {
		return nil, err
	}
	if input.ActorID.IsZero() {
		return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonMissingActor,
			"actorId is required")
	}
	roles, err := s.actors.ActorRoles(ctx, dealID, input.ActorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonMissingActor,
				fmt.Sprintf("actor %s is not registered on deal %s", input.ActorID, dealID))
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "resolve actor", err)
	}
	rule, err := s.rules.RuleFor(ctx, dealID, domain.ActionLinkArtifact)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "resolve authority rule", err)
	}
	if !rule.HasAllowedRole(roles) {
		return nil, dErrors.NewWithReason(dErrors.CodeForbidden, dErrors.ReasonForbiddenRole,
			fmt.Sprintf("linking artifacts requires one of roles %v", rule.AllowedRoles))
	}

	if _, err := s.store.Find(ctx, input.ArtifactID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "artifact not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "find artifact", err)
	}

	link := &models.Link{
		ID:         id.NewLinkID(),
		ArtifactID: input.ArtifactID,
		DealID:     dealID,
		EventID:    input.EventID,
		MaterialID: input.MaterialID,
		Tag:        input.Tag,
		CreatedAt:  requestcontext.Now(ctx).UTC(),
	}
	if err := s.store.CreateLink(ctx, link); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "create artifact link", err)
	}
	return link, nil
}
