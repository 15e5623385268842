package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"dealkernel/internal/artifact/models"
	dealmodels "dealkernel/internal/deal/models"
	"dealkernel/internal/domain"
	eventmodels "dealkernel/internal/event/models"
	"dealkernel/internal/projection"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
	"dealkernel/pkg/requestcontext"
)

// EventSource is the ledger read path the exporter replays.
type EventSource interface {
	ReplayPrefix(ctx context.Context, dealID id.DealID, upto *time.Time) ([]eventmodels.Event, error)
}

// Projector replays the log into state for the pack, either current or at a
// historical instant.
type Projector interface {
	ProjectNow(ctx context.Context, dealID id.DealID, now time.Time) (*projection.Projection, error)
	ProjectAt(ctx context.Context, dealID id.DealID, at time.Time) (*projection.Projection, error)
	VerifyDeterministic(ctx context.Context, dealID id.DealID, at *time.Time) error
}

// ProofPack is a self-contained, externally verifiable export of one deal:
// the full event log, the projection derived from it, and the hashes of
// every linked artifact. BundleSHA256 covers the pack's content — not the
// export timestamps — so a recipient can detect tampering and two exports of
// the same history carry the same seal.
type ProofPack struct {
	GeneratedAt time.Time              `json:"generatedAt"`
	Deal        *dealmodels.Deal       `json:"deal"`
	Events      []eventmodels.Event    `json:"events"`
	Projection  *projection.Projection `json:"projection"`
	Links       []models.Link          `json:"links"`
	Artifacts   []ProofPackArtifact    `json:"artifacts"`

	BundleSHA256 string `json:"bundleSha256"`
}

// ProofPackArtifact is artifact metadata inside a pack: hashes travel,
// content does not.
type ProofPackArtifact struct {
	ID        id.ArtifactID `json:"id"`
	SHA256Hex string        `json:"sha256"`
	Size      int64         `json:"size"`
	MimeType  string        `json:"mimeType"`
}

// ExportProofPack gathers the deal, its event log, the projection, and
// linked artifact hashes in parallel, then seals the bundle with its own
// SHA-256. A non-nil at exports the historical prefix: the events and
// projection as they stood at that instant. Every linked artifact's content
// is re-hashed on the way out; a corrupt blob fails the export rather than
// shipping a bad proof.
func (s *Service) ExportProofPack(ctx context.Context, dealID id.DealID, actorID id.ActorID, at *time.Time) (*ProofPack, error) {
	deal, err := s.deals.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, dealID, actorID, domain.ActionExportProofPack); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx).UTC()
	pack := &ProofPack{GeneratedAt: now, Deal: deal}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events, err := s.events.ReplayPrefix(gctx, dealID, at)
		if err != nil {
			return fmt.Errorf("replay events: %w", err)
		}
		pack.Events = events
		return nil
	})
	g.Go(func() error {
		var proj *projection.Projection
		var err error
		if at != nil {
			proj, err = s.proj.ProjectAt(gctx, dealID, at.UTC())
		} else {
			proj, err = s.proj.ProjectNow(gctx, dealID, now)
		}
		if err != nil {
			return fmt.Errorf("project deal: %w", err)
		}
		pack.Projection = proj
		return nil
	})
	g.Go(func() error {
		links, err := s.store.ListLinksByDeal(gctx, dealID)
		if err != nil {
			return fmt.Errorf("list links: %w", err)
		}
		pack.Links = links
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "assemble proof pack", err)
	}

	// A pack is a verifiable claim about the log. Prove the projection is a
	// pure function of it before sealing anything.
	if err := s.proj.VerifyDeterministic(ctx, dealID, at); err != nil {
		return nil, err
	}

	seen := make(map[id.ArtifactID]bool, len(pack.Links))
	for _, link := range pack.Links {
		if seen[link.ArtifactID] {
			continue
		}
		seen[link.ArtifactID] = true
		art, err := s.Download(ctx, dealID, link.ArtifactID)
		if err != nil {
			return nil, err
		}
		pack.Artifacts = append(pack.Artifacts, ProofPackArtifact{
			ID:        art.ID,
			SHA256Hex: art.SHA256Hex,
			Size:      art.Size,
			MimeType:  art.MimeType,
		})
	}

	if err := seal(pack); err != nil {
		return nil, err
	}
	return pack, nil
}

func (s *Service) requireRole(ctx context.Context, dealID id.DealID, actorID id.ActorID, action domain.ActionType) error {
	if actorID.IsZero() {
		return dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonMissingActor,
			"actorId is required")
	}
	roles, err := s.actors.ActorRoles(ctx, dealID, actorID)
	if err != nil {
		return dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonMissingActor,
			fmt.Sprintf("actor %s is not registered on deal %s", actorID, dealID))
	}
	rule, err := s.rules.RuleFor(ctx, dealID, action)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "resolve authority rule", err)
	}
	if !rule.HasAllowedRole(roles) {
		return dErrors.NewWithReason(dErrors.CodeForbidden, dErrors.ReasonForbiddenRole,
			fmt.Sprintf("%s requires one of roles %v", action, rule.AllowedRoles))
	}
	return nil
}

// seal computes the bundle hash over the pack's canonical JSON with the hash
// field empty. Export timestamps (GeneratedAt, the projection's At) stay
// outside the hash: the same event prefix must always seal to the same
// value, whenever it is exported. All nested slices are deterministically
// ordered, so the remaining bytes are stable.
func seal(pack *ProofPack) error {
	hashed := *pack
	hashed.BundleSHA256 = ""
	hashed.GeneratedAt = time.Time{}
	if hashed.Projection != nil {
		proj := *hashed.Projection
		proj.At = time.Time{}
		hashed.Projection = &proj
	}
	raw, err := json.Marshal(&hashed)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "marshal proof pack", err)
	}
	sum := sha256.Sum256(raw)
	pack.BundleSHA256 = hex.EncodeToString(sum[:])
	return nil
}
