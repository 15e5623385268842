package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealkernel/internal/artifact/models"
	"dealkernel/internal/artifact/store"
	authoritystore "dealkernel/internal/authority/store"
	dealmodels "dealkernel/internal/deal/models"
	dealservice "dealkernel/internal/deal/service"
	dealstore "dealkernel/internal/deal/store"
	"dealkernel/internal/domain"
	eventservice "dealkernel/internal/event/service"
	eventstore "dealkernel/internal/event/store"
	"dealkernel/internal/projection"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
	"dealkernel/pkg/requestcontext"
)

type harness struct {
	svc    *Service
	store  *store.Memory
	deals  *dealservice.Service
	dealID id.DealID
	gp     id.ActorID
	title  id.ActorID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	dealStore := dealstore.NewMemory()
	ruleStore := authoritystore.NewMemory()
	dealSvc := dealservice.New(dealStore, ruleStore, nil)

	eventSvc := eventservice.New(eventstore.NewMemory(), dealStore)
	engine := projection.NewEngine(eventSvc, nil)

	artStore := store.NewMemory()
	svc := New(artStore, dealSvc, dealStore, ruleStore, eventSvc, engine)

	deal, err := dealSvc.Create(ctx, "Harbor Point Refinance")
	require.NoError(t, err)

	gp, err := dealSvc.RegisterActor(ctx, deal.ID, dealservice.RegisterActorInput{
		Type: dealmodels.ActorHuman, DisplayName: "gp", Roles: []domain.Role{domain.RoleGP},
	})
	require.NoError(t, err)
	title, err := dealSvc.RegisterActor(ctx, deal.ID, dealservice.RegisterActorInput{
		Type: dealmodels.ActorHuman, DisplayName: "title", Roles: []domain.Role{domain.RoleTitle},
	})
	require.NoError(t, err)

	return &harness{svc: svc, store: artStore, deals: dealSvc, dealID: deal.ID, gp: gp.ID, title: title.ID}
}

func TestUpload_DeduplicatesByContent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	content := []byte("wire confirmation #4417")

	first, err := h.svc.Upload(ctx, h.dealID, content, "text/plain", h.gp)
	require.NoError(t, err)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), first.SHA256Hex)
	assert.Equal(t, int64(len(content)), first.Size)

	// Same bytes from a different uploader resolve to the same artifact.
	second, err := h.svc.Upload(ctx, h.dealID, content, "text/plain", h.title)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.UploaderID, second.UploaderID)

	other, err := h.svc.Upload(ctx, h.dealID, []byte("different bytes"), "text/plain", h.gp)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestUpload_RejectsEmptyBody(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Upload(context.Background(), h.dealID, nil, "text/plain", h.gp)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
}

func TestUpload_RequiresDealAndRegisteredActor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Upload(ctx, id.NewDealID(), []byte("orphan"), "text/plain", h.gp)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))

	_, err = h.svc.Upload(ctx, h.dealID, []byte("stranger"), "text/plain", id.NewActorID())
	require.Error(t, err)
	assert.Equal(t, dErrors.ReasonMissingActor, dErrors.ReasonOf(err))
}

func TestDownload_VerifiesHash(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	art, err := h.svc.Upload(ctx, h.dealID, []byte("entity formation docs"), "application/pdf", h.gp)
	require.NoError(t, err)

	got, err := h.svc.Download(ctx, h.dealID, art.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("entity formation docs"), got.Content)

	// Serve corrupted bytes under the original hash. The re-hash on
	// download must catch it.
	corrupted := New(&corruptingStore{Store: h.store}, h.deals, nil, nil, nil, nil)
	_, err = corrupted.Download(ctx, h.dealID, art.ID)
	require.Error(t, err)
	assert.Equal(t, dErrors.ReasonHashMismatch, dErrors.ReasonOf(err))
	assert.True(t, dErrors.Is(err, dErrors.CodeInternal))
}

// corruptingStore flips the content of everything it serves without touching
// the stored hash.
type corruptingStore struct {
	Store
}

func (c *corruptingStore) Find(ctx context.Context, artifactID id.ArtifactID) (*models.Artifact, error) {
	art, err := c.Store.Find(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	art.Content = []byte("tampered")
	return art, nil
}

func TestDownload_UnknownArtifactIs404(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Download(context.Background(), h.dealID, id.NewArtifactID())
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
}

func TestLink_RoleGated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	art, err := h.svc.Upload(ctx, h.dealID, []byte("signed term sheet"), "application/pdf", h.gp)
	require.NoError(t, err)

	link, err := h.svc.Link(ctx, h.dealID, LinkInput{
		ActorID:    h.gp,
		ArtifactID: art.ID,
		Tag:        "term-sheet",
	})
	require.NoError(t, err)
	assert.Equal(t, art.ID, link.ArtifactID)

	// TITLE is not an allowed role for linking.
	_, err = h.svc.Link(ctx, h.dealID, LinkInput{ActorID: h.title, ArtifactID: art.ID})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeForbidden))
	assert.Equal(t, dErrors.ReasonForbiddenRole, dErrors.ReasonOf(err))

	// Unregistered actors fail structural validation, not authorization.
	_, err = h.svc.Link(ctx, h.dealID, LinkInput{ActorID: id.NewActorID(), ArtifactID: art.ID})
	require.Error(t, err)
	assert.Equal(t, dErrors.ReasonMissingActor, dErrors.ReasonOf(err))

	_, err = h.svc.Link(ctx, h.dealID, LinkInput{ActorID: h.gp, ArtifactID: id.NewArtifactID()})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
}

func TestExportProofPack_SealsBundle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	art, err := h.svc.Upload(ctx, h.dealID, []byte("wire confirmation"), "application/pdf", h.gp)
	require.NoError(t, err)
	_, err = h.svc.Link(ctx, h.dealID, LinkInput{ActorID: h.gp, ArtifactID: art.ID, Tag: "wire"})
	require.NoError(t, err)
	// Two links to the same artifact must not duplicate it in the pack.
	_, err = h.svc.Link(ctx, h.dealID, LinkInput{ActorID: h.gp, ArtifactID: art.ID, Tag: "wire-copy"})
	require.NoError(t, err)

	pack, err := h.svc.ExportProofPack(ctx, h.dealID, h.gp, nil)
	require.NoError(t, err)

	require.NotNil(t, pack.Deal)
	require.NotNil(t, pack.Projection)
	assert.Len(t, pack.Links, 2)
	require.Len(t, pack.Artifacts, 1)
	assert.Equal(t, art.SHA256Hex, pack.Artifacts[0].SHA256Hex)
	assert.NotEmpty(t, pack.BundleSHA256)

	// Reproducing the seal from the pack's own content must match.
	sealed := pack.BundleSHA256
	require.NoError(t, seal(pack))
	assert.Equal(t, sealed, pack.BundleSHA256)
}

func TestExportProofPack_HashStableAcrossExports(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	art, err := h.svc.Upload(ctx, h.dealID, []byte("signed term sheet"), "application/pdf", h.gp)
	require.NoError(t, err)
	_, err = h.svc.Link(ctx, h.dealID, LinkInput{ActorID: h.gp, ArtifactID: art.ID, Tag: "terms"})
	require.NoError(t, err)

	// Two exports of the same history at different request times must carry
	// the same seal.
	first, err := h.svc.ExportProofPack(requestcontext.WithTime(ctx, time.Now().UTC()), h.dealID, h.gp, nil)
	require.NoError(t, err)
	second, err := h.svc.ExportProofPack(requestcontext.WithTime(ctx, time.Now().Add(time.Hour).UTC()), h.dealID, h.gp, nil)
	require.NoError(t, err)
	assert.Equal(t, first.BundleSHA256, second.BundleSHA256)

	// New history changes the seal.
	amended, err := h.svc.Upload(ctx, h.dealID, []byte("amended term sheet"), "application/pdf", h.gp)
	require.NoError(t, err)
	_, err = h.svc.Link(ctx, h.dealID, LinkInput{ActorID: h.gp, ArtifactID: amended.ID, Tag: "amended"})
	require.NoError(t, err)
	third, err := h.svc.ExportProofPack(ctx, h.dealID, h.gp, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.BundleSHA256, third.BundleSHA256)
}

func TestExportProofPack_AtHistoricalInstant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	art, err := h.svc.Upload(ctx, h.dealID, []byte("closing binder"), "application/pdf", h.gp)
	require.NoError(t, err)
	_, err = h.svc.Link(ctx, h.dealID, LinkInput{ActorID: h.gp, ArtifactID: art.ID, Tag: "binder"})
	require.NoError(t, err)

	// An instant before any ledger activity exports an empty history. Links
	// are row state, not events, so they still travel with the pack.
	before := time.Now().Add(-time.Hour).UTC()
	pack, err := h.svc.ExportProofPack(ctx, h.dealID, h.gp, &before)
	require.NoError(t, err)
	assert.Empty(t, pack.Events)
	assert.Equal(t, 0, pack.Projection.EventsApplied)
	assert.Equal(t, domain.StateDraft, pack.Projection.LifecycleState)
}

func TestExportProofPack_RoleGated(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.ExportProofPack(context.Background(), h.dealID, h.title, nil)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeForbidden))
}
