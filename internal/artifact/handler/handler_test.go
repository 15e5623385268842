package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dealkernel/internal/artifact/service"
	artifactstore "dealkernel/internal/artifact/store"
	authoritystore "dealkernel/internal/authority/store"
	dealmodels "dealkernel/internal/deal/models"
	dealservice "dealkernel/internal/deal/service"
	dealstore "dealkernel/internal/deal/store"
	"dealkernel/internal/domain"
	eventservice "dealkernel/internal/event/service"
	eventstore "dealkernel/internal/event/store"
	"dealkernel/internal/projection"
	id "dealkernel/pkg/domain"
)

type fixture struct {
	router http.Handler
	dealID id.DealID
	gp     id.ActorID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	dealStore := dealstore.NewMemory()
	ruleStore := authoritystore.NewMemory()
	dealSvc := dealservice.New(dealStore, ruleStore, nil)
	eventSvc := eventservice.New(eventstore.NewMemory(), dealStore)
	engine := projection.NewEngine(eventSvc, nil)
	svc := service.New(artifactstore.NewMemory(), dealSvc, dealStore, ruleStore, eventSvc, engine)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterRaw(r)

	deal, err := dealSvc.Create(ctx, "Harbor Point Refinance")
	if err != nil {
		t.Fatalf("failed to create deal: %v", err)
	}
	gp, err := dealSvc.RegisterActor(ctx, deal.ID, dealservice.RegisterActorInput{
		Type: dealmodels.ActorHuman, DisplayName: "gp", Roles: []domain.Role{domain.RoleGP},
	})
	if err != nil {
		t.Fatalf("failed to register actor: %v", err)
	}

	return &fixture{router: r, dealID: deal.ID, gp: gp.ID}
}

func (f *fixture) upload(t *testing.T, content []byte, mimeType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/deals/"+f.dealID.String()+"/artifacts", bytes.NewReader(content))
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}
	req.Header.Set("X-Actor-Id", f.gp.String())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestUploadReturnsContentHash(t *testing.T) {
	f := newFixture(t)
	content := []byte("signed wire confirmation, page 1")

	rec := f.upload(t, content, "application/pdf")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var art struct {
		ID       uuid.UUID `json:"id"`
		SHA256   string    `json:"sha256"`
		Size     int64     `json:"size"`
		MimeType string    `json:"mimeType"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&art); err != nil {
		t.Fatalf("failed to decode artifact: %v", err)
	}
	if art.ID == uuid.Nil {
		t.Fatalf("expected artifact id")
	}
	if len(art.SHA256) != 64 {
		t.Fatalf("expected a sha256 hex digest, got %q", art.SHA256)
	}
	if art.Size != int64(len(content)) {
		t.Fatalf("expected size %d, got %d", len(content), art.Size)
	}
	if art.MimeType != "application/pdf" {
		t.Fatalf("expected mime type to come from Content-Type, got %q", art.MimeType)
	}

	// Same bytes, same artifact.
	again := f.upload(t, content, "application/pdf")
	if again.Code != http.StatusCreated {
		t.Fatalf("expected 201 on re-upload, got %d", again.Code)
	}
	var dup struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(again.Body).Decode(&dup); err != nil {
		t.Fatalf("failed to decode artifact: %v", err)
	}
	if dup.ID != art.ID {
		t.Fatalf("expected identical content to dedupe to one artifact")
	}
}

func TestUploadRequiresActorIdentity(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/deals/"+f.dealID.String()+"/artifacts", bytes.NewReader([]byte("x")))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without actor identity, got %d", rec.Code)
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Reason != "MISSING_ACTOR" {
		t.Fatalf("expected MISSING_ACTOR, got %q", body.Reason)
	}
}

func TestDownloadServesBytesWithChecksumHeader(t *testing.T) {
	f := newFixture(t)
	content := []byte("executed term sheet")

	rec := f.upload(t, content, "text/plain")
	var art struct {
		ID     uuid.UUID `json:"id"`
		SHA256 string    `json:"sha256"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&art); err != nil {
		t.Fatalf("failed to decode artifact: %v", err)
	}

	dlReq := httptest.NewRequest(http.MethodGet, "/deals/"+f.dealID.String()+"/artifacts/"+art.ID.String()+"/download", nil)
	dlRec := httptest.NewRecorder()
	f.router.ServeHTTP(dlRec, dlReq)
	if dlRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", dlRec.Code)
	}
	if !bytes.Equal(dlRec.Body.Bytes(), content) {
		t.Fatalf("downloaded bytes differ from uploaded bytes")
	}
	if got := dlRec.Header().Get("X-Checksum-Sha256"); got != art.SHA256 {
		t.Fatalf("expected checksum header %q, got %q", art.SHA256, got)
	}
	if got := dlRec.Header().Get("Content-Type"); got != "text/plain" {
		t.Fatalf("expected stored mime type, got %q", got)
	}
}

func TestDownloadUnknownArtifactIs404(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/deals/"+f.dealID.String()+"/artifacts/"+uuid.New().String()+"/download", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLinkAndProofPackViaHandlers(t *testing.T) {
	f := newFixture(t)

	up := f.upload(t, []byte("entity formation certificate"), "application/pdf")
	var art struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(up.Body).Decode(&art); err != nil {
		t.Fatalf("failed to decode artifact: %v", err)
	}

	linkBody, _ := json.Marshal(map[string]any{
		"artifactId": art.ID.String(),
		"actorId":    f.gp.String(),
		"tag":        "formation-docs",
	})
	linkReq := httptest.NewRequest(http.MethodPost, "/deals/"+f.dealID.String()+"/artifacts/links", bytes.NewReader(linkBody))
	linkReq.Header.Set("Content-Type", "application/json")
	linkRec := httptest.NewRecorder()
	f.router.ServeHTTP(linkRec, linkReq)
	if linkRec.Code != http.StatusCreated {
		t.Fatalf("expected 201 linking artifact, got %d: %s", linkRec.Code, linkRec.Body.String())
	}

	packReq := httptest.NewRequest(http.MethodGet, "/deals/"+f.dealID.String()+"/proofpack", nil)
	packReq.Header.Set("X-Actor-Id", f.gp.String())
	packRec := httptest.NewRecorder()
	f.router.ServeHTTP(packRec, packReq)
	if packRec.Code != http.StatusOK {
		t.Fatalf("expected 200 exporting proof pack, got %d: %s", packRec.Code, packRec.Body.String())
	}

	var pack struct {
		BundleSHA256 string `json:"bundleSha256"`
		Artifacts    []any  `json:"artifacts"`
		Links        []any  `json:"links"`
	}
	if err := json.NewDecoder(packRec.Body).Decode(&pack); err != nil {
		t.Fatalf("failed to decode proof pack: %v", err)
	}
	if len(pack.BundleSHA256) != 64 {
		t.Fatalf("expected sealed bundle hash, got %q", pack.BundleSHA256)
	}
	if len(pack.Links) != 1 || len(pack.Artifacts) != 1 {
		t.Fatalf("expected one link and one artifact in the pack, got %d/%d", len(pack.Links), len(pack.Artifacts))
	}
}
