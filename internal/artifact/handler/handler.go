// Package handler exposes artifact upload, download, linking, and proof-pack
// endpoints.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dealkernel/internal/artifact/models"
	"dealkernel/internal/artifact/service"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
	"dealkernel/pkg/platform/httputil"
	"dealkernel/pkg/requestcontext"
)

// maxUploadBytes caps artifact uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// Service defines the artifact operations the handler needs.
type Service interface {
	Upload(ctx context.Context, dealID id.DealID, content []byte, mimeType string, uploaderID id.ActorID) (*models.Artifact, error)
	Download(ctx context.Context, dealID id.DealID, artifactID id.ArtifactID) (*models.Artifact, error)
	Link(ctx context.Context, dealID id.DealID, input service.LinkInput) (*models.Link, error)
	ExportProofPack(ctx context.Context, dealID id.DealID, actorID id.ActorID, at *time.Time) (*service.ProofPack, error)
}

// Handler wires artifact endpoints to the artifact service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an artifact handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the JSON artifact endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/deals/{dealID}/artifacts/links", h.HandleLink)
	r.Get("/deals/{dealID}/proofpack", h.HandleProofPack)
}

// RegisterRaw mounts the raw-body endpoints; uploads carry arbitrary bytes,
// downloads serve them back.
func (h *Handler) RegisterRaw(r chi.Router) {
	r.Post("/deals/{dealID}/artifacts", h.HandleUpload)
	r.Get("/deals/{dealID}/artifacts/{artifactID}/download", h.HandleDownload)
}

// HandleUpload handles POST /deals/{dealID}/artifacts. The body is the raw
// artifact bytes; the response carries the content hash so clients can
// verify what was stored.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	dealID, err := id.ParseDealID(chi.URLParam(r, "dealID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "dealID is not a valid id"))
		return
	}
	uploaderID, err := actorFrom(ctx, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "artifact body exceeds the upload limit"))
		return
	}

	art, err := h.service.Upload(ctx, dealID, content, r.Header.Get("Content-Type"), uploaderID)
	if err != nil {
		h.logger.ErrorContext(ctx, "artifact upload failed",
			"request_id", requestID,
			"deal_id", dealID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "artifact stored",
		"request_id", requestID,
		"artifact_id", art.ID,
		"sha256", art.SHA256Hex,
		"size", art.Size,
	)
	httputil.WriteJSON(w, http.StatusCreated, art)
}

// HandleDownload handles GET /deals/{dealID}/artifacts/{artifactID}/download.
// The stored hash is re-verified before a single byte is served.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dealID, err := id.ParseDealID(chi.URLParam(r, "dealID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "dealID is not a valid id"))
		return
	}
	artifactID, err := id.ParseArtifactID(chi.URLParam(r, "artifactID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "artifactID is not a valid id"))
		return
	}

	art, err := h.service.Download(ctx, dealID, artifactID)
	if err != nil {
		h.logger.ErrorContext(ctx, "artifact download failed",
			"request_id", requestcontext.RequestID(ctx),
			"artifact_id", artifactID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", art.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(art.Size, 10))
	w.Header().Set("X-Checksum-Sha256", art.SHA256Hex)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Content)
}

// HandleLink handles POST /deals/{dealID}/artifacts/links.
func (h *Handler) HandleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	dealID, err := id.ParseDealID(chi.URLParam(r, "dealID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "dealID is not a valid id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[LinkArtifactRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	link, err := h.service.Link(ctx, dealID, req.Input())
	if err != nil {
		h.logger.ErrorContext(ctx, "artifact link failed",
			"request_id", requestID,
			"deal_id", dealID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, link)
}

// HandleProofPack handles GET /deals/{dealID}/proofpack?at=. A historical
// instant exports the bundle as the deal stood then.
func (h *Handler) HandleProofPack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	dealID, err := id.ParseDealID(chi.URLParam(r, "dealID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "dealID is not a valid id"))
		return
	}
	actorID, err := actorFrom(ctx, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var at *time.Time
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "at must be an RFC 3339 timestamp"))
			return
		}
		at = &parsed
	}

	pack, err := h.service.ExportProofPack(ctx, dealID, actorID, at)
	if err != nil {
		h.logger.ErrorContext(ctx, "proof pack export failed",
			"request_id", requestID,
			"deal_id", dealID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "proof pack exported",
		"request_id", requestID,
		"deal_id", dealID,
		"events", len(pack.Events),
		"artifacts", len(pack.Artifacts),
		"bundle_sha256", pack.BundleSHA256,
	)
	httputil.WriteJSON(w, http.StatusOK, pack)
}

// actorFrom resolves the acting actor: the authenticated context wins, the
// X-Actor-Id header serves unauthenticated wiring.
func actorFrom(ctx context.Context, r *http.Request) (id.ActorID, error) {
	if actorID := requestcontext.ActorID(ctx); !actorID.IsZero() {
		return actorID, nil
	}
	raw := strings.TrimSpace(r.Header.Get("X-Actor-Id"))
	if raw == "" {
		return id.ActorID{}, dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonMissingActor,
			"actor identity is required (X-Actor-Id header or bearer token)")
	}
	actorID, err := id.ParseActorID(raw)
	if err != nil {
		return id.ActorID{}, dErrors.NewWithReason(dErrors.CodeBadRequest, dErrors.ReasonMissingActor,
			"X-Actor-Id is not a valid id")
	}
	return actorID, nil
}
