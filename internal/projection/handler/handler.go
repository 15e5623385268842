// Package handler exposes the point-in-time snapshot endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	dealmodels "dealkernel/internal/deal/models"
	"dealkernel/internal/projection"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
	"dealkernel/pkg/platform/httputil"
	"dealkernel/pkg/requestcontext"
)

// Projector replays the event log into state-at-T.
type Projector interface {
	ProjectAt(ctx context.Context, dealID id.DealID, at time.Time) (*projection.Projection, error)
	ProjectNow(ctx context.Context, dealID id.DealID, now time.Time) (*projection.Projection, error)
}

// Deals resolves deal existence so unknown deals answer 404, not an empty
// projection.
type Deals interface {
	Get(ctx context.Context, dealID id.DealID) (*dealmodels.Deal, error)
}

// Handler wires the snapshot endpoint to the projection engine.
type Handler struct {
	projector Projector
	deals     Deals
	logger    *slog.Logger
}

// New constructs a projection handler.
func New(projector Projector, deals Deals, logger *slog.Logger) *Handler {
	return &Handler{projector: projector, deals: deals, logger: logger}
}

// Register mounts projection endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/deals/{dealID}/snapshot", h.HandleSnapshot)
}

// HandleSnapshot handles GET /deals/{dealID}/snapshot?at=. Without "at" the
// snapshot reflects the log as of now; with it, the historical prefix is
// replayed in full.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dealID, err := id.ParseDealID(chi.URLParam(r, "dealID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "dealID is not a valid id"))
		return
	}
	if _, err := h.deals.Get(ctx, dealID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var proj *projection.Projection
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "at must be an RFC 3339 timestamp"))
			return
		}
		proj, err = h.projector.ProjectAt(ctx, dealID, at.UTC())
		if err != nil {
			h.logger.ErrorContext(ctx, "historical projection failed",
				"request_id", requestcontext.RequestID(ctx),
				"deal_id", dealID,
				"at", at,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
	} else {
		proj, err = h.projector.ProjectNow(ctx, dealID, requestcontext.Now(ctx).UTC())
		if err != nil {
			h.logger.ErrorContext(ctx, "projection failed",
				"request_id", requestcontext.RequestID(ctx),
				"deal_id", dealID,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
	}

	httputil.WriteJSON(w, http.StatusOK, proj)
}
