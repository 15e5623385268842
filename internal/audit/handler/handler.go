// Package handler exposes the audit trail read endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dealkernel/internal/audit"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
	"dealkernel/pkg/platform/httputil"
)

// Source lists a deal's audit entries.
type Source interface {
	List(ctx context.Context, dealID id.DealID) ([]audit.Entry, error)
}

// Handler wires the audit endpoint to the audit publisher.
type Handler struct {
	source Source
	logger *slog.Logger
}

// New constructs an audit handler.
func New(source Source, logger *slog.Logger) *Handler {
	return &Handler{source: source, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/deals/{dealID}/audit", h.HandleList)
}

// HandleList handles GET /deals/{dealID}/audit.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dealID, err := id.ParseDealID(chi.URLParam(r, "dealID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "dealID is not a valid id"))
		return
	}

	entries, err := h.source.List(ctx, dealID)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit list failed", "deal_id", dealID, "error", err)
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeInternal, "list audit trail", err))
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
