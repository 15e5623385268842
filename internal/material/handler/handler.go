// Package handler exposes material recording and status endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dealkernel/internal/domain"
	"dealkernel/internal/material/models"
	"dealkernel/internal/material/service"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
	"dealkernel/pkg/platform/httputil"
	"dealkernel/pkg/requestcontext"
)

// Service defines the material operations the handler needs.
type Service interface {
	Record(ctx context.Context, dealID id.DealID, input service.RecordInput) (*models.MaterialObject, error)
	StatusAsOf(ctx context.Context, dealID id.DealID, action domain.ActionType, instant time.Time) (map[string]models.Status, error)
}

// Handler wires material endpoints to the material service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a material handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts material endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/deals/{dealID}/materials", h.HandleRecord)
	r.Get("/deals/{dealID}/materials/status", h.HandleStatus)
}

// HandleRecord handles POST /deals/{dealID}/materials. Recording runs
// through the gate, so a blocked decision surfaces exactly as it would for
// any other event.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	dealID, err := id.ParseDealID(chi.URLParam(r, "dealID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "dealID is not a valid id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[RecordMaterialRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	mat, err := h.service.Record(ctx, dealID, req.Input())
	if err != nil {
		h.logger.ErrorContext(ctx, "material record failed",
			"request_id", requestID,
			"deal_id", dealID,
			"material_type", req.Type,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "material recorded",
		"request_id", requestID,
		"deal_id", dealID,
		"material_id", mat.ID,
		"material_type", mat.Type,
		"truth_class", mat.TruthClass,
	)
	httputil.WriteJSON(w, http.StatusCreated, mat)
}

// HandleStatus handles GET /deals/{dealID}/materials/status?action=&at=.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dealID, err := id.ParseDealID(chi.URLParam(r, "dealID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "dealID is not a valid id"))
		return
	}

	action := domain.ActionType(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("action"))))
	if !domain.ValidAction(action) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "action is not a known action"))
		return
	}

	instant := requestcontext.Now(ctx).UTC()
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "at must be an RFC 3339 timestamp"))
			return
		}
		instant = at.UTC()
	}

	status, err := h.service.StatusAsOf(ctx, dealID, action, instant)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"action": action,
		"at":     instant,
		"status": status,
	})
}
