// Package handler exposes deal and actor endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dealkernel/internal/deal/models"
	"dealkernel/internal/deal/service"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
	"dealkernel/pkg/platform/httputil"
	"dealkernel/pkg/requestcontext"
)

// Service defines the deal operations the handler needs.
type Service interface {
	Create(ctx context.Context, name string) (*models.Deal, error)
	Get(ctx context.Context, dealID id.DealID) (*models.Deal, error)
	RegisterActor(ctx context.Context, dealID id.DealID, input service.RegisterActorInput) (*models.Actor, error)
}

// Handler wires deal endpoints to the deal service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a deal handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts deal endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/deals", h.HandleCreate)
	r.Get("/deals/{dealID}", h.HandleGet)
	r.Post("/deals/{dealID}/actors", h.HandleRegisterActor)
}

// HandleCreate handles POST /deals.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateDealRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	deal, err := h.service.Create(ctx, req.Name)
	if err != nil {
		h.logger.ErrorContext(ctx, "deal creation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "deal created",
		"request_id", requestID,
		"deal_id", deal.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, deal)
}

// HandleGet handles GET /deals/{dealID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dealID, err := id.ParseDealID(chi.URLParam(r, "dealID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "dealID is not a valid id"))
		return
	}

	deal, err := h.service.Get(ctx, dealID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, deal)
}

// HandleRegisterActor handles POST /deals/{dealID}/actors.
func (h *Handler) HandleRegisterActor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	dealID, err := id.ParseDealID(chi.URLParam(r, "dealID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "dealID is not a valid id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[RegisterActorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	actor, err := h.service.RegisterActor(ctx, dealID, req.Input())
	if err != nil {
		h.logger.ErrorContext(ctx, "actor registration failed",
			"request_id", requestID,
			"deal_id", dealID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "actor registered",
		"request_id", requestID,
		"deal_id", dealID,
		"actor_id", actor.ID,
		"roles", actor.Roles,
	)
	httputil.WriteJSON(w, http.StatusCreated, actor)
}
