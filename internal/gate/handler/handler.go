// Package handler exposes the event append and explain endpoints.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	eventmodels "dealkernel/internal/event/models"
	"dealkernel/internal/gate"
	id "dealkernel/pkg/domain"
	dErrors "dealkernel/pkg/domainerrors"
	"dealkernel/pkg/platform/httputil"
	"dealkernel/pkg/requestcontext"
)

// Service defines the gate operations the handler needs.
type Service interface {
	Request(ctx context.Context, dealID id.DealID, candidate eventmodels.Candidate) (*eventmodels.Event, error)
	Explain(ctx context.Context, dealID id.DealID, candidate eventmodels.Candidate, at *time.Time) (*gate.Decision, error)
}

// Handler wires the gate endpoints to the gate service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a gate handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts gate endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/deals/{dealID}/events", h.HandleAppend)
	r.Post("/deals/{dealID}/explain", h.HandleExplain)
}

// HandleAppend handles POST /deals/{dealID}/events. A blocked request
// returns the full decision body under the taxonomy's status code, so a
// client never has to call explain to learn why it was stopped.
func (h *Handler) HandleAppend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	dealID, err := id.ParseDealID(chi.URLParam(r, "dealID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "dealID is not a valid id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[AppendEventRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	event, err := h.service.Request(ctx, dealID, req.Candidate())
	if err != nil {
		var blocked *gate.BlockedError
		if errors.As(err, &blocked) {
			h.logger.InfoContext(ctx, "event blocked",
				"request_id", requestID,
				"deal_id", dealID,
				"event_type", req.Type,
				"reasons", len(blocked.Decision.Reasons),
			)
			httputil.WriteJSON(w, dErrors.HTTPStatus(err), blocked.Decision)
			return
		}
		h.logger.ErrorContext(ctx, "event append failed",
			"request_id", requestID,
			"deal_id", dealID,
			"event_type", req.Type,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "event appended",
		"request_id", requestID,
		"deal_id", dealID,
		"event_id", event.ID,
		"event_type", event.Type,
		"seq", event.Seq,
		"override", event.OverrideUsed,
	)
	httputil.WriteJSON(w, http.StatusCreated, event)
}

// HandleExplain handles POST /deals/{dealID}/explain. The optional "at"
// query parameter (RFC 3339) evaluates against historical state; a blocked
// outcome is a successful explanation and returns 200.
func (h *Handler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	dealID, err := id.ParseDealID(chi.URLParam(r, "dealID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "dealID is not a valid id"))
		return
	}

	at, err := parseAt(r.URL.Query().Get("at"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[AppendEventRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	decision, err := h.service.Explain(ctx, dealID, req.Candidate(), at)
	if err != nil {
		h.logger.ErrorContext(ctx, "explain failed",
			"request_id", requestID,
			"deal_id", dealID,
			"event_type", req.Type,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decision)
}

// parseAt parses the optional at query parameter.
func parseAt(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "at must be an RFC 3339 timestamp")
	}
	return &at, nil
}
