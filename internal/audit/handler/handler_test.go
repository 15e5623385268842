package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dealkernel/internal/audit"
	id "dealkernel/pkg/domain"
)

func newAuditRouter(t *testing.T) (http.Handler, *audit.Publisher) {
	t.Helper()
	publisher := audit.NewPublisher(audit.NewMemoryStore())
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(publisher, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r, publisher
}

func TestListAuditTrail(t *testing.T) {
	router, publisher := newAuditRouter(t)
	dealID := id.NewDealID()

	entries := []audit.Entry{
		{ID: id.NewEventID(), Timestamp: time.Now().UTC(), DealID: dealID, Action: "OPEN_REVIEW", Decision: audit.DecisionAllowed},
		{ID: id.NewEventID(), Timestamp: time.Now().UTC(), DealID: dealID, Action: "REQUEST_FUNDING", Decision: audit.DecisionOverridden, Override: true, Reason: "approved offline"},
	}
	for _, e := range entries {
		if err := publisher.Emit(context.Background(), e); err != nil {
			t.Fatalf("failed to emit entry: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/deals/"+dealID.String()+"/audit", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Entries []audit.Entry `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode audit trail: %v", err)
	}
	if len(body.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(body.Entries))
	}
	if body.Entries[1].Decision != audit.DecisionOverridden || !body.Entries[1].Override {
		t.Fatalf("expected the override to be visible in the trail, got %+v", body.Entries[1])
	}
}

func TestListAuditTrailEmptyDealIsAnEmptyList(t *testing.T) {
	router, _ := newAuditRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/deals/"+uuid.New().String()+"/audit", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for an empty trail, got %d", rec.Code)
	}

	var body struct {
		Entries []audit.Entry `json:"entries"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode audit trail: %v", err)
	}
	if body.Entries == nil || len(body.Entries) != 0 {
		t.Fatalf("expected an empty list, not null")
	}
}
