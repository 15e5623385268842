package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authoritystore "dealkernel/internal/authority/store"
	"dealkernel/internal/deal/service"
	dealstore "dealkernel/internal/deal/store"
)

func newDealRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := service.New(dealstore.NewMemory(), authoritystore.NewMemory(), nil)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetDealViaHandlers(t *testing.T) {
	router := newDealRouter(t)

	rec := postJSON(t, router, "/deals", map[string]string{"name": "Harborview Industrial"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating deal, got %d: %s", rec.Code, rec.Body.String())
	}

	var deal struct {
		ID    uuid.UUID `json:"id"`
		Name  string    `json:"name"`
		State string    `json:"state"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&deal); err != nil {
		t.Fatalf("failed to decode deal response: %v", err)
	}
	if deal.ID == uuid.Nil {
		t.Fatalf("expected deal id in response")
	}
	if deal.State != "Draft" {
		t.Fatalf("expected new deal in Draft, got %q", deal.State)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/deals/"+deal.ID.String(), nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching deal, got %d", getRec.Code)
	}
}

func TestCreateDealRejectsEmptyName(t *testing.T) {
	router := newDealRouter(t)

	rec := postJSON(t, router, "/deals", map[string]string{"name": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", rec.Code)
	}
}

func TestGetUnknownDealIs404(t *testing.T) {
	router := newDealRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/deals/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown deal, got %d", rec.Code)
	}

	badReq := httptest.NewRequest(http.MethodGet, "/deals/not-a-uuid", nil)
	badRec := httptest.NewRecorder()
	router.ServeHTTP(badRec, badReq)
	if badRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed deal id, got %d", badRec.Code)
	}
}

func TestRegisterActorViaHandlers(t *testing.T) {
	router := newDealRouter(t)

	rec := postJSON(t, router, "/deals", map[string]string{"name": "Harborview Industrial"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating deal, got %d", rec.Code)
	}
	var deal struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&deal); err != nil {
		t.Fatalf("failed to decode deal response: %v", err)
	}

	actorRec := postJSON(t, router, "/deals/"+deal.ID.String()+"/actors", map[string]any{
		"displayName": "Dana Ortiz",
		"roles":       []string{"gp", "analyst"},
	})
	if actorRec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering actor, got %d: %s", actorRec.Code, actorRec.Body.String())
	}

	var actor struct {
		ID    uuid.UUID `json:"id"`
		Type  string    `json:"type"`
		Roles []string  `json:"roles"`
	}
	if err := json.NewDecoder(actorRec.Body).Decode(&actor); err != nil {
		t.Fatalf("failed to decode actor response: %v", err)
	}
	if actor.Type != "human" {
		t.Fatalf("expected actor type to default to human, got %q", actor.Type)
	}
	if len(actor.Roles) != 2 || actor.Roles[0] != "GP" {
		t.Fatalf("expected roles normalized to uppercase, got %v", actor.Roles)
	}

	badRec := postJSON(t, router, "/deals/"+deal.ID.String()+"/actors", map[string]any{
		"displayName": "Bad Role",
		"roles":       []string{"JANITOR"},
	})
	if badRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", badRec.Code)
	}
	var errBody struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(badRec.Body).Decode(&errBody); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if errBody.Reason != "INVALID_ROLE" {
		t.Fatalf("expected reason INVALID_ROLE, got %q", errBody.Reason)
	}
}
