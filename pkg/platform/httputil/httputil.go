// Package httputil centralizes JSON encoding, request decoding, and domain
// error translation for HTTP handlers.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "dealkernel/pkg/domainerrors"
)

// Validatable is implemented by request body types that validate and
// normalize themselves after decode.
type validatable[T any] interface {
	*T
	Validate() error
}

// DecodeAndPrepare decodes a JSON request body into T and runs its Validate.
// On failure it writes the error response and returns ok=false; handlers
// just return.
func DecodeAndPrepare[T any, PT validatable[T]](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (PT, bool) {
	var body T
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		logger.WarnContext(ctx, "request decode failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is not valid JSON"))
		return nil, false
	}
	ptr := PT(&body)
	if err := ptr.Validate(); err != nil {
		WriteError(w, err)
		return nil, false
	}
	return ptr, true
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the uniform error envelope. Reason carries the
// machine-readable constant clients branch on.
type errorBody struct {
	Error       string `json:"error"`
	Reason      string `json:"reason,omitempty"`
	Description string `json:"error_description,omitempty"`
}

// WriteError translates a domain error into its HTTP response. Internal
// error details never leave the process; everything else includes the
// message and, when present, the machine reason.
func WriteError(w http.ResponseWriter, err error) {
	status := dErrors.HTTPStatus(err)
	body := errorBody{Error: codeLabel(err), Reason: dErrors.ReasonOf(err)}
	if status != http.StatusInternalServerError {
		body.Description = err.Error()
	}
	WriteJSON(w, status, body)
}

func codeLabel(err error) string {
	switch {
	case dErrors.Is(err, dErrors.CodeBadRequest):
		return string(dErrors.CodeBadRequest)
	case dErrors.Is(err, dErrors.CodeForbidden):
		return string(dErrors.CodeForbidden)
	case dErrors.Is(err, dErrors.CodeNotFound):
		return string(dErrors.CodeNotFound)
	case dErrors.Is(err, dErrors.CodeConflict):
		return string(dErrors.CodeConflict)
	default:
		return "internal_error"
	}
}
