package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"dealkernel/pkg/requestcontext"

	id "dealkernel/pkg/domain"
)

// TokenValidator validates a bearer token and returns the actor it names.
type TokenValidator interface {
	ValidateToken(tokenString string) (id.ActorID, error)
}

// RequireActor rejects requests without a valid actor bearer token and
// injects the actor ID into the request context for downstream handlers.
func RequireActor(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				unauthorized(w)
				return
			}
			actorID, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized - invalid actor token",
					"request_id", GetRequestID(r.Context()),
					"error", err,
				)
				unauthorized(w)
				return
			}
			ctx := requestcontext.WithActorID(r.Context(), actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"missing or invalid actor token"}`))
}
