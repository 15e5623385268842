package testutil

import (
	"net/http"
	"time"

	id "dealkernel/pkg/domain"
	"dealkernel/pkg/requestcontext"
)

// WithActor stamps an actor identity on the request context, simulating what
// the auth middleware does for authenticated requests.
func WithActor(req *http.Request, actorID id.ActorID) *http.Request {
	return req.WithContext(requestcontext.WithActorID(req.Context(), actorID))
}

// WithRequestTime pins the request-scoped clock, which every timestamp in
// the write path derives from.
func WithRequestTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}
