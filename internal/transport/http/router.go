// Package http assembles the kernel's HTTP surface: middleware chain, module
// handlers, and the operational endpoints.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dealkernel/internal/platform/metrics"
	"dealkernel/internal/platform/middleware"
)

// Registrar is anything that can mount routes, which is every module
// handler.
type Registrar interface {
	Register(r chi.Router)
}

// RawRegistrar marks handlers with routes that carry non-JSON bodies, such
// as artifact uploads. Those mount outside the JSON content-type check.
type RawRegistrar interface {
	RegisterRaw(r chi.Router)
}

// Config carries the router's cross-cutting dependencies.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// TokenValidator guards the API when RequireAuth is set. nil leaves the
	// API open, which is the local-development wiring.
	TokenValidator middleware.TokenValidator
	RequireAuth    bool

	RequestTimeout time.Duration
}

// NewRouter builds the full router: recovery first, then request identity,
// logging, tracing, timeout, and metrics around every module route.
func NewRouter(cfg Config, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Tracing)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Latency(cfg.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		if cfg.RequireAuth && cfg.TokenValidator != nil {
			api.Use(middleware.RequireActor(cfg.TokenValidator, cfg.Logger))
		}
		api.Group(func(jsonAPI chi.Router) {
			jsonAPI.Use(middleware.ContentTypeJSON)
			for _, h := range handlers {
				h.Register(jsonAPI)
			}
		})
		for _, h := range handlers {
			if raw, ok := h.(RawRegistrar); ok {
				raw.RegisterRaw(api)
			}
		}
	})

	return r
}
