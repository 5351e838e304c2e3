// Package http assembles the API router from the per-domain handlers.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"securevms/internal/platform/metrics"
	"securevms/internal/platform/middleware"
)

// Registrar is one domain handler attaching its routes.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter builds the full API surface. Every /api route runs the shared
// middleware chain; /healthz and /metrics bypass it.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, timeout func(http.Handler) http.Handler, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Recovery(logger))
		api.Use(middleware.RequestID)
		api.Use(middleware.RequestTime)
		api.Use(middleware.ClientMetadata)
		api.Use(middleware.Logger(logger))
		api.Use(middleware.ContentTypeJSON)
		if timeout != nil {
			api.Use(timeout)
		}
		if m != nil {
			api.Use(middleware.Latency(m))
		}
		for _, h := range handlers {
			h.Register(api)
		}
	})

	return r
}
