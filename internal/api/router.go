package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tube-courier/internal/platform/logger"
	"tube-courier/internal/platform/metrics"
)

// NewRouter mounts h's routes with request logging and, when met is set,
// request metrics and the /metrics endpoint.
func NewRouter(h *Handler, log *slog.Logger, met *metrics.Metrics) *chi.Mux {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	if met != nil {
		r.Use(metrics.RequestMiddleware(met))
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			met.Handler(h.RefreshGauges).ServeHTTP(w, r)
		})
	}

	r.Get("/", h.Health)
	r.Get("/healthz", h.Health)
	r.Get("/sessions/{session_id}", h.GetSession)
	r.Post("/telegram/{token}", h.Webhook)
	return r
}
