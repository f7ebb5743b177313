package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"remedia/internal/provider"
	"remedia/pkg/platform/httputil"
)

// RateLimitHandler exposes the shared outbound limiter for operators.
type RateLimitHandler struct {
	limiter *provider.RateLimiter
	logger  *slog.Logger
}

func NewRateLimitHandler(limiter *provider.RateLimiter, logger *slog.Logger) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter, logger: logger}
}

func (h *RateLimitHandler) Register(r chi.Router) {
	r.Get("/ratelimit/status", h.HandleStatus)
	r.Post("/ratelimit/reset", h.HandleReset)
}

// HandleStatus handles GET /ratelimit/status.
func (h *RateLimitHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.limiter.Status())
}

// HandleReset handles POST /ratelimit/reset. Refills the bucket so a stuck
// queue can drain without waiting out the window.
func (h *RateLimitHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.limiter.Reset()
	h.logger.InfoContext(r.Context(), "rate limiter reset")
	httputil.WriteJSON(w, http.StatusOK, h.limiter.Status())
}
