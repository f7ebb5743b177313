package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"remedia/internal/audit"
	"remedia/pkg/platform/httputil"
)

// AuditHandler exposes the audit trail query surface, read only.
type AuditHandler struct {
	audit *audit.Service
}

func NewAuditHandler(service *audit.Service) *AuditHandler {
	return &AuditHandler{audit: service}
}

// Register mounts the audit endpoints on the admin router.
func (h *AuditHandler) Register(r chi.Router) {
	r.Get("/audit/events", h.HandleRecent)
	r.Get("/audit/events/{type}", h.HandleByType)
	r.Get("/audit/stats", h.HandleStats)
}

// HandleRecent handles GET /audit/events?limit=N.
func (h *AuditHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.Recent(r.Context(), queryInt(r, "limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": entries,
		"count":  len(entries),
	})
}

// HandleByType handles GET /audit/events/{type}.
func (h *AuditHandler) HandleByType(w http.ResponseWriter, r *http.Request) {
	eventType := audit.EventType(chi.URLParam(r, "type"))
	entries, err := h.audit.ByType(r.Context(), eventType, queryInt(r, "limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": entries,
		"count":  len(entries),
	})
}

// HandleStats handles GET /audit/stats.
func (h *AuditHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.audit.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}
