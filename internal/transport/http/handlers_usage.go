package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"remedia/internal/usage"
	dErrors "remedia/pkg/domain-errors"
	"remedia/pkg/platform/httputil"
	"remedia/pkg/requestcontext"
)

// UsageHandler exposes the usage ledger: monthly summaries, limit checks,
// date-range stats and broker attribution.
type UsageHandler struct {
	ledger *usage.Ledger
	logger *slog.Logger
}

func NewUsageHandler(ledger *usage.Ledger, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{ledger: ledger, logger: logger}
}

// Register mounts the usage endpoints on the admin router.
func (h *UsageHandler) Register(r chi.Router) {
	r.Get("/usage/{provider}/summary", h.HandleSummary)
	r.Get("/usage/{provider}/range", h.HandleRange)
	r.Get("/usage/{provider}/calls", h.HandleCalls)
	r.Post("/usage/check-limit", h.HandleCheckLimit)
}

// HandleSummary handles GET /usage/{provider}/summary?month=YYYY-MM.
func (h *UsageHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.MonthlySummary(r.Context(),
		chi.URLParam(r, "provider"), r.URL.Query().Get("month"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// HandleRange handles GET /usage/{provider}/range?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *UsageHandler) HandleRange(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "from must be YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "to must be YYYY-MM-DD"))
		return
	}

	summary, err := h.ledger.RangeStats(r.Context(), chi.URLParam(r, "provider"), from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// HandleCalls handles GET /usage/{provider}/calls?limit=N with broker
// attribution resolved on every log line.
func (h *UsageHandler) HandleCalls(w http.ResponseWriter, r *http.Request) {
	logs, err := h.ledger.LookupAttribution(r.Context(), chi.URLParam(r, "provider"), queryInt(r, "limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"calls": logs,
		"count": len(logs),
	})
}

// HandleCheckLimit handles POST /usage/check-limit.
func (h *UsageHandler) HandleCheckLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CheckLimitRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	alert, err := h.ledger.CheckLimit(ctx, req.Provider, req.Limit, req.ThresholdPct)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}
