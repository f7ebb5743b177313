// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services and encode; business rules stay out of this package.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"remedia/internal/audit"
	"remedia/internal/identity"
	"remedia/internal/provider"
	"remedia/internal/usage"
	"remedia/internal/verify"
	"remedia/pkg/platform/httputil"
)

// Deps carries everything the router mounts. AdminToken guards every
// endpoint except health, metrics and link redemption.
type Deps struct {
	Entries    *identity.Service
	Verify     *verify.Service
	Runner     *verify.Runner
	Audit      *audit.Service
	Usage      *usage.Ledger
	Limiter    *provider.RateLimiter
	Auditor    *audit.Publisher
	Logger     *slog.Logger
	AdminToken string
}

// NewRouter wires all endpoints.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(ClientMetadata)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	verifyHandler := NewVerifyHandler(deps.Verify, deps.Runner, deps.Logger)
	verifyHandler.RegisterPublic(r)

	r.Group(func(r chi.Router) {
		r.Use(RequireAdminToken(deps.AdminToken, deps.Logger, deps.Auditor))
		NewEntryHandler(deps.Entries, deps.Verify, deps.Logger).Register(r)
		verifyHandler.RegisterAdmin(r)
		NewAuditHandler(deps.Audit).Register(r)
		NewUsageHandler(deps.Usage, deps.Logger).Register(r)
		if deps.Limiter != nil {
			NewRateLimitHandler(deps.Limiter, deps.Logger).Register(r)
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
