package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"remedia/internal/audit"
	"remedia/internal/identity"
	"remedia/internal/verify"
	"remedia/pkg/platform/httputil"
	pstrings "remedia/pkg/platform/strings"
	"remedia/pkg/requestcontext"
)

// EntryHandler wires entry intake, reads and lifecycle actions.
type EntryHandler struct {
	entries *identity.Service
	verify  *verify.Service
	logger  *slog.Logger
}

func NewEntryHandler(entries *identity.Service, verify *verify.Service, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{entries: entries, verify: verify, logger: logger}
}

// Register mounts the admin entry endpoints.
func (h *EntryHandler) Register(r chi.Router) {
	r.Post("/entries", h.HandleCreate)
	r.Get("/entries", h.HandleList)
	r.Get("/entries/{id}", h.HandleGet)
	r.Post("/entries/{id}/verify", h.HandleVerify)
	r.Post("/entries/{id}/send-link", h.HandleSendLink)
	r.Post("/entries/{id}/resend", h.HandleResend)
	r.Post("/entries/{id}/approve", h.HandleApprove)
	r.Post("/entries/{id}/reject", h.HandleReject)
}

// HandleCreate handles POST /entries.
func (h *EntryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateEntryRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entry, err := h.entries.Create(ctx, req.input())
	if err != nil {
		h.logger.WarnContext(ctx, "entry creation failed",
			"request_id", requestID, "kind", req.Kind, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, fromEntry(entry))
}

// HandleGet handles GET /entries/{id}.
func (h *EntryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	entry, err := h.entries.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromEntry(entry))
}

// HandleList handles GET /entries with an optional repeated status filter.
func (h *EntryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var statuses []identity.Status
	for _, s := range pstrings.DedupeAndTrimLower(r.URL.Query()["status"]) {
		statuses = append(statuses, identity.Status(s))
	}

	entries, err := h.entries.ListByStatus(r.Context(), statuses...)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"entries": fromEntries(entries),
		"count":   len(entries),
	})
}

// HandleVerify handles POST /entries/{id}/verify.
func (h *EntryHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	entryID := chi.URLParam(r, "id")

	entry, err := h.verify.VerifyEntry(ctx, entryID, adminActor(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "entry verified",
		"request_id", requestcontext.RequestID(ctx),
		"entry_id", entryID,
		"status", entry.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, fromEntry(entry))
}

// HandleSendLink handles POST /entries/{id}/send-link.
func (h *EntryHandler) HandleSendLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entry, link, err := h.verify.SendLink(ctx, chi.URLParam(r, "id"), adminActor(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, IssuedLinkResponse{
		Entry:     fromEntry(entry),
		Token:     link.Token,
		Secret:    link.Secret,
		ExpiresAt: link.ExpiresAt,
	})
}

// HandleResend handles POST /entries/{id}/resend.
func (h *EntryHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entry, link, err := h.verify.Resend(ctx, chi.URLParam(r, "id"), adminActor(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, IssuedLinkResponse{
		Entry:     fromEntry(entry),
		Token:     link.Token,
		Secret:    link.Secret,
		ExpiresAt: link.ExpiresAt,
	})
}

// HandleApprove handles POST /entries/{id}/approve.
func (h *EntryHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entry, err := h.verify.Approve(ctx, chi.URLParam(r, "id"), adminActor(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromEntry(entry))
}

// HandleReject handles POST /entries/{id}/reject.
func (h *EntryHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entry, err := h.verify.Reject(ctx, chi.URLParam(r, "id"), adminActor(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromEntry(entry))
}

func adminActor(ctx context.Context) audit.Actor {
	return audit.Actor{
		ID:   requestcontext.ClientIP(ctx),
		Name: "admin",
		Type: "admin",
	}
}
