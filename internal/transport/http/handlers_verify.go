package httptransport

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"remedia/internal/verify"
	dErrors "remedia/pkg/domain-errors"
	"remedia/pkg/platform/httputil"
	"remedia/pkg/platform/sentinel"
	"remedia/pkg/requestcontext"
)

// VerifyHandler wires the bulk run resource and the public link redemption.
type VerifyHandler struct {
	verify *verify.Service
	runner *verify.Runner
	logger *slog.Logger
}

func NewVerifyHandler(verify *verify.Service, runner *verify.Runner, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{verify: verify, runner: runner, logger: logger}
}

// RegisterAdmin mounts the bulk run resource on the admin router.
func (h *VerifyHandler) RegisterAdmin(r chi.Router) {
	r.Post("/verify/bulk-runs", h.HandleStartBulkRun)
	r.Get("/verify/bulk-runs/{id}", h.HandleGetBulkRun)
	r.Post("/verify/bulk-runs/{id}/cancel", h.HandleCancelBulkRun)
}

// RegisterPublic mounts link redemption on the public router.
func (h *VerifyHandler) RegisterPublic(r chi.Router) {
	r.Post("/verify/link", h.HandleRedeemLink)
}

// HandleStartBulkRun handles POST /verify/bulk-runs. The run executes in the
// background; the response carries the id to poll.
func (h *VerifyHandler) HandleStartBulkRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BulkRunRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	run := h.runner.Start(verify.BulkOptions{Limit: req.Limit})
	h.logger.InfoContext(ctx, "bulk run started",
		"request_id", requestID, "run_id", run.ID, "limit", req.Limit)
	httputil.WriteJSON(w, http.StatusAccepted, run)
}

// HandleGetBulkRun handles GET /verify/bulk-runs/{id}.
func (h *VerifyHandler) HandleGetBulkRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.Get(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}

// HandleCancelBulkRun handles POST /verify/bulk-runs/{id}/cancel. The run
// stops at the next batch boundary; the snapshot may still say running.
func (h *VerifyHandler) HandleCancelBulkRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "bulk run cancellation requested", "run_id", run.ID)
	httputil.WriteJSON(w, http.StatusOK, run)
}

// HandleRedeemLink handles POST /verify/link. This is the one public
// endpoint: customers land here from their emailed link.
func (h *VerifyHandler) HandleRedeemLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RedeemLinkRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entry, err := h.verify.RedeemLink(ctx, req.Token, req.Secret)
	if err != nil {
		h.logger.WarnContext(ctx, "link redemption failed",
			"request_id", requestID, "error", err)
		httputil.WriteError(w, redeemError(err))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, fromEntry(entry))
}

// redeemError maps link lifecycle sentinels onto coded errors the envelope
// can render.
func redeemError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.New(dErrors.CodeUnauthorized, "verification link has expired")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "verification link has already been used")
	}
	return err
}
