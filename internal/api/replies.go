package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/outreach/internal/pkg/httputil"
	"github.com/ignite/outreach/internal/repository/postgres"
)

// ListPendingReplies returns classified replies waiting for a human.
func (h *Handlers) ListPendingReplies(w http.ResponseWriter, r *http.Request) {
	pending, err := h.replies.ListPending(r.Context(), queryInt(r, "limit", defaultBatchLimit))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"replies": pending, "count": len(pending)})
}

// ApproveReply sends the prepared draft on the original thread.
func (h *Handlers) ApproveReply(w http.ResponseWriter, r *http.Request) {
	if h.triage == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "no mailbox configured")
		return
	}
	err := h.triage.Approve(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, postgres.ErrReplyNotFound):
		httputil.NotFound(w, "reply not found")
	case err != nil:
		// No draft yet, or the lead left the pipeline.
		httputil.Error(w, http.StatusConflict, err.Error())
	default:
		httputil.OK(w, map[string]string{"status": "sent"})
	}
}

// RegenerateReply rebuilds a reply draft, folding in operator feedback.
func (h *Handlers) RegenerateReply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Feedback string `json:"feedback"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	if h.triage == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "no mailbox configured")
		return
	}
	err := h.triage.Regenerate(r.Context(), chi.URLParam(r, "id"), req.Feedback)
	switch {
	case errors.Is(err, postgres.ErrReplyNotFound):
		httputil.NotFound(w, "reply not found")
	case err != nil:
		httputil.Error(w, http.StatusConflict, err.Error())
	default:
		httputil.OK(w, map[string]string{"status": "regenerated"})
	}
}
