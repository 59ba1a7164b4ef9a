package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/pkg/httputil"
	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/repository/postgres"
)

// ListDrafts returns drafts awaiting review, optionally for one lead.
func (h *Handlers) ListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.drafts.ListDrafts(r.Context(), r.URL.Query().Get("lead_id"), queryInt(r, "limit", defaultBatchLimit))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"drafts": drafts, "count": len(drafts)})
}

// ApproveDraft clears a draft for sending. At most one approved message per
// lead may be in flight; approving a second variant is refused until the
// first one resolves.
func (h *Handlers) ApproveDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msg, err := h.drafts.Get(r.Context(), id)
	switch {
	case errors.Is(err, postgres.ErrMessageNotFound):
		httputil.NotFound(w, "draft not found")
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}
	if msg.Status != domain.MessageDraft {
		httputil.Error(w, http.StatusConflict, "message is not a draft")
		return
	}

	inFlight, err := h.drafts.HasApprovedForLead(r.Context(), msg.LeadID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if inFlight {
		httputil.Error(w, http.StatusConflict, "lead already has an approved message in flight")
		return
	}

	if err := h.drafts.UpdateStatus(r.Context(), id, domain.MessageDraft, domain.MessageApproved); err != nil {
		if errors.Is(err, postgres.ErrStatusConflict) {
			httputil.Error(w, http.StatusConflict, "draft was already resolved")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	// Follow-up drafts belong to leads already past draft_ready; only the
	// first approval advances the lead.
	if err := h.advanceLead(r, msg.LeadID); err != nil {
		logger.Warn("lead advance after approval failed", "lead_id", msg.LeadID, "error", err)
	}
	httputil.OK(w, map[string]string{"status": string(domain.MessageApproved)})
}

func (h *Handlers) advanceLead(r *http.Request, leadID string) error {
	l, err := h.leads.Get(r.Context(), leadID)
	if err != nil {
		return err
	}
	if l.Status != domain.LeadDraftReady {
		return nil
	}
	return h.leads.Transition(r.Context(), leadID, domain.LeadApproved)
}

// RejectDraft retires a draft. When that was the lead's last open draft the
// lead goes back to "new" so the pipeline can take another run at it.
func (h *Handlers) RejectDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msg, err := h.drafts.Get(r.Context(), id)
	switch {
	case errors.Is(err, postgres.ErrMessageNotFound):
		httputil.NotFound(w, "draft not found")
		return
	case err != nil:
		httputil.InternalError(w, err)
		return
	}

	if err := h.drafts.UpdateStatus(r.Context(), id, domain.MessageDraft, domain.MessageRejected); err != nil {
		if errors.Is(err, postgres.ErrStatusConflict) {
			httputil.Error(w, http.StatusConflict, "message is not a draft")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	if err := h.maybeReturnLead(r, msg.LeadID); err != nil {
		logger.Warn("lead return after rejection failed", "lead_id", msg.LeadID, "error", err)
	}
	httputil.OK(w, map[string]string{"status": string(domain.MessageRejected)})
}

func (h *Handlers) maybeReturnLead(r *http.Request, leadID string) error {
	open, err := h.drafts.ListDrafts(r.Context(), leadID, 1)
	if err != nil {
		return err
	}
	if len(open) > 0 {
		return nil
	}
	l, err := h.leads.Get(r.Context(), leadID)
	if err != nil {
		return err
	}
	if l.Status != domain.LeadDraftReady {
		return nil
	}
	return h.leads.Transition(r.Context(), leadID, domain.LeadNew)
}
