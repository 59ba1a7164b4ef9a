package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/outreach/internal/domain"
	"github.com/ignite/outreach/internal/pkg/httputil"
	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/service/lead"
)

// CreateManualLead inserts an operator-submitted lead and runs it through
// qualification and drafting in the same request. The lead is kept even when
// the downstream steps fail; they are retried by the next worker pass.
func (h *Handlers) CreateManualLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		lead.CreateInput
		Source string `json:"source"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	// Operator form and browser extension share this endpoint; the tag is
	// resolved here, never inferred downstream.
	switch req.Source {
	case "", "form":
		req.DiscoveryMethod = "manual"
	case "extension":
		req.DiscoveryMethod = "extension"
	default:
		httputil.BadRequest(w, "source must be form or extension")
		return
	}
	input := req.CreateInput

	l, err := h.leads.Create(r.Context(), input)
	switch {
	case errors.Is(err, lead.ErrDuplicateEmail):
		httputil.Error(w, http.StatusConflict, "lead email already exists")
		return
	case err != nil:
		httputil.BadRequest(w, err.Error())
		return
	}

	qualified, drafted := h.runIntakePipeline(r.Context(), l)

	current, err := h.leads.Get(r.Context(), l.ID)
	if err != nil {
		current = l
	}
	httputil.Created(w, map[string]any{
		"lead":      current,
		"qualified": qualified,
		"drafted":   drafted,
	})
}

// runIntakePipeline qualifies and drafts a freshly created lead. Both steps
// are best effort here.
func (h *Handlers) runIntakePipeline(ctx context.Context, l *domain.Lead) (qualified, drafted bool) {
	if err := h.qualifier.QualifyLead(ctx, l); err != nil {
		logger.Warn("manual lead qualification failed", "lead_id", l.ID, "error", err)
		return false, false
	}
	qualified = true

	current, err := h.leads.Get(ctx, l.ID)
	if err != nil {
		logger.Warn("manual lead reload failed", "lead_id", l.ID, "error", err)
		return qualified, false
	}
	if current.Status != domain.LeadAnalyzed || current.ICPScore < h.qualifier.Threshold() {
		return qualified, false
	}
	if err := h.composer.ComposeFor(ctx, current, domain.EmailInitial); err != nil {
		logger.Warn("manual lead drafting failed", "lead_id", l.ID, "error", err)
		return qualified, false
	}
	return qualified, true
}

// BulkCreateLeads inserts a batch, skipping duplicates.
func (h *Handlers) BulkCreateLeads(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Leads []lead.CreateInput `json:"leads"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Leads) == 0 {
		httputil.BadRequest(w, "leads is required")
		return
	}

	res, err := h.leads.BulkCreate(r.Context(), req.Leads)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, res)
}

// ListLeads returns a filtered page of leads.
func (h *Handlers) ListLeads(w http.ResponseWriter, r *http.Request) {
	f := lead.ListFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", defaultBatchLimit),
		Offset: queryInt(r, "offset", 0),
	}
	leads, total, err := h.leads.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"leads": leads, "total": total})
}

// GetLead returns one lead by id.
func (h *Handlers) GetLead(w http.ResponseWriter, r *http.Request) {
	l, err := h.leads.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, lead.ErrNotFound):
		httputil.NotFound(w, "lead not found")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, l)
	}
}

// DeclineLead removes a lead from automated processing.
func (h *Handlers) DeclineLead(w http.ResponseWriter, r *http.Request) {
	err := h.leads.Decline(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, lead.ErrNotFound):
		httputil.NotFound(w, "lead not found")
	case errors.Is(err, lead.ErrInvalidTransition):
		httputil.Error(w, http.StatusConflict, err.Error())
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, map[string]string{"status": string(domain.LeadDeclined)})
	}
}

// ResetLead returns a lead to "new". The only path out of a terminal state.
func (h *Handlers) ResetLead(w http.ResponseWriter, r *http.Request) {
	err := h.leads.Reset(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, lead.ErrNotFound):
		httputil.NotFound(w, "lead not found")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, map[string]string{"status": string(domain.LeadNew)})
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
