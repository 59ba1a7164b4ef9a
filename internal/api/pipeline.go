package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/outreach/internal/dispatch"
	"github.com/ignite/outreach/internal/pkg/httputil"
)

// DispatchSend runs one send pass over the approved queue.
func (h *Handlers) DispatchSend(w http.ResponseWriter, r *http.Request) {
	tally, err := h.dispatcher.Run(r.Context())
	switch {
	case errors.Is(err, dispatch.ErrAlreadyRunning):
		httputil.Error(w, http.StatusConflict, "a dispatch run is already in progress")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, tally)
	}
}

// RepliesCheck polls sent threads for replies and bounces.
func (h *Handlers) RepliesCheck(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "no mailbox configured")
		return
	}
	rep, err := h.monitor.Check(r.Context(), queryInt(r, "limit", defaultBatchLimit))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, rep)
}

// RepliesTriage classifies unprocessed replies and prepares drafts.
func (h *Handlers) RepliesTriage(w http.ResponseWriter, r *http.Request) {
	if h.triage == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "no mailbox configured")
		return
	}
	rep, err := h.triage.Run(r.Context(), queryInt(r, "limit", defaultBatchLimit))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, rep)
}

// DiscoveryRun crawls the given seeds and inserts validated contacts as new
// leads. When nothing could be crawled at all the request is rejected so the
// caller notices the bad seed list.
func (h *Handlers) DiscoveryRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SeedURL     string   `json:"seed_url"`
		SeedURLs    []string `json:"seed_urls"`
		SourceQuery string   `json:"source_query"`
		Depth       int      `json:"depth"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	seeds := req.SeedURLs
	if s := strings.TrimSpace(req.SeedURL); s != "" {
		seeds = append(seeds, s)
	}
	if len(seeds) == 0 {
		httputil.BadRequest(w, "seed_url or seed_urls is required")
		return
	}

	rep, err := h.discovery.Run(r.Context(), seeds, req.SourceQuery, req.Depth)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if rep.SeedsCrawled == 0 && len(rep.Errors) > 0 {
		httputil.JSON(w, http.StatusUnprocessableEntity, rep)
		return
	}
	httputil.OK(w, rep)
}
