package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/outreach/internal/pkg/httputil"
)

// SetupRoutes configures all API routes. Everything except the health check
// sits behind the bearer secret; the trigger endpoints move real mail, so
// there is no unauthenticated surface.
func SetupRoutes(h *Handlers, secret string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(secret))

		// Pipeline triggers
		r.Post("/dispatch/send", h.DispatchSend)
		r.Post("/replies/check", h.RepliesCheck)
		r.Post("/replies/triage", h.RepliesTriage)
		r.Post("/discovery/run", h.DiscoveryRun)

		// Lead intake and operator overrides
		r.Post("/leads/manual", h.CreateManualLead)
		r.Post("/leads/bulk", h.BulkCreateLeads)
		r.Get("/leads", h.ListLeads)
		r.Get("/leads/{id}", h.GetLead)
		r.Post("/leads/{id}/decline", h.DeclineLead)
		r.Post("/leads/{id}/reset", h.ResetLead)

		// Outbound draft review
		r.Get("/drafts", h.ListDrafts)
		r.Post("/drafts/{id}/approve", h.ApproveDraft)
		r.Post("/drafts/{id}/reject", h.RejectDraft)

		// Inbound reply review
		r.Get("/replies", h.ListPendingReplies)
		r.Post("/replies/{id}/approve", h.ApproveReply)
		r.Post("/replies/{id}/regenerate", h.RegenerateReply)
	})

	return r
}

// bearerAuth rejects requests whose Authorization header does not carry the
// shared secret. An empty secret fails closed; the server refuses every
// protected request rather than running open.
func bearerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			token := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
			if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				httputil.Unauthorized(w, "unauthorized")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
