package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach/internal/pkg/httputil"
)

// HealthChecker probes the server's backing stores.
type HealthChecker struct {
	db    *sql.DB
	redis *redis.Client
}

func NewHealthChecker(db *sql.DB, rdb *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: rdb}
}

// HealthCheck reports per-component status. Components that were never
// configured report as such instead of failing the check.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := map[string]string{}
	status := "ok"

	if h.health == nil || h.health.db == nil {
		components["database"] = "not_configured"
	} else if err := h.health.db.PingContext(ctx); err != nil {
		components["database"] = "down"
		status = "degraded"
	} else {
		components["database"] = "ok"
	}

	if h.health == nil || h.health.redis == nil {
		components["redis"] = "not_configured"
	} else if err := h.health.redis.Ping(ctx).Err(); err != nil {
		components["redis"] = "down"
		status = "degraded"
	} else {
		components["redis"] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, map[string]any{
		"status":     status,
		"components": components,
		"time":       time.Now().UTC().Format(time.RFC3339),
	})
}
