package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vinoteka/internal/domain/reference"
	"vinoteka/internal/infrastructure/cache"
	"vinoteka/internal/infrastructure/storage/postgres"
	"vinoteka/internal/metadata"
)

// Version is reported by /health/info.
var Version = "dev"

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	pool     *postgres.Pool // nil with in-memory sessions
	registry *metadata.Registry
	resolver *reference.Resolver
	views    *cache.ViewCache
}

// NewHealthHandler creates a new health handler. pool may be nil.
func NewHealthHandler(pool *postgres.Pool, registry *metadata.Registry, resolver *reference.Resolver, views *cache.ViewCache) *HealthHandler {
	return &HealthHandler{
		pool:     pool,
		registry: registry,
		resolver: resolver,
		views:    views,
	}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := map[string]string{
		"schema": "healthy",
	}
	healthy := true

	if len(h.registry.List()) == 0 {
		checks["schema"] = "unhealthy: no entities registered"
		healthy = false
	}
	if h.pool != nil {
		if err := h.pool.Ping(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			checks["database"] = "healthy"
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": checks,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": checks,
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"app":              "vinoteka-admin",
		"version":          Version,
		"entities":         len(h.registry.List()),
		"active_sessions":  h.views.Len(),
		"cached_endpoints": h.resolver.Endpoints(),
	}
	if h.pool != nil {
		stat := h.pool.Stat()
		info["database"] = map[string]any{
			"total_conns":    stat.TotalConns(),
			"acquired_conns": stat.AcquiredConns(),
			"idle_conns":     stat.IdleConns(),
			"max_conns":      stat.MaxConns(),
		}
	}
	c.JSON(http.StatusOK, info)
}
