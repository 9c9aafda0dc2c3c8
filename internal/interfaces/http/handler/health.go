package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Raulito1/collections-web/internal/domain/session"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	BaseHandler
	sessions *session.Store
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(sessions *session.Store) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

// RegisterRoutes registers health routes
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/healthz", h.Health)
}

// Health reports process liveness and whether the session bootstrap has
// settled.
func (h *HealthHandler) Health(c *gin.Context) {
	snapshot := h.sessions.Snapshot()
	h.Success(c, gin.H{
		"status":        "ok",
		"session_ready": !snapshot.Loading,
		"signed_in":     snapshot.Session != nil,
	})
}
