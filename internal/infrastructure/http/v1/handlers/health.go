package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"publica/internal/infrastructure/storage"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store storage.Translator
}

// NewHealthHandler creates a health handler over the active engine.
func NewHealthHandler(store storage.Translator) *HealthHandler {
	return &HealthHandler{store: store}
}

// Live reports process liveness.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the storage engine is usable.
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"engine": string(h.store.Engine()),
	})
}
