package handlers

import (
	"github.com/gin-gonic/gin"

	"publica/internal/core/apperror"
	"publica/internal/metadata"
)

// MetadataHandler exposes the model registry: which models exist and which
// fields they carry, for form builders and admin tooling.
type MetadataHandler struct {
	*BaseHandler
	registry *metadata.Registry
}

// NewMetadataHandler creates a metadata handler.
func NewMetadataHandler(base *BaseHandler, registry *metadata.Registry) *MetadataHandler {
	return &MetadataHandler{BaseHandler: base, registry: registry}
}

// ListModels returns all registered model names in registration order.
func (h *MetadataHandler) ListModels(c *gin.Context) {
	defs := h.registry.List()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	h.OK(c, gin.H{"models": names})
}

// GetModel returns one model definition.
func (h *MetadataHandler) GetModel(c *gin.Context) {
	name := c.Param("name")
	def, ok := h.registry.Get(name)
	if !ok {
		h.Error(c, apperror.NewNotFound("model", name))
		return
	}
	h.OK(c, gin.H{
		"name":   def.Name,
		"label":  def.Label,
		"table":  def.TableName,
		"fields": def.Fields,
	})
}
