package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/domain/reference"
	"vinoteka/internal/metadata"
)

// MetadataHandler exposes entity schemas as JSON.
type MetadataHandler struct {
	*BaseHandler
	registry *metadata.Registry
	resolver *reference.Resolver
}

func NewMetadataHandler(base *BaseHandler, registry *metadata.Registry, resolver *reference.Resolver) *MetadataHandler {
	return &MetadataHandler{
		BaseHandler: base,
		registry:    registry,
		resolver:    resolver,
	}
}

// ListEntities returns every registered entity definition.
// GET /api/meta
func (h *MetadataHandler) ListEntities(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.List())
}

// GetEntity returns one entity definition.
// GET /api/meta/:name
func (h *MetadataHandler) GetEntity(c *gin.Context) {
	name := c.Param("name")
	def, ok := h.registry.Get(name)
	if !ok {
		h.Error(c, apperror.NewNotFound("entity", name))
		return
	}
	c.JSON(http.StatusOK, def)
}

// GetOptions returns the resolved options of every select field of an
// entity, in the session language.
// GET /api/meta/:name/options
func (h *MetadataHandler) GetOptions(c *gin.Context) {
	name := c.Param("name")
	def, ok := h.registry.Get(name)
	if !ok {
		h.Error(c, apperror.NewNotFound("entity", name))
		return
	}
	opts, err := h.resolver.Resolve(c.Request.Context(), def)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, opts)
}
