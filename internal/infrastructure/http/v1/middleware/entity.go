package middleware

import (
	"github.com/gin-gonic/gin"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/metadata"
)

const entityKey = "entity_def"

// Entity resolves the :entity path parameter against the registry.
// Unknown names end the request with 404.
func Entity(registry *metadata.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("entity")
		def, ok := registry.Get(name)
		if !ok {
			_ = c.Error(apperror.NewNotFound("entity", name))
			c.Abort()
			return
		}
		c.Set(entityKey, def)
		c.Next()
	}
}

// GetEntity returns the definition resolved by Entity.
func GetEntity(c *gin.Context) (metadata.EntityDef, bool) {
	v, ok := c.Get(entityKey)
	if !ok {
		return metadata.EntityDef{}, false
	}
	def, ok := v.(metadata.EntityDef)
	return def, ok
}
