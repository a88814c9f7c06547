package v1

import (
	"github.com/gin-gonic/gin"

	"vinoteka/internal/infrastructure/http/v1/middleware"
	"vinoteka/internal/metadata"
)

// EntityRouteHandler defines the pages of a schema-driven entity.
type EntityRouteHandler interface {
	List(c *gin.Context)
	New(c *gin.Context)
	Edit(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	ConfirmDelete(c *gin.Context)
	Delete(c *gin.Context)
}

// RegisterEntityRoutes registers the list, form and delete routes of every
// entity in the registry under group, which must end in "/:entity".
//
// Usage:
//
//	handler := handlers.NewEntityHandler(base, client, resolver, views, journal, log)
//	RegisterEntityRoutes(protected.Group("/admin/:entity"), handler, registry)
func RegisterEntityRoutes(group *gin.RouterGroup, handler EntityRouteHandler, registry *metadata.Registry) {
	group.Use(middleware.Entity(registry))
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/new", handler.New)
	group.GET("/:id/edit", handler.Edit)
	group.POST("/:id", handler.Update)
	group.GET("/:id/delete", handler.ConfirmDelete)
	group.POST("/:id/delete", handler.Delete)
}
