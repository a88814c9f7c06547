// Package v1 provides the admin HTTP surface version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vinoteka/internal/domain/audit"
	"vinoteka/internal/domain/auth"
	"vinoteka/internal/domain/reference"
	"vinoteka/internal/domain/session"
	"vinoteka/internal/infrastructure/cache"
	"vinoteka/internal/infrastructure/catalogapi"
	"vinoteka/internal/infrastructure/http/v1/handlers"
	"vinoteka/internal/infrastructure/http/v1/middleware"
	"vinoteka/internal/infrastructure/http/v1/views"
	"vinoteka/internal/infrastructure/storage/postgres"
	"vinoteka/internal/metadata"
	"vinoteka/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Registry stores entity definitions
	Registry *metadata.Registry

	// Client talks to the catalog API
	Client *catalogapi.Client

	// Resolver loads select options
	Resolver *reference.Resolver

	// Auth signs sessions in and out
	Auth *auth.Service

	// Sessions stores admin sessions
	Sessions session.Store

	// Views keeps per-session managers and list queries
	Views *cache.ViewCache

	// Journal records mutations; nil disables auditing
	Journal audit.Journal

	// Pool is checked by /health/ready; nil with in-memory sessions
	Pool *postgres.Pool

	// Browse sets the page sizes of /browse pages
	Browse handlers.BrowseConfig

	// SecureCookies marks the session cookie Secure
	SecureCookies bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.SetHTMLTemplate(views.MustLoad())

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	router.StaticFS("/static", views.Static())

	// Health endpoints (no session)
	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Registry, cfg.Resolver, cfg.Views)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler(cfg.Registry, cfg.Sessions)

	web := router.Group("")
	web.Use(middleware.Session(cfg.Sessions, cfg.SecureCookies))
	{
		registerAuthRoutes(web, base, cfg)

		prefs := handlers.NewPrefsHandler(base, cfg.Views)
		web.POST("/prefs/language", prefs.SetLanguage)

		protected := web.Group("")
		protected.Use(middleware.RequireLogin())

		protected.POST("/prefs/view/:page", prefs.SetViewMode)
		registerAdminRoutes(protected, base, cfg)
		registerBrowseRoutes(protected, base, cfg)
		registerMetaRoutes(protected, base, cfg)
	}

	return router
}

// registerAuthRoutes registers sign in and sign out.
func registerAuthRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	authHandler := handlers.NewAuthHandler(base, cfg.Auth, cfg.Views, cfg.SecureCookies)
	rg.GET("/login", authHandler.LoginPage)
	rg.POST("/login", authHandler.Login)
	rg.POST("/logout", authHandler.Logout)
}

// registerAdminRoutes registers the schema-driven entity pages.
func registerAdminRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	rg.GET("/", func(c *gin.Context) { c.Redirect(http.StatusSeeOther, "/admin") })
	rg.GET("/admin", func(c *gin.Context) {
		base.Render(c, http.StatusOK, "home.html", "Catalog", nil)
	})

	entityHandler := handlers.NewEntityHandler(base, cfg.Client, cfg.Resolver, cfg.Views, cfg.Journal, cfg.Logger)
	RegisterEntityRoutes(rg.Group("/admin/:entity"), entityHandler, cfg.Registry)
}

// registerBrowseRoutes registers the paged drinks and items pages.
func registerBrowseRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	browseHandler := handlers.NewBrowseHandler(base, cfg.Client, cfg.Resolver, cfg.Views, cfg.Browse, cfg.Logger)
	rg.GET("/browse/:page", browseHandler.Browse)
}

// registerMetaRoutes registers metadata/schema endpoints.
func registerMetaRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	handler := handlers.NewMetadataHandler(base, cfg.Registry, cfg.Resolver)
	meta := rg.Group("/api/meta")
	{
		meta.GET("", handler.ListEntities)
		meta.GET("/:name", handler.GetEntity)
		meta.GET("/:name/options", handler.GetOptions)
	}
}
