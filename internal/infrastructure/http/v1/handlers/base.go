package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	appctx "vinoteka/internal/core/context"
	"vinoteka/internal/core/lang"
	"vinoteka/internal/domain/session"
	"vinoteka/internal/infrastructure/http/v1/middleware"
	"vinoteka/internal/infrastructure/http/v1/views"
	"vinoteka/internal/metadata"
	"vinoteka/pkg/logger"
)

// BrowsePages lists the paged browse pages in menu order.
var BrowsePages = []string{"drinks", "items"}

// BaseHandler provides common handler utilities.
type BaseHandler struct {
	registry *metadata.Registry
	sessions session.Store
	now      func() time.Time
}

// NewBaseHandler creates a new base handler.
func NewBaseHandler(registry *metadata.Registry, sessions session.Store) *BaseHandler {
	return &BaseHandler{
		registry: registry,
		sessions: sessions,
		now:      time.Now,
	}
}

// Error processes error and sends appropriate response.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	h.HandleError(c, err)
}

// HandleError registers error on Gin context and aborts request.
// The response is produced by middleware.ErrorHandler.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// Session returns the request session.
func (h *BaseHandler) Session(c *gin.Context) *session.Session {
	return middleware.GetSession(c)
}

// Language returns the content language of the request.
func (h *BaseHandler) Language(c *gin.Context) lang.Language {
	if sess := h.Session(c); sess != nil {
		return sess.Language
	}
	return lang.Default
}

// save persists sess. Failures are logged: the response is already decided.
func (h *BaseHandler) save(c *gin.Context, sess *session.Session) {
	if err := h.sessions.Save(c.Request.Context(), sess); err != nil {
		logger.Error(c.Request.Context(), "save session", "session_id", sess.ID.String(), "error", err)
	}
}

// Flash queues a toast for the next rendered page.
func (h *BaseHandler) Flash(c *gin.Context, kind session.FlashKind, message string) {
	sess := h.Session(c)
	if sess == nil {
		return
	}
	sess.SetFlash(kind, message, h.now())
	h.save(c, sess)
}

// Redirect answers 303 so the browser follows with GET.
func (h *BaseHandler) Redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}

// Expire signs the session out after the catalog API rejected its token.
func (h *BaseHandler) Expire(c *gin.Context) {
	sess := h.Session(c)
	if sess != nil {
		sess.SignOut()
		sess.SetFlash(session.FlashInfo, "Your session has expired. Please sign in again.", h.now())
		h.save(c, sess)
	}
	next := "/admin"
	if c.Request.Method == http.MethodGet {
		next = c.Request.URL.RequestURI()
	}
	h.Redirect(c, "/login?next="+url.QueryEscape(next))
}

// Render executes a page template inside the layout. A pending flash is
// consumed.
func (h *BaseHandler) Render(c *gin.Context, status int, template, title string, body any) {
	ctx := c.Request.Context()
	page := views.Page{
		Title:     title,
		Lang:      h.Language(c),
		Languages: lang.All,
		RequestID: appctx.GetRequestID(ctx),
		Path:      c.Request.URL.RequestURI(),
		Body:      body,
	}
	if sess := h.Session(c); sess != nil {
		page.LoggedIn = sess.LoggedIn(h.now())
		if f := sess.TakeFlash(h.now()); f != nil {
			page.Flash = f
			h.save(c, sess)
		}
	}
	if page.LoggedIn {
		page.Nav = h.nav(c)
	}
	c.HTML(status, template, page)
}

func (h *BaseHandler) nav(c *gin.Context) []views.NavLink {
	current := c.Request.URL.Path
	defs := h.registry.List()
	links := make([]views.NavLink, 0, len(defs)+len(BrowsePages))
	for _, def := range defs {
		href := "/admin/" + def.Name
		links = append(links, views.NavLink{
			Href:   href,
			Label:  def.Label,
			Active: current == href || strings.HasPrefix(current, href+"/"),
		})
	}
	for _, p := range BrowsePages {
		href := "/browse/" + p
		links = append(links, views.NavLink{
			Href:   href,
			Label:  "Browse " + p,
			Active: current == href,
		})
	}
	return links
}

// safeRedirect accepts only local absolute paths.
func safeRedirect(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
