package handlers

import (
	"slices"

	"github.com/gin-gonic/gin"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/lang"
	"vinoteka/internal/domain/session"
	"vinoteka/internal/infrastructure/cache"
)

// PrefsHandler stores per-session preferences.
type PrefsHandler struct {
	*BaseHandler
	views *cache.ViewCache
}

// NewPrefsHandler creates a preferences handler.
func NewPrefsHandler(base *BaseHandler, views *cache.ViewCache) *PrefsHandler {
	return &PrefsHandler{BaseHandler: base, views: views}
}

// SetLanguage handles POST /prefs/language
func (h *PrefsHandler) SetLanguage(c *gin.Context) {
	code := c.PostForm("lang")
	if !lang.Valid(code) {
		h.Error(c, apperror.NewValidation("unsupported language").WithDetail("lang", code))
		return
	}
	sess := h.Session(c)
	if l := lang.Parse(code); l != sess.Language {
		sess.Language = l
		h.save(c, sess)
		// Loaded lists and options are in the previous language.
		h.views.Evict(sess.ID.String())
	}
	h.Redirect(c, safeRedirect(c.PostForm("back"), "/admin"))
}

// SetViewMode handles POST /prefs/view/:page
func (h *PrefsHandler) SetViewMode(c *gin.Context) {
	page := c.Param("page")
	if !slices.Contains(BrowsePages, page) {
		h.Error(c, apperror.NewNotFound("page", page))
		return
	}
	sess := h.Session(c)
	sess.SetViewMode(page, session.ParseViewMode(c.PostForm("mode")))
	h.save(c, sess)
	h.Redirect(c, safeRedirect(c.PostForm("back"), "/browse/"+page))
}
