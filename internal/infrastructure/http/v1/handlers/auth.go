// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/domain/auth"
	"vinoteka/internal/domain/session"
	"vinoteka/internal/infrastructure/cache"
	"vinoteka/internal/infrastructure/http/v1/middleware"
)

type loginBody struct {
	Next     string
	Username string
	Error    string
}

// AuthHandler handles sign in and sign out.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
	views   *cache.ViewCache
	secure  bool
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service, views *cache.ViewCache, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		service:     service,
		views:       views,
		secure:      secureCookies,
	}
}

// LoginPage handles GET /login
func (h *AuthHandler) LoginPage(c *gin.Context) {
	next := safeRedirect(c.Query("next"), "/admin")
	if sess := h.Session(c); sess != nil && sess.LoggedIn(h.now()) {
		h.Redirect(c, next)
		return
	}
	h.Render(c, http.StatusOK, "login.html", "Sign in", loginBody{Next: next})
}

// Login handles POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var creds auth.Credentials
	if err := c.ShouldBind(&creds); err != nil {
		h.Error(c, apperror.NewValidation("invalid login form").WithDetail("error", err.Error()))
		return
	}
	next := safeRedirect(c.PostForm("next"), "/admin")

	sess := h.Session(c)
	if err := h.service.SignIn(c.Request.Context(), sess, creds); err != nil {
		appErr := apperror.Normalize(err)
		h.Render(c, appErr.HTTPStatus, "login.html", "Sign in", loginBody{
			Next:     next,
			Username: creds.Username,
			Error:    appErr.Message,
		})
		return
	}

	h.Flash(c, session.FlashSuccess, "Signed in as "+creds.Username)
	h.Redirect(c, next)
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sess := h.Session(c)
	h.views.Evict(sess.ID.String())
	if err := h.service.Logout(c.Request.Context(), sess); err != nil {
		h.Error(c, err)
		return
	}
	middleware.ClearSessionCookie(c, h.secure)
	h.Redirect(c, "/login")
}
