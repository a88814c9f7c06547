package middleware

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"vinoteka/internal/core/apperror"
)

// RequireLogin lets through sessions holding a live catalog API token.
// Pages redirect to the login form, /api requests get 401.
// Must run after Session.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := GetSession(c)
		if sess != nil && sess.LoggedIn(time.Now()) {
			c.Next()
			return
		}

		if IsAPI(c) {
			abortUnauthorized(c, "authentication required")
			return
		}

		next := "/admin"
		if c.Request.Method == http.MethodGet {
			next = c.Request.URL.RequestURI()
		}
		c.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(next))
		c.Abort()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
