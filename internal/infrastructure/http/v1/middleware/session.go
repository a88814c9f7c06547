package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vinoteka/internal/core/apperror"
	appctx "vinoteka/internal/core/context"
	"vinoteka/internal/core/id"
	"vinoteka/internal/domain/session"
	"vinoteka/pkg/logger"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "vinoteka_session"

const sessionKey = "session"

// touchInterval is how stale UpdatedAt may get before a request saves the
// session again, so the idle sweep does not drop active sessions.
const touchInterval = time.Minute

// Session loads the session named by the cookie, or starts an anonymous
// one. The session is stored in the gin context; its token and language
// go to the request context for the catalog client.
func Session(store session.Store, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		now := time.Now()

		var sess *session.Session
		if raw, err := c.Cookie(SessionCookie); err == nil {
			if sid, err := id.ParseSession(raw); err == nil {
				found, err := store.Get(ctx, sid)
				switch {
				case err == nil:
					sess = found
				case !apperror.IsNotFound(err):
					logger.Warn(ctx, "session lookup failed", "error", err)
				}
			}
		}

		fresh := sess == nil
		if fresh {
			sess = session.New(now)
		}
		if fresh || now.Sub(sess.UpdatedAt) > touchInterval {
			if err := store.Save(ctx, sess); err != nil {
				_ = c.Error(apperror.NewInternal(err))
				c.Abort()
				return
			}
		}
		if fresh {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, sess.ID.String(), 0, "/", "", secure, true)
		}

		c.Set(sessionKey, sess)
		c.Request = c.Request.WithContext(appctx.WithSession(ctx, sess.Context()))
		c.Next()
	}
}

// GetSession returns the session loaded by Session.
func GetSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", secure, true)
}
