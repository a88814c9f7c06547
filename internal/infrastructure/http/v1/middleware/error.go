package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"vinoteka/internal/core/apperror"
	appctx "vinoteka/internal/core/context"
	"vinoteka/internal/core/lang"
	"vinoteka/internal/infrastructure/http/v1/views"
	"vinoteka/pkg/logger"
)

// IsAPI reports whether the request targets the JSON API.
func IsAPI(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/")
}

// ErrorHandler middleware renders errors registered with c.Error.
// JSON for /api, an HTML error page with a toast otherwise. Internal
// errors are logged in full and shown without details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
			appErr = apperror.NewInternal(err)
		} else if appErr.Err != nil {
			logger.Error(c.Request.Context(), "request error",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}

		message := appErr.Message
		if appErr.Code == apperror.CodeInternal {
			message = "Internal server error"
		}
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}

		if IsAPI(c) {
			details := appErr.Details
			if appErr.Code == apperror.CodeInternal {
				details = map[string]any{"request_id": c.GetString("request_id")}
			}
			c.JSON(status, gin.H{
				"code":    appErr.Code,
				"message": message,
				"details": details,
			})
			return
		}

		if appErr.Code == apperror.CodeUnauthorized && c.Request.Method == http.MethodGet {
			c.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			return
		}

		ctx := c.Request.Context()
		c.HTML(status, "error.html", views.Page{
			Title:     http.StatusText(status),
			Lang:      lang.Parse(appctx.GetLanguage(ctx, lang.Default.String())),
			Languages: lang.All,
			RequestID: appctx.GetRequestID(ctx),
			Path:      c.Request.URL.RequestURI(),
			Body: views.ErrorBody{
				Status:  status,
				Code:    appErr.Code,
				Message: message,
			},
		})
	}
}
