package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "vinoteka/internal/core/context"
	"vinoteka/internal/domain/session"
	"vinoteka/internal/infrastructure/http/v1/middleware"
)

func newEngine(store session.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Trace(), middleware.ErrorHandler(), middleware.Session(store, false))

	whoami := func(c *gin.Context) {
		sess := middleware.GetSession(c)
		c.JSON(http.StatusOK, gin.H{
			"session": sess.ID.String(),
			"ctx":     appctx.GetSessionID(c.Request.Context()),
			"token":   appctx.GetToken(c.Request.Context()),
			"trace":   appctx.GetTraceID(c.Request.Context()),
		})
	}
	r.GET("/open", whoami)

	protected := r.Group("", middleware.RequireLogin())
	protected.GET("/admin/drinks", whoami)
	protected.POST("/admin/drinks", whoami)
	protected.GET("/api/meta", whoami)
	return r
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSession_StartsAndResumes(t *testing.T) {
	store := session.NewMemoryStore()
	r := newEngine(store)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	first := decode(t, rec)
	assert.Equal(t, cookie.Value, first["session"])
	assert.Equal(t, cookie.Value, first["ctx"])

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Nil(t, sessionCookie(rec), "a known session keeps its cookie")
	assert.Equal(t, first["session"], decode(t, rec)["session"])
}

func TestSession_UnknownCookieStartsNewSession(t *testing.T) {
	r := newEngine(session.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "2d1f0c1e-5f3a-4c55-9d55-0c8f2c1b7a11"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.NotEqual(t, "2d1f0c1e-5f3a-4c55-9d55-0c8f2c1b7a11", cookie.Value)
}

func TestTrace_KeepsIncomingIDs(t *testing.T) {
	r := newEngine(session.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set(middleware.HeaderTraceID, "trace-7")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "trace-7", rec.Header().Get(middleware.HeaderTraceID))
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
	assert.Equal(t, "trace-7", decode(t, rec)["trace"])
}

func TestRequireLogin_RedirectsPages(t *testing.T) {
	r := newEngine(session.NewMemoryStore())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/drinks?q=ba", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Fadmin%2Fdrinks%3Fq%3Dba", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/drinks", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Fadmin", rec.Header().Get("Location"))
}

func TestRequireLogin_APIGets401(t *testing.T) {
	r := newEngine(session.NewMemoryStore())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/meta", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["code"])
}

func TestRequireLogin_AcceptsLiveToken(t *testing.T) {
	store := session.NewMemoryStore()
	r := newEngine(store)

	sess := session.New(time.Now())
	sess.SignIn("tok-1", time.Now().Add(time.Hour))
	require.NoError(t, store.Save(context.Background(), sess))

	req := httptest.NewRequest(http.MethodGet, "/admin/drinks", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sess.ID.String()})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-1", decode(t, rec)["token"])
}

func TestRequireLogin_RejectsExpiredToken(t *testing.T) {
	store := session.NewMemoryStore()
	r := newEngine(store)

	sess := session.New(time.Now())
	sess.SignIn("tok-1", time.Now().Add(-time.Minute))
	require.NoError(t, store.Save(context.Background(), sess))

	req := httptest.NewRequest(http.MethodGet, "/api/meta", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sess.ID.String()})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
