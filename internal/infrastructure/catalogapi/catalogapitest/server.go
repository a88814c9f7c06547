// Package catalogapitest runs an in-memory catalog API for tests.
package catalogapitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Call is one request received by the server.
type Call struct {
	Method      string
	Path        string
	Query       url.Values
	Auth        string
	ContentType string
	RequestID   string
	TraceID     string
}

// Lang returns the lang query parameter of the call.
func (c Call) Lang() string { return c.Query.Get("lang") }

type failure struct {
	status int
	body   string
}

// Server is a fake catalog API. Collections are created on first use.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	data     map[string][]map[string]any
	nextID   int64
	users    map[string]string
	secret   []byte
	tokenTTL time.Duration
	failures map[string]failure
	calls    []Call
	uploads  map[string][]byte
}

// New starts a server closed by t.Cleanup. One user "admin"/"secret" exists.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		data:     make(map[string][]map[string]any),
		users:    map[string]string{"admin": "secret"},
		secret:   []byte("catalogapitest"),
		tokenTTL: time.Hour,
		failures: make(map[string]failure),
		uploads:  make(map[string][]byte),
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(s.record, s.inject)

	r.POST("/auth/token", s.token)

	api := r.Group("", s.requireToken)
	api.GET("/:collection", s.browse)
	api.GET("/:collection/all", s.all)
	api.GET("/:collection/search", s.search)
	api.POST("/:collection", s.create)
	api.PATCH("/:collection/:id", s.update)
	api.DELETE("/:collection/:id", s.delete)
	return r
}

// Seed appends rows to collection. Rows without an id get one.
func (s *Server) Seed(collection string, rows ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		cp := clone(row)
		if _, ok := cp["id"]; !ok {
			s.nextID++
			cp["id"] = s.nextID
		} else if n, ok := toInt64(cp["id"]); ok && n > s.nextID {
			s.nextID = n
		}
		s.data[collection] = append(s.data[collection], cp)
	}
}

// Rows returns a copy of collection.
func (s *Server) Rows(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.data[collection]))
	for _, r := range s.data[collection] {
		out = append(out, clone(r))
	}
	return out
}

// Fail makes the next request matching method and path answer status
// with body.
func (s *Server) Fail(method, path string, status int, body string) {
	s.mu.Lock()
	s.failures[method+" "+path] = failure{status: status, body: body}
	s.mu.Unlock()
}

// Calls returns the requests received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the requests whose path is path.
func (s *Server) CallsTo(method, path string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Upload returns the bytes stored for an image id.
func (s *Server) Upload(imageID string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads[imageID]
}

// SetTokenTTL changes the lifetime of tokens issued from now on.
func (s *Server) SetTokenTTL(ttl time.Duration) {
	s.mu.Lock()
	s.tokenTTL = ttl
	s.mu.Unlock()
}

// Token mints a valid token for user.
func (s *Server) Token(user string) string {
	s.mu.Lock()
	ttl := s.tokenTTL
	s.mu.Unlock()
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}).SignedString(s.secret)
	return tok
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method:      c.Request.Method,
		Path:        c.Request.URL.Path,
		Query:       c.Request.URL.Query(),
		Auth:        c.GetHeader("Authorization"),
		ContentType: c.ContentType(),
		RequestID:   c.GetHeader("X-Request-ID"),
		TraceID:     c.GetHeader("X-Trace-ID"),
	})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) inject(c *gin.Context) {
	key := c.Request.Method + " " + c.Request.URL.Path
	s.mu.Lock()
	f, ok := s.failures[key]
	delete(s.failures, key)
	s.mu.Unlock()
	if ok {
		c.String(f.status, f.body)
		c.Abort()
		return
	}
	c.Next()
}

func (s *Server) token(c *gin.Context) {
	if c.PostForm("grant_type") != "password" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unsupported grant_type"})
		return
	}
	user, pass := c.PostForm("username"), c.PostForm("password")
	s.mu.Lock()
	want, ok := s.users[user]
	s.mu.Unlock()
	if !ok || want != pass {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": s.Token(user), "token_type": "bearer"})
}

func (s *Server) requireToken(c *gin.Context) {
	raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}
	_, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
		return
	}
	c.Next()
}

func (s *Server) all(c *gin.Context) {
	c.JSON(http.StatusOK, s.filter(c.Param("collection"), nil))
}

func (s *Server) search(c *gin.Context) {
	q := c.Query("search")
	if _, paged := c.GetQuery("page"); paged {
		s.browse(c)
		return
	}
	c.JSON(http.StatusOK, s.filter(c.Param("collection"), url.Values{"search": {q}}))
}

// browse serves {items,total,page,page_size,has_next}.
func (s *Server) browse(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}

	rows := s.filter(c.Param("collection"), c.Request.URL.Query())
	start := (page - 1) * size
	end := start + size
	if start > len(rows) {
		start = len(rows)
	}
	if end > len(rows) {
		end = len(rows)
	}
	c.JSON(http.StatusOK, gin.H{
		"items":     rows[start:end],
		"total":     len(rows),
		"page":      page,
		"page_size": size,
		"has_next":  end < len(rows),
	})
}

var reserved = map[string]bool{"page": true, "page_size": true, "lang": true}

// filter applies "search" as a case-insensitive substring of name or
// title, and every other parameter as equality on key or key_id.
func (s *Server) filter(collection string, params url.Values) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0)
	for _, row := range s.data[collection] {
		if matches(row, params) {
			out = append(out, clone(row))
		}
	}
	return out
}

func matches(row map[string]any, params url.Values) bool {
	for key, vals := range params {
		if reserved[key] || len(vals) == 0 || vals[0] == "" {
			continue
		}
		want := strings.ToLower(vals[0])
		if key == "search" || key == "search_str" {
			name, _ := row["name"].(string)
			title, _ := row["title"].(string)
			name = strings.ToLower(name + " " + title)
			if !strings.Contains(name, want) {
				return false
			}
			continue
		}
		got, ok := row[key]
		if !ok {
			got, ok = row[key+"_id"]
		}
		if !ok || strings.ToLower(fmt.Sprint(got)) != want {
			return false
		}
	}
	return true
}

func (s *Server) create(c *gin.Context) {
	body, imageID, err := s.readBody(c)
	if err != nil {
		c.String(http.StatusUnprocessableEntity, err.Error())
		return
	}
	if imageID != "" {
		body["image_id"] = imageID
	}

	s.mu.Lock()
	s.nextID++
	body["id"] = s.nextID
	coll := c.Param("collection")
	s.data[coll] = append(s.data[coll], body)
	out := clone(body)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, out)
}

func (s *Server) update(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusUnprocessableEntity, "bad id")
		return
	}
	body, imageID, err := s.readBody(c)
	if err != nil {
		c.String(http.StatusUnprocessableEntity, err.Error())
		return
	}
	if imageID != "" {
		body["image_id"] = imageID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.data[c.Param("collection")] {
		if n, _ := toInt64(row["id"]); n == itemID {
			for k, v := range body {
				if k != "id" {
					row[k] = v
				}
			}
			c.JSON(http.StatusOK, clone(row))
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not found"})
}

func (s *Server) delete(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusUnprocessableEntity, "bad id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	coll := c.Param("collection")
	for i, row := range s.data[coll] {
		if n, _ := toInt64(row["id"]); n == itemID {
			s.data[coll] = append(s.data[coll][:i], s.data[coll][i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not found"})
}

// readBody decodes a JSON body, or a multipart body with "data" and an
// optional "file" (stored, returning its image id).
func (s *Server) readBody(c *gin.Context) (map[string]any, string, error) {
	var body map[string]any
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := json.Unmarshal([]byte(c.PostForm("data")), &body); err != nil {
			return nil, "", fmt.Errorf("data: %w", err)
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return body, "", nil
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			return nil, "", err
		}
		s.mu.Lock()
		imageID := fmt.Sprintf("img-%d", len(s.uploads)+1)
		s.uploads[imageID] = b
		s.mu.Unlock()
		return body, imageID, nil
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, "", err
	}
	return body, "", nil
}

func clone(m map[string]any) map[string]any {
	b, _ := json.Marshal(m)
	var out map[string]any
	_ = json.Unmarshal(b, &out)
	for k, v := range out {
		if f, ok := v.(float64); ok && f == float64(int64(f)) && k == "id" {
			out[k] = int64(f)
		}
	}
	return out
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	}
	return 0, false
}
