// Package catalogapi is the HTTP client of the catalog REST API.
package catalogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vinoteka/internal/core/apperror"
	appctx "vinoteka/internal/core/context"
	"vinoteka/internal/core/lang"
	"vinoteka/pkg/logger"
)

var tracer = otel.Tracer("vinoteka/catalogapi")

// maxErrorBody caps how much of an error response ends up in a message.
const maxErrorBody = 4 << 10

// Config holds client configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper // optional, for tests
}

// Client talks to the catalog API. The bearer token and the language are
// read from the request context on every call; the client itself holds
// no credentials.
type Client struct {
	base *url.URL
	http *http.Client
	log  *logger.Logger
}

// New creates a Client.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse catalog api url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("catalog api url %q must be absolute", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		log:  log.WithComponent("catalogapi"),
	}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string { return c.base.String() }

// ImageURL returns the public URL of a stored image.
func (c *Client) ImageURL(imageID string) string {
	if imageID == "" {
		return ""
	}
	return c.base.String() + "/images/" + url.PathEscape(imageID)
}

// request describes one API call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	noAuth      bool
	noLang      bool
}

// resolve joins path onto the base URL and appends lang when the path
// does not carry it already.
func (c *Client) resolve(ctx context.Context, r request) (string, error) {
	ref, err := url.Parse(r.path)
	if err != nil {
		return "", apperror.NewValidation(fmt.Sprintf("bad api path %q", r.path)).WithCause(err)
	}
	u := *c.base
	u.Path = strings.TrimSuffix(c.base.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")

	q := ref.Query()
	for k, vs := range r.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if !r.noLang && q.Get("lang") == "" && !hasLangSegment(ref.Path) {
		q.Set("lang", appctx.GetLanguage(ctx, lang.Default.String()))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func hasLangSegment(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		if len(seg) == 2 && lang.Valid(seg) {
			return true
		}
	}
	return false
}

// do performs r and decodes a JSON response into out (nil to discard).
func (c *Client) do(ctx context.Context, r request, out any) error {
	target, err := c.resolve(ctx, r)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "catalogapi "+r.method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", r.method),
			attribute.String("catalog.path", r.path),
		))
	defer span.End()

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return apperror.NewInternal(err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if !r.noAuth {
		if token := appctx.GetToken(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if rid := appctx.GetRequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	if tid := appctx.GetTraceID(ctx); tid != "" {
		req.Header.Set("X-Trace-ID", tid)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		if errors.Is(err, context.Canceled) {
			return apperror.NewCanceled(err)
		}
		c.log.WithContext(ctx).Warnw("catalog api unreachable", "method", r.method, "path", r.path, "error", err)
		return apperror.NewTransport(err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.log.WithContext(ctx).Debugw("catalog api call",
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		span.SetStatus(codes.Error, resp.Status)
		return apperror.NewUpstream(resp.StatusCode, errorText(text))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperror.NewUpstream(resp.StatusCode, "malformed response body").WithCause(err)
	}
	return nil
}

// errorText extracts a readable message from an error body: the "detail"
// or "message" field of a JSON object, or the raw text.
func errorText(body []byte) string {
	var obj map[string]any
	if json.Unmarshal(body, &obj) == nil {
		for _, key := range []string{"detail", "message", "error"} {
			if s, ok := obj[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(body))
}

// PostForm sends a form-encoded POST without the session token and
// decodes the JSON response.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	return c.do(ctx, request{
		method:      http.MethodPost,
		path:        path,
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		noAuth:      true,
		noLang:      true,
	}, out)
}

// GetJSON performs an authenticated GET.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}
