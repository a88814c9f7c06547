package catalogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/id"
	"vinoteka/internal/domain"
	"vinoteka/internal/domain/entitymgr"
	"vinoteka/internal/domain/listquery"
	"vinoteka/internal/metadata"
)

// Upload is a file attached to a form value. A record holding an Upload
// is sent as multipart/form-data: the other fields as JSON under "data",
// the file under "file".
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Collection binds one REST collection, e.g. "/categories".
type Collection struct {
	client      *Client
	path        string
	searchPath  string
	searchParam string
}

var _ entitymgr.Binding = (*Collection)(nil)

// CollectionOption customises a Collection.
type CollectionOption func(*Collection)

// WithSearch overrides the search endpoint and its query parameter.
func WithSearch(path, param string) CollectionOption {
	return func(c *Collection) {
		c.searchPath = path
		c.searchParam = param
	}
}

// Collection returns a binding for path.
func (c *Client) Collection(path string, opts ...CollectionOption) *Collection {
	path = "/" + strings.Trim(path, "/")
	col := &Collection{
		client:      c,
		path:        path,
		searchPath:  path + "/search",
		searchParam: "search",
	}
	for _, opt := range opts {
		opt(col)
	}
	return col
}

// Path returns the collection path.
func (c *Collection) Path() string { return c.path }

// GetAll lists the whole collection.
func (c *Collection) GetAll(ctx context.Context) ([]entitymgr.Record, error) {
	var raw json.RawMessage
	if err := c.client.GetJSON(ctx, c.path+"/all", nil, &raw); err != nil {
		return nil, err
	}
	return decodeRecords(raw)
}

// Search lists records matching query. Not paginated.
func (c *Collection) Search(ctx context.Context, query string) ([]entitymgr.Record, error) {
	var raw json.RawMessage
	q := url.Values{c.searchParam: {query}}
	if err := c.client.GetJSON(ctx, c.searchPath, q, &raw); err != nil {
		return nil, err
	}
	return decodeRecords(raw)
}

// Create posts a new record and returns it with its server id.
func (c *Collection) Create(ctx context.Context, data entitymgr.Record) (entitymgr.Record, error) {
	return c.send(ctx, http.MethodPost, c.path, data)
}

// Update patches the record itemID with data.
func (c *Collection) Update(ctx context.Context, itemID id.ID, data entitymgr.Record) (entitymgr.Record, error) {
	return c.send(ctx, http.MethodPatch, c.path+"/"+itemID.String(), data)
}

// Delete removes the record itemID.
func (c *Collection) Delete(ctx context.Context, itemID id.ID) error {
	return c.client.do(ctx, request{method: http.MethodDelete, path: c.path + "/" + itemID.String(), noLang: true}, nil)
}

func (c *Collection) send(ctx context.Context, method, path string, data entitymgr.Record) (entitymgr.Record, error) {
	body, contentType, err := encodeBody(data)
	if err != nil {
		return nil, err
	}
	var out entitymgr.Record
	err = c.client.do(ctx, request{
		method:      method,
		path:        path,
		body:        body,
		contentType: contentType,
		noLang:      true,
	}, &out)
	return out, err
}

// encodeBody encodes data as JSON, or as multipart when it holds an Upload.
func encodeBody(data entitymgr.Record) ([]byte, string, error) {
	fields := make(entitymgr.Record, len(data))
	var file *Upload
	for k, v := range data {
		switch u := v.(type) {
		case *Upload:
			file = u
		case Upload:
			file = &u
		default:
			fields[k] = v
		}
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, "", apperror.NewValidation("form data is not encodable").WithCause(err)
	}
	if file == nil {
		return payload, "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("data", string(payload)); err != nil {
		return nil, "", apperror.NewInternal(err)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Filename))
	ct := file.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", apperror.NewInternal(err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", apperror.NewInternal(err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", apperror.NewInternal(err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// decodeRecords accepts a bare array or a paged object.
func decodeRecords(raw json.RawMessage) ([]entitymgr.Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return []entitymgr.Record{}, nil
	}
	dec := func(b []byte, v any) error {
		d := json.NewDecoder(bytes.NewReader(b))
		d.UseNumber()
		return d.Decode(v)
	}
	if raw[0] == '[' {
		var items []entitymgr.Record
		if err := dec(raw, &items); err != nil {
			return nil, apperror.NewUpstream(http.StatusOK, "malformed list").WithCause(err)
		}
		return items, nil
	}
	var page domain.Page[entitymgr.Record]
	if err := dec(raw, &page); err != nil {
		return nil, apperror.NewUpstream(http.StatusOK, "malformed list").WithCause(err)
	}
	if page.Items == nil {
		page.Items = []entitymgr.Record{}
	}
	return page.Items, nil
}

// Options lists the records of an options endpoint such as
// "/subcategories/all".
func (c *Client) Options(ctx context.Context, endpoint string) ([]metadata.Record, error) {
	var raw json.RawMessage
	if err := c.GetJSON(ctx, endpoint, nil, &raw); err != nil {
		return nil, err
	}
	return decodeRecords(raw)
}

// PageFetcher returns a listquery fetch function decoding items as T.
// Filters become query parameters; empty values are left out.
func PageFetcher[T any](c *Client) listquery.FetchFunc[T] {
	return func(ctx context.Context, req listquery.Request) (domain.Page[T], error) {
		q := url.Values{}
		q.Set("page", strconv.Itoa(req.Page))
		q.Set("page_size", strconv.Itoa(req.PageSize))
		for k, v := range req.Filters {
			if s := filterValue(v); s != "" {
				q.Set(k, s)
			}
		}

		var raw json.RawMessage
		if err := c.GetJSON(ctx, req.Endpoint, q, &raw); err != nil {
			return domain.Page[T]{}, err
		}

		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			// Unpaged endpoint: the whole list is one page.
			var items []T
			if err := json.Unmarshal(raw, &items); err != nil {
				return domain.Page[T]{}, apperror.NewUpstream(http.StatusOK, "malformed page").WithCause(err)
			}
			return domain.Page[T]{Items: items, Total: len(items), Page: 1, PageSize: len(items)}, nil
		}

		var page domain.Page[T]
		if err := json.Unmarshal(raw, &page); err != nil {
			return domain.Page[T]{}, apperror.NewUpstream(http.StatusOK, "malformed page").WithCause(err)
		}
		return page, nil
	}
}

func filterValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case id.ID:
		if t.IsZero() {
			return ""
		}
		return t.String()
	}
	return fmt.Sprint(v)
}
