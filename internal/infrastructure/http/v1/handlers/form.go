package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/id"
	"vinoteka/internal/core/lang"
	"vinoteka/internal/domain/catalog"
	"vinoteka/internal/domain/reference"
	"vinoteka/internal/infrastructure/catalogapi"
	"vinoteka/internal/metadata"
)

// maxUpload bounds an attached image.
const maxUpload = 10 << 20

// Suffixes of the extra inputs some field types render.
const (
	uploadSuffix = ".upload"
	shareIDs     = ".id"
	sharePcts    = ".percentage"
)

// parseRecord reads the submitted form into a record shaped like the
// entity's initial form data. Read-only fields are ignored.
func parseRecord(c *gin.Context, def metadata.EntityDef) (metadata.Record, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.Request.ParseMultipartForm(maxUpload); err != nil {
			return nil, apperror.NewValidation("form is too large or malformed").WithCause(err)
		}
	}

	rec := make(metadata.Record, len(def.Fields))
	for _, f := range def.Fields {
		if f.ReadOnly {
			continue
		}
		switch f.Type {
		case metadata.TypeString:
			for _, p := range f.FormPaths() {
				rec.Set(p, c.PostForm(p))
			}

		case metadata.TypeNumber:
			raw := strings.TrimSpace(c.PostForm(f.Name))
			if raw == "" {
				if f.Required {
					// Left for the required check.
					rec.Set(f.Name, "")
				} else {
					rec.Set(f.Name, nil)
				}
				continue
			}
			if _, err := decimal.NewFromString(raw); err != nil {
				return rec, apperror.NewValidation(f.Label+" must be a number").WithDetail("field", f.Name)
			}
			rec.Set(f.Name, json.Number(raw))

		case metadata.TypeBoolean:
			switch c.PostForm(f.Name) {
			case "on", "true", "1":
				rec.Set(f.Name, true)
			default:
				rec.Set(f.Name, false)
			}

		case metadata.TypeSelect:
			raw := strings.TrimSpace(c.PostForm(f.Name))
			if raw == "" {
				rec.Set(f.Name, nil)
				continue
			}
			v, err := id.Parse(raw)
			if err != nil {
				return rec, apperror.NewValidation(f.Label+": unknown option").WithDetail("field", f.Name)
			}
			rec.Set(f.Name, v)

		case metadata.TypeMultiselect:
			if f.Shares {
				shares, err := parseShares(c, f)
				if err != nil {
					return rec, err
				}
				rec.Set(f.Name, shares)
				continue
			}
			values := make([]any, 0)
			for _, raw := range c.PostFormArray(f.Name) {
				v, err := id.Parse(raw)
				if err != nil {
					return rec, apperror.NewValidation(f.Label+": unknown option").WithDetail("field", f.Name)
				}
				values = append(values, v)
			}
			rec.Set(f.Name, values)

		case metadata.TypeImage:
			up, err := parseUpload(c, f)
			if err != nil {
				return rec, err
			}
			if up != nil {
				rec.Set(f.Name, *up)
				continue
			}
			rec.Set(f.Name, c.PostForm(f.Name))
		}
	}
	return rec, nil
}

// parseShares zips the id and percentage inputs of a shares field. Rows
// with an empty percentage are not part of the blend.
func parseShares(c *gin.Context, f metadata.FieldDef) ([]any, error) {
	ids := c.PostFormArray(f.Name + shareIDs)
	pcts := c.PostFormArray(f.Name + sharePcts)
	if len(ids) != len(pcts) {
		return nil, apperror.NewValidation(f.Label + ": malformed shares").WithDetail("field", f.Name)
	}

	shares := make([]catalog.VarietalShare, 0, len(ids))
	for i := range ids {
		if strings.TrimSpace(pcts[i]) == "" {
			continue
		}
		s, err := catalog.NewVarietalShare(ids[i], pcts[i])
		if err != nil {
			return nil, err
		}
		shares = append(shares, s)
	}
	if err := catalog.ValidateShares(shares); err != nil {
		return nil, err
	}

	out := make([]any, len(shares))
	for i, s := range shares {
		out[i] = map[string]any{
			"varietal_id": s.VarietalID,
			"percentage":  json.Number(s.Percentage.String()),
		}
	}
	return out, nil
}

// parseUpload returns the attached file of an image field, or nil.
func parseUpload(c *gin.Context, f metadata.FieldDef) (*catalogapi.Upload, error) {
	fh, err := c.FormFile(f.Name + uploadSuffix)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.NewValidation(f.Label + ": unreadable file").WithCause(err)
	}
	if fh.Size > maxUpload {
		return nil, apperror.NewValidation(f.Label + ": file is too large").WithDetail("field", f.Name)
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(fh.Filename))
	}
	if !acceptable(f.Accept, contentType) {
		return nil, apperror.NewValidation(fmt.Sprintf("%s: %s files are not accepted", f.Label, contentType)).
			WithDetail("field", f.Name)
	}

	file, err := fh.Open()
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUpload))
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return &catalogapi.Upload{Filename: path.Base(fh.Filename), ContentType: contentType, Data: data}, nil
}

// acceptable matches a mime type against an accept list like "image/*".
func acceptable(accept, contentType string) bool {
	if accept == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, pattern := range strings.Split(accept, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == mt || pattern == "*/*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok && strings.HasPrefix(mt, prefix+"/") {
			return true
		}
	}
	return false
}

// formInput is one rendered input of the entity form.
type formInput struct {
	Name     string
	Label    string
	Type     metadata.FieldType
	Required bool
	Shares   bool
	Accept   string
	Value    string
	Checked  bool
	ImageURL string
	Options  []choice
}

// choice is one option of a select, multiselect or shares input.
type choice struct {
	Value    string
	Label    string
	Selected bool
	Share    string
}

// formInputs lays out the inputs of def filled from data. Localized
// fields get one input per language.
func formInputs(def metadata.EntityDef, data metadata.Record, opts map[string]reference.Options, imageURL func(string) string) []formInput {
	inputs := make([]formInput, 0, len(def.Fields))
	for _, f := range def.Fields {
		if f.ReadOnly {
			continue
		}
		if f.Localized {
			for _, l := range lang.All {
				p := metadata.LocalizedPath(f.Name, l)
				v, _ := data.Get(p)
				inputs = append(inputs, formInput{
					Name:     p,
					Label:    fmt.Sprintf("%s (%s)", f.Label, strings.ToUpper(l.String())),
					Type:     f.Type,
					Required: f.Required && l == lang.Default,
					Value:    text(v),
				})
			}
			continue
		}

		v, _ := data.Get(f.Name)
		in := formInput{
			Name:     f.Name,
			Label:    f.Label,
			Type:     f.Type,
			Required: f.Required,
			Shares:   f.Shares,
			Accept:   f.Accept,
		}
		switch f.Type {
		case metadata.TypeBoolean:
			in.Checked, _ = v.(bool)
		case metadata.TypeSelect:
			cur, _ := id.FromAny(v)
			for _, o := range opts[f.Name] {
				in.Options = append(in.Options, choice{Value: o.Value.String(), Label: o.Label, Selected: o.Value == cur})
			}
		case metadata.TypeMultiselect:
			selected := selectedIDs(v)
			for _, o := range opts[f.Name] {
				ch := choice{Value: o.Value.String(), Label: o.Label}
				ch.Share, ch.Selected = selected[o.Value]
				in.Options = append(in.Options, ch)
			}
		case metadata.TypeImage:
			in.Value = text(v)
			if in.Value != "" && imageURL != nil {
				in.ImageURL = imageURL(in.Value)
			}
		default:
			in.Value = text(v)
		}
		inputs = append(inputs, in)
	}
	return inputs
}

// selectedIDs reads a multiselect value: plain ids, share objects or
// legacy "id:percentage" strings. The map value is the share percentage.
func selectedIDs(v any) map[id.ID]string {
	list, _ := v.([]any)
	out := make(map[id.ID]string, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			if vid, ok := id.FromAny(m["varietal_id"]); ok {
				out[vid] = text(m["percentage"])
			}
			continue
		}
		if s, ok := item.(string); ok && strings.Contains(s, ":") {
			if share, err := catalog.ParseVarietalShare(s); err == nil {
				out[share.VarietalID] = share.Percentage.String()
			}
			continue
		}
		if vid, ok := id.FromAny(item); ok {
			out[vid] = ""
		}
	}
	return out
}

// text renders a scalar form value.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case catalogapi.Upload:
		return ""
	}
	return fmt.Sprint(v)
}
