package entitymgr

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/id"
	"vinoteka/internal/core/lang"
	"vinoteka/internal/metadata"
)

// FormMode tells whether a form creates or edits.
type FormMode string

const (
	FormCreate FormMode = "create"
	FormEdit   FormMode = "edit"
)

// Form is the state of the add/edit dialog.
type Form struct {
	Mode FormMode
	ID   id.ID // zero for create
	Data Record
	Err  *apperror.AppError
}

func (f *Form) clone() *Form {
	if f == nil {
		return nil
	}
	cp := *f
	cp.Data = f.Data.Clone()
	return &cp
}

// prefill copies item values into a fresh copy of the initial form data,
// matched by field name. Keys the item lacks keep their initial value.
func prefill(def metadata.EntityDef, item Record) Record {
	data := def.InitialFormData.Clone()
	for _, f := range def.Fields {
		for _, p := range f.FormPaths() {
			if v, ok := item.Get(p); ok {
				data.Set(p, v)
			}
		}
	}
	return data
}

// payload keeps only the editable schema fields of submitted data.
func payload(def metadata.EntityDef, data Record) Record {
	out := make(Record, len(def.Fields))
	for _, f := range def.Fields {
		if f.ReadOnly {
			continue
		}
		for _, p := range f.FormPaths() {
			if v, ok := data.Get(p); ok {
				out.Set(p, v)
			} else if v, ok := def.InitialFormData.Get(p); ok {
				out.Set(p, v)
			}
		}
	}
	return out
}

// checkRequired applies "required" semantics of an HTML form: a value must
// be present and non-empty. Numbers and booleans only need to be present.
// Localized fields require the default language variant.
func checkRequired(v *validator.Validate, def metadata.EntityDef, data Record) error {
	for _, f := range def.Fields {
		if !f.Required || f.ReadOnly {
			continue
		}
		path := f.Name
		label := f.Label
		if f.Localized {
			path = metadata.LocalizedPath(f.Name, lang.Default)
			label += " (" + strings.ToUpper(lang.Default.String()) + ")"
		}

		val, ok := data.Get(path)
		if !ok || val == nil {
			return apperror.NewRequired(path, label)
		}

		var tag string
		switch f.Type {
		case metadata.TypeBoolean:
			continue
		case metadata.TypeNumber:
			s, isString := val.(string)
			if !isString {
				continue
			}
			val, tag = strings.TrimSpace(s), "required"
		case metadata.TypeMultiselect:
			tag = "required,min=1"
		case metadata.TypeImage:
			s, isString := val.(string)
			if !isString {
				// An attached upload.
				continue
			}
			val, tag = strings.TrimSpace(s), "required"
		case metadata.TypeString:
			if s, isString := val.(string); isString {
				val = strings.TrimSpace(s)
			}
			tag = "required"
		default:
			tag = "required"
		}

		if err := v.Var(val, tag); err != nil {
			return apperror.NewRequired(path, label).WithCause(err)
		}
	}
	return nil
}
