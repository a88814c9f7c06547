package metadata

import (
	"strings"

	"vinoteka/internal/core/lang"
)

// Record is the form-data shape of an entity: JSON object keys to values.
// Nested objects (per-language text) are addressed with dotted paths such
// as "localized.en.title".
type Record map[string]any

// Get returns the value at path.
func (r Record) Get(path string) (any, bool) {
	var cur any = map[string]any(r)
	for _, key := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Has reports whether path exists.
func (r Record) Has(path string) bool {
	_, ok := r.Get(path)
	return ok
}

// Set stores v at path, creating intermediate objects.
func (r Record) Set(path string, v any) {
	keys := strings.Split(path, ".")
	m := map[string]any(r)
	for _, key := range keys[:len(keys)-1] {
		next, ok := asMap(m[key])
		if !ok {
			next = make(map[string]any)
			m[key] = next
		}
		m = next
	}
	m[keys[len(keys)-1]] = v
}

// Clone returns a deep copy of nested objects and slices.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(cloneMap(r))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Record:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Record:
		return t, true
	}
	return nil, false
}

// LocalizedPath turns a localized field name ("localized.title") into the
// path of one language variant ("localized.en.title").
func LocalizedPath(field string, l lang.Language) string {
	group, leaf, ok := strings.Cut(field, ".")
	if !ok {
		return field + "." + l.String()
	}
	return group + "." + l.String() + "." + leaf
}

// FormPaths lists every form-data path f occupies: one per language for
// localized fields, the field name otherwise.
func (f FieldDef) FormPaths() []string {
	if !f.Localized {
		return []string{f.Name}
	}
	paths := make([]string, 0, len(lang.All))
	for _, l := range lang.All {
		paths = append(paths, LocalizedPath(f.Name, l))
	}
	return paths
}

// ZeroValue is the empty form value of a field type.
func (t FieldType) ZeroValue() any {
	switch t {
	case TypeNumber:
		return 0
	case TypeBoolean:
		return false
	case TypeSelect:
		return nil
	case TypeMultiselect:
		return []any{}
	}
	return ""
}

// BuildInitialFormData derives empty form data from fields.
func BuildInitialFormData(fields []FieldDef) Record {
	rec := make(Record, len(fields))
	for _, f := range fields {
		for _, p := range f.FormPaths() {
			rec.Set(p, f.Type.ZeroValue())
		}
	}
	return rec
}
