package metadata

import (
	"fmt"
	"strings"

	"vinoteka/internal/core/apperror"
)

// Validate checks the structural invariants of a definition:
// field names are unique and present in InitialFormData, columns name a
// field or "id", and select fields declare where their options come from.
func (d EntityDef) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if d.Name == "" {
		addf("name is empty")
	}
	if !strings.HasPrefix(d.Collection, "/") {
		addf("collection %q must start with /", d.Collection)
	}

	seen := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			addf("field with empty name")
			continue
		}
		if _, dup := seen[f.Name]; dup {
			addf("field %q declared twice", f.Name)
		}
		seen[f.Name] = struct{}{}

		if !f.Type.Valid() {
			addf("field %q: unknown type %q", f.Name, f.Type)
		}
		if f.Type.HasOptions() && (f.Options == nil || f.Options.Endpoint == "") {
			addf("field %q: %s needs an options endpoint", f.Name, f.Type)
		}
		if f.Shares && f.Type != TypeMultiselect {
			addf("field %q: shares only apply to multiselect", f.Name)
		}
		for _, p := range f.FormPaths() {
			if !d.InitialFormData.Has(p) {
				addf("field %q: initial form data has no %q", f.Name, p)
			}
		}
	}

	for _, col := range d.Columns {
		if col == "id" {
			continue
		}
		if _, ok := seen[col]; !ok {
			addf("column %q is not a field", col)
		}
	}

	if len(problems) > 0 {
		return apperror.NewValidation(fmt.Sprintf("entity %q: %s", d.Name, strings.Join(problems, "; "))).
			WithDetail("entity", d.Name)
	}
	return nil
}
