package metadata

import (
	"fmt"
	"sort"
	"sync"
)

// FieldType defines how a field is rendered and parsed.
type FieldType string

const (
	TypeString      FieldType = "string"
	TypeNumber      FieldType = "number" // int or decimal
	TypeBoolean     FieldType = "boolean"
	TypeSelect      FieldType = "select"      // single foreign-key id
	TypeMultiselect FieldType = "multiselect" // list of foreign-key ids
	TypeImage       FieldType = "image"       // file upload, stored externally
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeSelect, TypeMultiselect, TypeImage:
		return true
	}
	return false
}

// HasOptions reports whether values of t are resolved against a reference list.
func (t FieldType) HasOptions() bool {
	return t == TypeSelect || t == TypeMultiselect
}

// Source tells where a definition came from. Reloads replace definitions
// of one source only.
type Source string

const (
	SourceStruct Source = "struct"
	SourceFile   Source = "file"
)

// OptionsSource declares the reference list for a select field.
type OptionsSource struct {
	Endpoint   string `json:"endpoint" yaml:"endpoint"`
	ValueField string `json:"valueField,omitempty" yaml:"value_field"` // default "id"
	LabelField string `json:"labelField,omitempty" yaml:"label_field"` // default "name"
}

// Value returns the value key, "id" when unset.
func (o OptionsSource) Value() string {
	if o.ValueField == "" {
		return "id"
	}
	return o.ValueField
}

// Label returns the label key, "name" when unset.
func (o OptionsSource) Label() string {
	if o.LabelField == "" {
		return "name"
	}
	return o.LabelField
}

// FieldDef describes one form/table field.
type FieldDef struct {
	Name      string         `json:"name" yaml:"name"`
	Label     string         `json:"label,omitempty" yaml:"label"`
	Type      FieldType      `json:"type" yaml:"type"`
	Required  bool           `json:"required,omitempty" yaml:"required"`
	ReadOnly  bool           `json:"readOnly,omitempty" yaml:"read_only"`
	Localized bool           `json:"localized,omitempty" yaml:"localized"` // one value per language
	Shares    bool           `json:"shares,omitempty" yaml:"shares"`       // multiselect with a percentage per id
	Options   *OptionsSource `json:"options,omitempty" yaml:"options"`
	Accept    string         `json:"accept,omitempty" yaml:"accept"` // image mime filter
}

// EntityDef describes a managed collection.
type EntityDef struct {
	Name            string     `json:"name" yaml:"name"`
	Label           string     `json:"label,omitempty" yaml:"label"`
	Collection      string     `json:"collection" yaml:"collection"` // API path, e.g. "/categories"
	Fields          []FieldDef `json:"fields" yaml:"fields"`
	Columns         []string   `json:"columns" yaml:"columns"`
	InitialFormData Record     `json:"initialFormData" yaml:"initial_form_data"`
	Searchable      bool       `json:"searchable,omitempty" yaml:"searchable"`
	Paged           bool       `json:"paged,omitempty" yaml:"paged"`
	Source          Source     `json:"source" yaml:"-"`
}

// Field returns the field named name.
func (d EntityDef) Field(name string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// OptionFields returns the select and multiselect fields.
func (d EntityDef) OptionFields() []FieldDef {
	var out []FieldDef
	for _, f := range d.Fields {
		if f.Type.HasOptions() {
			out = append(out, f)
		}
	}
	return out
}

// Registry stores entity definitions. Safe for concurrent use; file
// definitions may be reloaded while requests read them.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]EntityDef
}

func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]EntityDef),
	}
}

// Register validates def and stores it, replacing a definition with the same name.
func (r *Registry) Register(def EntityDef) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[def.Name] = def
	return nil
}

// MustRegister is Register for static definitions known at startup.
func (r *Registry) MustRegister(def EntityDef) {
	if err := r.Register(def); err != nil {
		panic(fmt.Sprintf("metadata: register %s: %v", def.Name, err))
	}
}

// ReplaceSource swaps every definition of src for defs atomically. Nothing
// changes when any of defs is invalid.
func (r *Registry) ReplaceSource(src Source, defs []EntityDef) error {
	for i := range defs {
		defs[i].Source = src
		if err := defs[i].Validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, def := range r.entities {
		if def.Source == src {
			delete(r.entities, name)
		}
	}
	for _, def := range defs {
		if existing, ok := r.entities[def.Name]; ok && existing.Source != src {
			// Struct definitions win over files with the same name.
			continue
		}
		r.entities[def.Name] = def
	}
	return nil
}

func (r *Registry) Get(name string) (EntityDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entities[name]
	return d, ok
}

// List returns all definitions ordered by name.
func (r *Registry) List() []EntityDef {
	r.mu.RLock()
	list := make([]EntityDef, 0, len(r.entities))
	for _, def := range r.entities {
		list = append(list, def)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
