package metadata

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"vinoteka/internal/core/id"
)

var (
	idType      = reflect.TypeOf(id.ID(0))
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// adminTag is the parsed form of an `admin:"..."` struct tag.
type adminTag struct {
	label     string
	typ       FieldType
	options   string
	required  bool
	readOnly  bool
	column    bool
	shares    bool
	accept    string
	localized []string
	skip      bool
}

func parseAdminTag(tag string) (adminTag, error) {
	var t adminTag
	if tag == "-" {
		t.skip = true
		return t, nil
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, _ := strings.Cut(part, "=")
		switch key {
		case "label":
			t.label = val
		case "type":
			t.typ = FieldType(val)
		case "options":
			t.options = val
		case "accept":
			t.accept = val
		case "localized":
			t.localized = strings.Split(val, "|")
		case "required":
			t.required = true
		case "readonly":
			t.readOnly = true
		case "column":
			t.column = true
		case "shares":
			t.shares = true
		default:
			return t, fmt.Errorf("unknown admin tag key %q", key)
		}
	}
	return t, nil
}

// Inspect builds an EntityDef from a struct whose fields carry `admin` tags.
// Fields without the tag are skipped. The "id" field never becomes a form
// field but may be a column.
func Inspect(entity any, name, collection string) (EntityDef, error) {
	t := reflect.TypeOf(entity)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return EntityDef{}, fmt.Errorf("metadata: inspect %s: not a struct", t)
	}

	if name == "" {
		name = strings.ToLower(t.Name())
	}

	def := EntityDef{
		Name:       name,
		Label:      guessLabel(t.Name()),
		Collection: collection,
		Fields:     make([]FieldDef, 0, t.NumField()),
		Columns:    make([]string, 0),
		Searchable: true,
		Source:     SourceStruct,
	}

	if err := inspectStruct(t, &def); err != nil {
		return EntityDef{}, fmt.Errorf("metadata: inspect %s: %w", t.Name(), err)
	}
	def.InitialFormData = BuildInitialFormData(def.Fields)

	return def, nil
}

// MustInspect is Inspect for static models.
func MustInspect(entity any, name, collection string) EntityDef {
	def, err := Inspect(entity, name, collection)
	if err != nil {
		panic(err)
	}
	return def
}

func inspectStruct(t reflect.Type, def *EntityDef) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.PkgPath != "" { // unexported
			continue
		}

		// Handle embedded structs (flattening)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := inspectStruct(field.Type, def); err != nil {
				return err
			}
			continue
		}

		raw, ok := field.Tag.Lookup("admin")
		if !ok {
			continue
		}
		tag, err := parseAdminTag(raw)
		if err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		if tag.skip {
			continue
		}

		name := jsonName(field)
		if name == "-" {
			continue
		}

		if len(tag.localized) > 0 {
			for _, leaf := range tag.localized {
				def.Fields = append(def.Fields, FieldDef{
					Name:      name + "." + leaf,
					Label:     guessLabel(leaf),
					Type:      TypeString,
					Required:  tag.required,
					Localized: true,
				})
			}
			continue
		}

		if tag.column {
			def.Columns = append(def.Columns, name)
		}
		if name == "id" {
			continue
		}

		fDef := FieldDef{
			Name:     name,
			Label:    tag.label,
			Type:     tag.typ,
			Required: tag.required,
			ReadOnly: tag.readOnly,
			Shares:   tag.shares,
			Accept:   tag.accept,
		}
		if fDef.Label == "" {
			fDef.Label = guessLabel(field.Name)
		}
		if fDef.Type == "" {
			fDef.Type = mapFieldType(field.Type)
		}
		if tag.options != "" {
			fDef.Options = &OptionsSource{Endpoint: tag.options}
		}
		if fDef.Type == TypeImage && fDef.Accept == "" {
			fDef.Accept = "image/*"
		}

		def.Fields = append(def.Fields, fDef)
	}
	return nil
}

func mapFieldType(t reflect.Type) FieldType {
	if t == decimalType {
		return TypeNumber
	}
	if t == idType {
		return TypeSelect
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Bool:
		return TypeBoolean
	case reflect.Slice:
		return TypeMultiselect
	}
	return TypeString
}

func jsonName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok {
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			return parts[0]
		}
	}
	// Fallback: snake_case
	var b strings.Builder
	for i, r := range field.Name {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// guessLabel splits CamelCase and snake_case names into words:
// "SubcategoryID" -> "Subcategory ID", "page_size" -> "Page size".
func guessLabel(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(runes[i-1]) && runes[i-1] != ' ' {
			b.WriteByte(' ')
		}
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
