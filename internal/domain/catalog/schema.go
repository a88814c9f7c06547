package catalog

import (
	"errors"
	"fmt"
	"io/fs"

	"vinoteka/internal/metadata"
)

// models are the entities described by Go structs. A schema file with
// the same name does not replace them.
var models = []struct {
	model      any
	name       string
	collection string
	label      string
}{
	{Category{}, "categories", "/categories", "Category"},
	{Subcategory{}, "subcategories", "/subcategories", "Subcategory"},
	{Country{}, "countries", "/countries", "Country"},
	{Region{}, "regions", "/regions", "Region"},
	{Subregion{}, "subregions", "/subregions", "Subregion"},
	{Drink{}, "drinks", "/drinks", "Drink"},
	{Item{}, "items", "/items", "Item"},
}

// LoadRegistry registers the struct models and the schema files of dir.
// An empty or missing dir leaves only the struct models.
func LoadRegistry(dir string) (*metadata.Registry, error) {
	reg := metadata.NewRegistry()

	for _, m := range models {
		def, err := metadata.Inspect(m.model, m.name, m.collection)
		if err != nil {
			return nil, err
		}
		def.Label = m.label
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}

	if dir == "" {
		return reg, nil
	}
	defs, err := metadata.LoadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return reg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}
	if err := reg.ReplaceSource(metadata.SourceFile, defs); err != nil {
		return nil, fmt.Errorf("register schemas: %w", err)
	}
	return reg, nil
}
