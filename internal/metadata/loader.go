package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads one YAML entity definition. Name defaults to the file
// name, Collection to "/<name>", Label to the name, Columns to id plus
// every field, and InitialFormData to the zero value of every field.
func LoadFile(path string) (EntityDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EntityDef{}, err
	}

	var def EntityDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return EntityDef{}, fmt.Errorf("%s: %w", path, err)
	}

	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if def.Collection == "" {
		def.Collection = "/" + def.Name
	}
	if def.Label == "" {
		def.Label = guessLabel(def.Name)
	}
	for i := range def.Fields {
		f := &def.Fields[i]
		if f.Type == "" {
			f.Type = TypeString
		}
		if f.Label == "" {
			f.Label = guessLabel(f.Name)
		}
	}
	if len(def.Columns) == 0 {
		def.Columns = append(def.Columns, "id")
		for _, f := range def.Fields {
			if !f.Localized {
				def.Columns = append(def.Columns, f.Name)
			}
		}
	}

	initial := BuildInitialFormData(def.Fields)
	for k, v := range def.InitialFormData {
		initial[k] = v
	}
	def.InitialFormData = initial
	def.Source = SourceFile

	if err := def.Validate(); err != nil {
		return EntityDef{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// LoadDir reads every *.yaml / *.yml file of dir, sorted by file name.
func LoadDir(dir string) ([]EntityDef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && isSchemaFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	defs := make([]EntityDef, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, n := range names {
		path := filepath.Join(dir, n)
		def, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("%s: entity %q already defined in %s", path, def.Name, prev)
		}
		seen[def.Name] = path
		defs = append(defs, def)
	}
	return defs, nil
}

func isSchemaFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
