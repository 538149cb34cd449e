// Package metadata holds the schema registry: model definitions parsed at
// startup from a YAML document, plus the atom set describing elementary field
// types. Registry and models are read-only after registration, so concurrent
// requests share them without locking.
package metadata

import (
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// Base field names every model carries automatically.
const (
	FieldID     = "id"
	FieldCtime  = "ctime"
	FieldMtime  = "mtime"
	FieldActive = "active"
)

// FieldDef describes one field of a model.
type FieldDef struct {
	Name     string `yaml:"name"`
	Label    string `yaml:"label"`
	Type     string `yaml:"type"`
	Ref      string `yaml:"ref"`      // target model, for type "ref"
	Multiple bool   `yaml:"multiple"` // list-valued field
	Optional bool   `yaml:"optional"`
	Hidden   bool   `yaml:"hidden"`
	Indexed  bool   `yaml:"indexed"`
	Auto     bool   `yaml:"-"` // maintained by the framework, not the form

	// Widget hints, defaulted from the atom when empty.
	Control  string `yaml:"control"`
	FormType string `yaml:"formtype"`
}

// ModelDef describes a registered model. Field order is significant: it is
// the display order of the render tree.
type ModelDef struct {
	Name      string
	Label     string
	TableName string
	Fields    []FieldDef

	byName map[string]int
	schema *gojsonschema.Schema // compiled at registration, see validate.go
}

// Field returns the definition of a named field.
func (d *ModelDef) Field(name string) (FieldDef, bool) {
	i, ok := d.byName[name]
	if !ok {
		return FieldDef{}, false
	}
	return d.Fields[i], true
}

// HasField reports whether the model declares the field.
func (d *ModelDef) HasField(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// FieldNames returns all field names in declaration order.
func (d *ModelDef) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// IndexedFields returns the fields backed by an engine index. The id field is
// always indexed. Sorting on anything else is permitted but may cost a full
// scan; that trade-off belongs to the backing store, not to the translator.
func (d *ModelDef) IndexedFields() []string {
	out := []string{FieldID}
	for _, f := range d.Fields {
		if f.Indexed && f.Name != FieldID {
			out = append(out, f.Name)
		}
	}
	return out
}

// Registry stores model definitions. Construct once, pass by reference; it is
// never mutated after startup.
type Registry struct {
	atoms  *AtomSet
	models map[string]*ModelDef
	order  []string
}

// NewRegistry creates an empty registry bound to an atom set.
func NewRegistry(atoms *AtomSet) *Registry {
	return &Registry{
		atoms:  atoms,
		models: make(map[string]*ModelDef),
	}
}

// Atoms returns the atom set the registry was built with.
func (r *Registry) Atoms() *AtomSet {
	return r.atoms
}

// Register finalizes and stores a model definition: base fields are
// prepended, widget hints defaulted from the atoms, the validation schema
// compiled. Registration order is preserved for List.
func (r *Registry) Register(def *ModelDef) error {
	if def.Name == "" {
		return fmt.Errorf("model must have a name")
	}
	if _, dup := r.models[def.Name]; dup {
		return fmt.Errorf("model %q registered twice", def.Name)
	}
	if def.Label == "" {
		def.Label = def.Name
	}
	if def.TableName == "" {
		def.TableName = def.Name
	}

	fields := append(baseFields(), def.Fields...)
	def.Fields = fields
	def.byName = make(map[string]int, len(fields))
	for i := range def.Fields {
		f := &def.Fields[i]
		if _, seen := def.byName[f.Name]; seen {
			return fmt.Errorf("model %q: duplicate field %q", def.Name, f.Name)
		}
		atom, ok := r.atoms.Get(f.Type)
		if !ok {
			return fmt.Errorf("model %q: field %q has unknown type %q", def.Name, f.Name, f.Type)
		}
		if f.Type == "ref" && f.Ref == "" {
			return fmt.Errorf("model %q: ref field %q names no target model", def.Name, f.Name)
		}
		if f.Label == "" {
			f.Label = f.Name
		}
		if f.Control == "" {
			f.Control = atom.Control
		}
		if f.FormType == "" {
			f.FormType = atom.FormType
		}
		def.byName[f.Name] = i
	}

	schema, err := buildSchema(def, r.atoms)
	if err != nil {
		return fmt.Errorf("model %q: compile validation schema: %w", def.Name, err)
	}
	def.schema = schema
	r.models[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Get returns a registered model.
func (r *Registry) Get(name string) (*ModelDef, bool) {
	d, ok := r.models[name]
	return d, ok
}

// List returns all models in registration order.
func (r *Registry) List() []*ModelDef {
	out := make([]*ModelDef, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.models[name])
	}
	return out
}

// Names returns the registered model names, sorted.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

func baseFields() []FieldDef {
	return []FieldDef{
		{Name: FieldID, Label: "Id", Type: "string", Auto: true, Hidden: true, Indexed: true},
		{Name: FieldCtime, Label: "Created", Type: "datetime", Auto: true},
		{Name: FieldMtime, Label: "Modified", Type: "datetime", Auto: true},
		{Name: FieldActive, Label: "Active", Type: "boolean", Auto: true, Hidden: true},
	}
}
