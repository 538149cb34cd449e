// Package mapping converts stored records into display documents. A Table
// binds each field to a mapping function; tables are built from the model
// definition in one of two layouts. A dense table carries an entry for every
// field, identity included; a sparse table only for the fields whose atom
// actually transforms values. Both layouts produce identical output, so the
// choice is a size/speed trade-off per model, not a semantic one.
package mapping

import (
	"fmt"

	"publica/internal/core/apperror"
	"publica/internal/infrastructure/storage"
	"publica/internal/metadata"
)

// Ref is the display form of an item cross-reference.
type Ref struct {
	Raw   string `json:"raw"`
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Func maps one stored field value to its display value. The whole record is
// available for functions that need sibling fields.
type Func func(value any, rec storage.RawRecord) any

// LabelResolver returns a human label for a referenced item. Nil falls back
// to the raw id.
type LabelResolver func(model, id string) string

// Table maps a record's fields for display. Fields without an entry pass
// through unchanged, which is what makes sparse tables equivalent to dense
// ones.
type Table struct {
	def   *metadata.ModelDef
	funcs map[string]Func
}

// Identity returns the value unchanged.
func Identity(value any, _ storage.RawRecord) any { return value }

// NewDense builds a table with an entry for every field of the model.
func NewDense(def *metadata.ModelDef, atoms *metadata.AtomSet, resolve LabelResolver) (*Table, error) {
	t := &Table{def: def, funcs: make(map[string]Func, len(def.Fields))}
	for _, f := range def.Fields {
		fn, err := fieldFunc(f, atoms, resolve)
		if err != nil {
			return nil, err
		}
		if fn == nil {
			fn = Identity
		}
		t.funcs[f.Name] = fn
	}
	return t, nil
}

// NewSparse builds a table carrying only the transforming fields.
func NewSparse(def *metadata.ModelDef, atoms *metadata.AtomSet, resolve LabelResolver) (*Table, error) {
	t := &Table{def: def, funcs: make(map[string]Func)}
	for _, f := range def.Fields {
		fn, err := fieldFunc(f, atoms, resolve)
		if err != nil {
			return nil, err
		}
		if fn != nil {
			t.funcs[f.Name] = fn
		}
	}
	return t, nil
}

// fieldFunc returns the mapping function for a field, or nil when the field
// needs no transformation.
func fieldFunc(f metadata.FieldDef, atoms *metadata.AtomSet, resolve LabelResolver) (Func, error) {
	if f.Type == "ref" {
		target := f.Ref
		return func(value any, _ storage.RawRecord) any {
			id, ok := value.(string)
			if !ok {
				return value
			}
			label := id
			if resolve != nil {
				label = resolve(target, id)
			}
			return Ref{Raw: id, Label: label, Href: "/" + target + "/" + id}
		}, nil
	}
	atom, ok := atoms.Get(f.Type)
	if !ok {
		return nil, fmt.Errorf("field %q: unknown atom %q", f.Name, f.Type)
	}
	if atom.Display == nil {
		return nil, nil
	}
	display := atom.Display
	return func(value any, _ storage.RawRecord) any {
		return display(value)
	}, nil
}

// Map produces the display document for one record. Fields keep their stored
// keys; list-valued fields are mapped element-wise; fields the model does
// not declare pass through untouched.
func (t *Table) Map(rec storage.RawRecord) (storage.RawRecord, error) {
	if rec == nil {
		return nil, apperror.NewInternal(fmt.Errorf("mapping a nil record"))
	}
	out := make(storage.RawRecord, len(rec))
	for name, value := range rec {
		fn, ok := t.funcs[name]
		if !ok {
			out[name] = value
			continue
		}
		f, _ := t.def.Field(name)
		if f.Multiple {
			list, ok := value.([]any)
			if !ok {
				return nil, apperror.NewInternal(fmt.Errorf("field %q: list-valued field holds %T", name, value))
			}
			mapped := make([]any, len(list))
			for i, el := range list {
				mapped[i] = fn(el, rec)
			}
			out[name] = mapped
			continue
		}
		out[name] = fn(value, rec)
	}
	return out, nil
}

// Model returns the model definition the table was built for.
func (t *Table) Model() *metadata.ModelDef { return t.def }
