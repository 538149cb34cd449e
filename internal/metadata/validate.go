package metadata

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"publica/internal/core/apperror"
)

// buildSchema compiles a JSON Schema from the model definition. Auto fields
// are optional (the framework fills them in), everything else not marked
// optional is required. Extra properties are tolerated, matching the lenient
// validation of stored documents fresh from an engine.
func buildSchema(def *ModelDef, atoms *AtomSet) (*gojsonschema.Schema, error) {
	properties := make(map[string]any, len(def.Fields))
	var required []string

	for _, f := range def.Fields {
		atom, _ := atoms.Get(f.Type)
		prop := map[string]any{"type": atom.JSONType}
		if atom.Format != "" {
			prop["format"] = atom.Format
		}
		if f.Multiple {
			prop = map[string]any{"type": "array", "items": prop}
		}
		properties[f.Name] = prop
		if !f.Optional && !f.Auto {
			required = append(required, f.Name)
		}
	}

	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
}

// Validate checks a document against the model's schema. A failing document
// is never sent to a storage engine; the error carries a summary of the
// offending document and every field error.
func (d *ModelDef) Validate(doc map[string]any) error {
	result, err := d.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("validate %s document: %w", d.Name, err))
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, fieldErr := range result.Errors() {
		details = append(details, fieldErr.String())
	}
	return apperror.NewValidation(fmt.Sprintf("%s document does not validate", d.Name)).
		WithDetail("errors", details).
		WithDetail("document", summarize(doc))
}

// summarize renders a short per-field view of a document for error reports.
func summarize(doc map[string]any) string {
	parts := make([]string, 0, len(doc))
	for key, value := range doc {
		s := fmt.Sprintf("%v", value)
		if len(s) > 40 {
			s = s[:37] + "..."
		}
		parts = append(parts, key+"="+s)
	}
	return strings.Join(parts, ", ")
}
