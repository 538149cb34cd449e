package item

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"publica/internal/metadata"
)

func coerceModel(t *testing.T) (*metadata.ModelDef, *metadata.AtomSet) {
	t.Helper()
	atoms := metadata.NewAtomSet()
	reg := metadata.NewRegistry(atoms)
	err := reg.Register(&metadata.ModelDef{
		Name: "product",
		Fields: []metadata.FieldDef{
			{Name: "title", Type: "string"},
			{Name: "stock", Type: "int", Optional: true},
			{Name: "weight", Type: "float", Optional: true},
			{Name: "price", Type: "decimal", Optional: true},
			{Name: "released", Type: "date", Optional: true},
			{Name: "visible", Type: "boolean", Optional: true},
			{Name: "tags", Type: "string", Multiple: true, Optional: true},
		},
	})
	require.NoError(t, err)
	def, _ := reg.Get("product")
	return def, atoms
}

func TestCoerce(t *testing.T) {
	def, atoms := coerceModel(t)

	rec, err := coerce(def, atoms, map[string]any{
		"title":    "Widget",
		"stock":    float64(7), // JSON numbers decode as float64
		"weight":   2.5,
		"price":    "19.90",
		"released": "2024-03-01T00:00:00Z",
		"visible":  true,
		"tags":     []any{"new", "sale"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Widget", rec["title"])
	assert.Equal(t, int64(7), rec["stock"])
	assert.Equal(t, 2.5, rec["weight"])
	assert.Equal(t, "19.9", rec["price"]) // canonical decimal form
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rec["released"])
	assert.Equal(t, true, rec["visible"])
	assert.Equal(t, []any{"new", "sale"}, rec["tags"])
}

func TestCoerce_DropsUnknownAndAutoFields(t *testing.T) {
	def, atoms := coerceModel(t)

	rec, err := coerce(def, atoms, map[string]any{
		"title":  "Widget",
		"id":     "forged",
		"ctime":  "2000-01-01T00:00:00Z",
		"active": false,
		"bogus":  1,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any(rec), map[string]any{"title": "Widget"})
}

func TestCoerce_Errors(t *testing.T) {
	def, atoms := coerceModel(t)

	tests := []struct {
		name string
		doc  map[string]any
	}{
		{name: "fractional int", doc: map[string]any{"stock": 7.5}},
		{name: "scalar for list field", doc: map[string]any{"tags": "new"}},
		{name: "bad decimal", doc: map[string]any{"price": "cheap"}},
		{name: "bad date", doc: map[string]any{"released": "tomorrow"}},
		{name: "bad boolean string", doc: map[string]any{"visible": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := coerce(def, atoms, tt.doc)
			assert.Error(t, err)
		})
	}
}

func TestCoerce_StringForms(t *testing.T) {
	def, atoms := coerceModel(t)

	rec, err := coerce(def, atoms, map[string]any{
		"stock":    "12",
		"visible":  "yes",
		"released": "2024-03-01", // bare date falls back to the atom layout
	})
	require.NoError(t, err)
	assert.EqualValues(t, 12, rec["stock"])
	assert.Equal(t, true, rec["visible"])
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), rec["released"])
}

func TestCoerce_NilValuesAreDropped(t *testing.T) {
	def, atoms := coerceModel(t)
	rec, err := coerce(def, atoms, map[string]any{"title": "Widget", "stock": nil})
	require.NoError(t, err)
	_, present := rec["stock"]
	assert.False(t, present)
}
