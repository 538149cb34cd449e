package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_PrependsBaseFields(t *testing.T) {
	reg := NewRegistry(NewAtomSet())
	err := reg.Register(&ModelDef{
		Name:   "person",
		Fields: []FieldDef{{Name: "name", Type: "string"}},
	})
	require.NoError(t, err)

	def, ok := reg.Get("person")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "ctime", "mtime", "active", "name"}, def.FieldNames())

	id, _ := def.Field(FieldID)
	assert.True(t, id.Auto)
	assert.True(t, id.Indexed)
	active, _ := def.Field(FieldActive)
	assert.Equal(t, "boolean", active.Type)
}

func TestRegister_DefaultsWidgetHintsFromAtom(t *testing.T) {
	reg := NewRegistry(NewAtomSet())
	err := reg.Register(&ModelDef{
		Name: "person",
		Fields: []FieldDef{
			{Name: "bio", Type: "memo"},
			{Name: "homepage", Type: "url", Control: "custom"},
		},
	})
	require.NoError(t, err)

	def, _ := reg.Get("person")
	bio, _ := def.Field("bio")
	assert.Equal(t, "textarea", bio.Control)
	assert.Equal(t, "bio", bio.Label)

	homepage, _ := def.Field("homepage")
	assert.Equal(t, "custom", homepage.Control) // explicit hint wins
	assert.Equal(t, "url", homepage.FormType)
}

func TestRegister_Defaults(t *testing.T) {
	reg := NewRegistry(NewAtomSet())
	require.NoError(t, reg.Register(&ModelDef{
		Name:   "person",
		Fields: []FieldDef{{Name: "name", Type: "string"}},
	}))
	def, _ := reg.Get("person")
	assert.Equal(t, "person", def.Label)
	assert.Equal(t, "person", def.TableName)
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  *ModelDef
	}{
		{
			name: "no model name",
			def:  &ModelDef{Fields: []FieldDef{{Name: "name", Type: "string"}}},
		},
		{
			name: "unknown atom",
			def:  &ModelDef{Name: "person", Fields: []FieldDef{{Name: "name", Type: "varchar"}}},
		},
		{
			name: "duplicate field",
			def: &ModelDef{Name: "person", Fields: []FieldDef{
				{Name: "name", Type: "string"},
				{Name: "name", Type: "string"},
			}},
		},
		{
			name: "field shadows a base field",
			def:  &ModelDef{Name: "person", Fields: []FieldDef{{Name: "id", Type: "string"}}},
		},
		{
			name: "ref without target",
			def:  &ModelDef{Name: "post", Fields: []FieldDef{{Name: "author", Type: "ref"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(NewAtomSet())
			assert.Error(t, reg.Register(tt.def))
		})
	}
}

func TestRegister_Twice(t *testing.T) {
	reg := NewRegistry(NewAtomSet())
	require.NoError(t, reg.Register(&ModelDef{
		Name:   "person",
		Fields: []FieldDef{{Name: "name", Type: "string"}},
	}))
	assert.Error(t, reg.Register(&ModelDef{
		Name:   "person",
		Fields: []FieldDef{{Name: "name", Type: "string"}},
	}))
}

func TestIndexedFields(t *testing.T) {
	reg := NewRegistry(NewAtomSet())
	require.NoError(t, reg.Register(&ModelDef{
		Name: "person",
		Fields: []FieldDef{
			{Name: "name", Type: "string", Indexed: true},
			{Name: "bio", Type: "memo"},
		},
	}))
	def, _ := reg.Get("person")
	assert.Equal(t, []string{"id", "name"}, def.IndexedFields())
}

func TestListKeepsRegistrationOrder(t *testing.T) {
	reg := NewRegistry(NewAtomSet())
	for _, name := range []string{"zebra", "apple", "mango"} {
		require.NoError(t, reg.Register(&ModelDef{
			Name:   name,
			Fields: []FieldDef{{Name: "name", Type: "string"}},
		}))
	}
	var listed []string
	for _, def := range reg.List() {
		listed = append(listed, def.Name)
	}
	assert.Equal(t, []string{"zebra", "apple", "mango"}, listed)
	assert.Equal(t, []string{"apple", "mango", "zebra"}, reg.Names())
}
