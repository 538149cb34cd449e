package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelYAML = `
models:
  - name: person
    label: Person
    fields:
      - {name: name, type: string, label: Name, indexed: true}
      - {name: birthdate, type: date, label: Born, optional: true}
  - name: publication
    table: publications
    fields:
      - {name: title, type: string}
      - {name: author, type: ref, ref: person, optional: true}
`

func TestLoadYAML(t *testing.T) {
	reg := NewRegistry(NewAtomSet())
	require.NoError(t, LoadYAML([]byte(modelYAML), reg))

	var names []string
	for _, def := range reg.List() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"person", "publication"}, names)

	person, _ := reg.Get("person")
	assert.Equal(t, "Person", person.Label)
	name, _ := person.Field("name")
	assert.True(t, name.Indexed)
	assert.Equal(t, "Name", name.Label)

	pub, _ := reg.Get("publication")
	assert.Equal(t, "publications", pub.TableName)
	author, _ := pub.Field("author")
	assert.Equal(t, "person", author.Ref)
}

func TestLoadYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "malformed yaml", doc: "models: ["},
		{name: "no models", doc: "models: []"},
		{name: "bad field type", doc: "models:\n  - name: person\n    fields:\n      - {name: x, type: varchar}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(NewAtomSet())
			assert.Error(t, LoadYAML([]byte(tt.doc), reg))
		})
	}
}
