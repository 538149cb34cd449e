package mapping

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"publica/internal/core/apperror"
	"publica/internal/infrastructure/storage"
	"publica/internal/metadata"
)

func personModel(t *testing.T) (*metadata.ModelDef, *metadata.AtomSet) {
	t.Helper()
	atoms := metadata.NewAtomSet()
	reg := metadata.NewRegistry(atoms)
	err := reg.Register(&metadata.ModelDef{
		Name: "person",
		Fields: []metadata.FieldDef{
			{Name: "name", Type: "string"},
			{Name: "birthdate", Type: "date", Optional: true},
			{Name: "age", Type: "int", Optional: true},
			{Name: "mentor", Type: "ref", Ref: "person", Optional: true},
			{Name: "tags", Type: "string", Multiple: true, Optional: true},
		},
	})
	require.NoError(t, err)
	def, _ := reg.Get("person")
	return def, atoms
}

func personRecord() storage.RawRecord {
	return storage.RawRecord{
		"id":        "p1",
		"ctime":     time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		"mtime":     time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC),
		"active":    true,
		"name":      "Jan",
		"birthdate": time.Date(1980, 6, 15, 0, 0, 0, 0, time.UTC),
		"age":       44,
		"mentor":    "p0",
		"tags":      []any{"editor", "author"},
	}
}

// Dense and sparse tables are a size/speed trade-off; their output must be
// indistinguishable.
func TestDenseAndSparseProduceIdenticalOutput(t *testing.T) {
	def, atoms := personModel(t)
	rec := personRecord()

	dense, err := NewDense(def, atoms, nil)
	require.NoError(t, err)
	sparse, err := NewSparse(def, atoms, nil)
	require.NoError(t, err)

	fromDense, err := dense.Map(rec)
	require.NoError(t, err)
	fromSparse, err := sparse.Map(rec)
	require.NoError(t, err)

	denseJSON, err := json.Marshal(fromDense)
	require.NoError(t, err)
	sparseJSON, err := json.Marshal(fromSparse)
	require.NoError(t, err)
	assert.Equal(t, string(denseJSON), string(sparseJSON))
}

func TestMap_DisplayValues(t *testing.T) {
	def, atoms := personModel(t)
	table, err := NewDense(def, atoms, nil)
	require.NoError(t, err)

	out, err := table.Map(personRecord())
	require.NoError(t, err)

	assert.Equal(t, "Jan", out["name"])
	assert.Equal(t, "1980-06-15", out["birthdate"])
	assert.Equal(t, "44", out["age"])
	assert.Equal(t, "yes", out["active"])
	assert.Equal(t, "2024-02-01 09:30", out["mtime"])
	assert.Equal(t, []any{"editor", "author"}, out["tags"])
}

func TestMap_RefWithoutResolver(t *testing.T) {
	def, atoms := personModel(t)
	table, err := NewDense(def, atoms, nil)
	require.NoError(t, err)

	out, err := table.Map(personRecord())
	require.NoError(t, err)
	assert.Equal(t, Ref{Raw: "p0", Label: "p0", Href: "/person/p0"}, out["mentor"])
}

func TestMap_RefWithResolver(t *testing.T) {
	def, atoms := personModel(t)
	resolve := func(model, id string) string { return model + ":" + id }
	table, err := NewDense(def, atoms, resolve)
	require.NoError(t, err)

	out, err := table.Map(personRecord())
	require.NoError(t, err)
	assert.Equal(t, Ref{Raw: "p0", Label: "person:p0", Href: "/person/p0"}, out["mentor"])
}

func TestMap_UndeclaredFieldsPassThrough(t *testing.T) {
	def, atoms := personModel(t)
	table, err := NewDense(def, atoms, nil)
	require.NoError(t, err)

	out, err := table.Map(storage.RawRecord{"id": "p1", "legacy": 7})
	require.NoError(t, err)
	assert.Equal(t, 7, out["legacy"])
}

func TestMap_ListFieldHoldingScalar(t *testing.T) {
	def, atoms := personModel(t)
	table, err := NewDense(def, atoms, nil)
	require.NoError(t, err)

	_, err = table.Map(storage.RawRecord{"id": "p1", "tags": "editor"})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInternal))
}

func TestMap_NilRecord(t *testing.T) {
	def, atoms := personModel(t)
	table, err := NewDense(def, atoms, nil)
	require.NoError(t, err)
	_, err = table.Map(nil)
	assert.Error(t, err)
}

func TestSparseSkipsIdentityFields(t *testing.T) {
	def, atoms := personModel(t)
	sparse, err := NewSparse(def, atoms, nil)
	require.NoError(t, err)
	// strings pass through untransformed, so the sparse table has no entry
	assert.NotContains(t, sparse.funcs, "name")
	assert.Contains(t, sparse.funcs, "birthdate")
	assert.Contains(t, sparse.funcs, "mentor")
}
