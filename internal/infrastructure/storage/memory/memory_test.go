package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"publica/internal/core/apperror"
	"publica/internal/domain/cursor"
	"publica/internal/domain/filter"
	"publica/internal/infrastructure/storage"
	"publica/internal/metadata"
)

func personModel(t *testing.T) *metadata.ModelDef {
	t.Helper()
	reg := metadata.NewRegistry(metadata.NewAtomSet())
	err := reg.Register(&metadata.ModelDef{
		Name: "person",
		Fields: []metadata.FieldDef{
			{Name: "name", Type: "string", Indexed: true},
			{Name: "birthplace", Type: "string", Indexed: true, Optional: true},
			{Name: "birthdate", Type: "date", Indexed: true, Optional: true},
			{Name: "age", Type: "int", Optional: true},
			{Name: "tags", Type: "string", Multiple: true, Optional: true},
		},
	})
	require.NoError(t, err)
	def, ok := reg.Get("person")
	require.True(t, ok)
	return def
}

// seedPersons inserts n persons; the first 95 are born in Waspik.
func seedPersons(t *testing.T, e *Engine, def *metadata.ModelDef, n int) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		birthplace := "Elsewhere"
		if i < 95 {
			birthplace = "Waspik"
		}
		rec := storage.RawRecord{
			metadata.FieldID:     fmt.Sprintf("person-%04d", i),
			metadata.FieldCtime:  base,
			metadata.FieldMtime:  base,
			metadata.FieldActive: true,
			"name":               fmt.Sprintf("Person %04d", i),
			"birthplace":         birthplace,
			"birthdate":          base.AddDate(0, 0, i*20),
			"age":                20 + i%60,
			"tags":               []any{"member"},
		}
		_, err := e.Insert(ctx, def, rec)
		require.NoError(t, err)
	}
}

func findPage(t *testing.T, e *Engine, def *metadata.ModelDef, f filter.Filter, cur cursor.Cursor) ([]storage.RawRecord, cursor.Cursor) {
	t.Helper()
	ctx := context.Background()
	count, err := e.Count(ctx, def, f)
	require.NoError(t, err)
	cur = cur.Advance(count)
	q, err := e.Translate(def, f, cur)
	require.NoError(t, err)
	recs, err := e.Execute(ctx, q)
	require.NoError(t, err)
	return recs, cur
}

func TestFind_WaspikScenario(t *testing.T) {
	def := personModel(t)
	e := New()
	seedPersons(t, e, def, 1000)

	f := filter.New("birthplace", filter.Eq, "Waspik")
	cur := cursor.Cursor{Limit: 10, Sort: "name"}

	recs, cur := findPage(t, e, def, f, cur)
	require.Len(t, recs, 10)
	assert.Equal(t, 95, cur.Count)
	assert.False(t, cur.HasPrevious())
	assert.True(t, cur.HasNext())
	for _, rec := range recs {
		assert.Equal(t, "Waspik", rec["birthplace"])
	}
}

func TestFind_PaginationPartition(t *testing.T) {
	def := personModel(t)
	e := New()
	seedPersons(t, e, def, 1000)

	f := filter.New("birthplace", filter.Eq, "Waspik")
	cur := cursor.Cursor{Limit: 10, Sort: "name"}

	seen := make(map[string]bool)
	pages := 0
	for {
		recs, advanced := findPage(t, e, def, f, cur)
		pages++
		for _, rec := range recs {
			id := rec[metadata.FieldID].(string)
			assert.False(t, seen[id], "item %s served twice", id)
			seen[id] = true
		}
		if !advanced.HasNext() {
			break
		}
		cur = advanced.Next()
	}
	// pages partition the matches: no overlap, nothing skipped
	assert.Equal(t, 95, len(seen))
	assert.Equal(t, 10, pages)
}

func TestFind_CursorSymmetry(t *testing.T) {
	def := personModel(t)
	e := New()
	seedPersons(t, e, def, 200)

	f := filter.New("birthplace", filter.Eq, "Waspik")
	start := cursor.Cursor{Skip: 40, Limit: 10, Sort: "name"}

	page1, cur1 := findPage(t, e, def, f, start)
	_, cur2 := findPage(t, e, def, f, cur1.Next())
	page3, _ := findPage(t, e, def, f, cur2.Previous())

	require.Equal(t, len(page1), len(page3))
	for i := range page1 {
		assert.Equal(t, page1[i][metadata.FieldID], page3[i][metadata.FieldID])
	}
}

func TestFind_BetweenBoundaries(t *testing.T) {
	def := personModel(t)
	e := New()
	ctx := context.Background()
	for i, age := range []int{17, 18, 40, 65, 66} {
		_, err := e.Insert(ctx, def, storage.RawRecord{
			metadata.FieldID: fmt.Sprintf("p%d", i),
			"age":            age,
		})
		require.NoError(t, err)
	}

	count, err := e.Count(ctx, def, filter.Range("age", 18, 65))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestFind_BetweenDateBoundaries(t *testing.T) {
	def := personModel(t)
	e := New()
	ctx := context.Background()
	for i, day := range []string{"1979-12-31", "1980-01-01", "1985-06-15", "1989-12-31", "1990-01-01"} {
		d, err := time.Parse("2006-01-02", day)
		require.NoError(t, err)
		_, err = e.Insert(ctx, def, storage.RawRecord{
			metadata.FieldID: fmt.Sprintf("p%d", i),
			"birthdate":      d,
		})
		require.NoError(t, err)
	}

	count, err := e.Count(ctx, def, filter.Range("birthdate", "1980-01-01", "1989-12-31"))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestFind_SortUnindexedField(t *testing.T) {
	// sorting is not restricted to indexed fields; the cost trade-off
	// belongs to the engine
	def := personModel(t)
	e := New()
	seedPersons(t, e, def, 50)

	recs, _ := findPage(t, e, def, nil, cursor.Cursor{Limit: 50, Sort: "-age"})
	require.NotEmpty(t, recs)
	for i := 1; i < len(recs); i++ {
		prev := recs[i-1]["age"].(int)
		curr := recs[i]["age"].(int)
		assert.GreaterOrEqual(t, prev, curr)
	}
}

func TestFind_SkipBeyondEnd(t *testing.T) {
	def := personModel(t)
	e := New()
	seedPersons(t, e, def, 20)

	q, err := e.Translate(def, nil, cursor.Cursor{Skip: 100, Limit: 10})
	require.NoError(t, err)
	recs, err := e.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestGet_NotFound(t *testing.T) {
	def := personModel(t)
	e := New()
	_, err := e.Get(context.Background(), def, "missing")
	assert.True(t, apperror.IsNotFound(err))
}

func TestInsert_DuplicateID(t *testing.T) {
	def := personModel(t)
	e := New()
	ctx := context.Background()
	rec := storage.RawRecord{metadata.FieldID: "p1", "name": "Jan"}
	_, err := e.Insert(ctx, def, rec)
	require.NoError(t, err)
	report, err := e.Insert(ctx, def, rec)
	require.Error(t, err)
	assert.Equal(t, storage.OutcomeNotWritten, report.Outcome)
}

func TestPartialUpdate_TouchesOnlyGivenFields(t *testing.T) {
	def := personModel(t)
	e := New()
	ctx := context.Background()
	_, err := e.Insert(ctx, def, storage.RawRecord{
		metadata.FieldID: "p1",
		"name":           "Jan",
		"birthplace":     "Waspik",
		"age":            40,
		"tags":           []any{"member"},
	})
	require.NoError(t, err)

	report, err := e.PartialUpdate(ctx, def, "p1", storage.RawRecord{
		"tags": []any{"member", "donor"},
	})
	require.NoError(t, err)
	assert.Equal(t, storage.OutcomeUpdated, report.Outcome)

	got, err := e.Get(ctx, def, "p1")
	require.NoError(t, err)
	assert.Equal(t, []any{"member", "donor"}, got["tags"])
	assert.Equal(t, "Jan", got["name"])
	assert.Equal(t, "Waspik", got["birthplace"])
	assert.Equal(t, 40, got["age"])
}

func TestPartialUpdate_MissingDocument(t *testing.T) {
	def := personModel(t)
	e := New()
	report, err := e.PartialUpdate(context.Background(), def, "ghost", storage.RawRecord{"age": 1})
	require.NoError(t, err)
	assert.Equal(t, storage.OutcomeNotUpdated, report.Outcome)
	assert.EqualValues(t, 0, report.Matched)
}

func TestReplace_KeepsID(t *testing.T) {
	def := personModel(t)
	e := New()
	ctx := context.Background()
	_, err := e.Insert(ctx, def, storage.RawRecord{metadata.FieldID: "p1", "name": "Jan"})
	require.NoError(t, err)

	report, err := e.Replace(ctx, def, "p1", storage.RawRecord{"name": "Piet"})
	require.NoError(t, err)
	assert.Equal(t, storage.OutcomeUpdated, report.Outcome)

	got, err := e.Get(ctx, def, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got[metadata.FieldID])
	assert.Equal(t, "Piet", got["name"])
}

func TestDelete_RemovesAndReindexes(t *testing.T) {
	def := personModel(t)
	e := New()
	ctx := context.Background()
	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := e.Insert(ctx, def, storage.RawRecord{metadata.FieldID: id})
		require.NoError(t, err)
	}

	report, err := e.Delete(ctx, def, "p2")
	require.NoError(t, err)
	assert.Equal(t, storage.OutcomeDeleted, report.Outcome)

	_, err = e.Get(ctx, def, "p2")
	assert.True(t, apperror.IsNotFound(err))
	// later records remain reachable after the index shifts
	got, err := e.Get(ctx, def, "p3")
	require.NoError(t, err)
	assert.Equal(t, "p3", got[metadata.FieldID])
}

func TestExecute_RejectsForeignQuery(t *testing.T) {
	e := New()
	q := &storage.NativeQuery{Engine: storage.EngineSQLite, Collection: "person"}
	_, err := e.Execute(context.Background(), q)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeEngine))
}

func TestExecute_ReturnsCopies(t *testing.T) {
	def := personModel(t)
	e := New()
	ctx := context.Background()
	_, err := e.Insert(ctx, def, storage.RawRecord{metadata.FieldID: "p1", "name": "Jan"})
	require.NoError(t, err)

	recs, _ := findPage(t, e, def, nil, cursor.Cursor{Limit: 5})
	recs[0]["name"] = "mutated"

	got, err := e.Get(ctx, def, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Jan", got["name"])
}

func TestWrites_Counter(t *testing.T) {
	def := personModel(t)
	e := New()
	ctx := context.Background()
	assert.EqualValues(t, 0, e.Writes())
	_, err := e.Insert(ctx, def, storage.RawRecord{metadata.FieldID: "p1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, e.Writes())
}
