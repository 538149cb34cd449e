package item

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
	"publica/internal/infrastructure/storage/memory"
	"publica/internal/metadata"
	"publica/pkg/logger"
)

func newService(t *testing.T) (*Service, *memory.Engine) {
	t.Helper()
	reg := metadata.NewRegistry(metadata.NewAtomSet())
	err := reg.Register(&metadata.ModelDef{
		Name: "person",
		Fields: []metadata.FieldDef{
			{Name: "name", Type: "string", Indexed: true},
			{Name: "birthplace", Type: "string", Optional: true},
			{Name: "birthdate", Type: "date", Optional: true},
			{Name: "age", Type: "int", Optional: true},
			{Name: "tags", Type: "string", Multiple: true, Optional: true},
		},
	})
	require.NoError(t, err)

	store := memory.New()
	svc, err := NewService(reg, store, logger.Default(), Config{})
	require.NoError(t, err)
	require.NoError(t, svc.EnsureCollections(context.Background()))
	return svc, store
}

func mustCreate(t *testing.T, svc *Service, doc map[string]any) string {
	t.Helper()
	report, err := svc.Create(context.Background(), "person", doc)
	require.NoError(t, err)
	require.Equal(t, storage.OutcomeInserted, report.Outcome)
	return report.ID
}

func TestCreate_SetsAutoFields(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	before := time.Now().UTC()
	id := mustCreate(t, svc, map[string]any{"name": "Jan", "age": float64(44)})
	require.NotEmpty(t, id)

	rec, err := svc.Raw(ctx, "person", id)
	require.NoError(t, err)
	assert.Equal(t, id, rec["id"])
	assert.Equal(t, true, rec["active"])
	assert.EqualValues(t, 44, rec["age"]) // JSON float64 lands as an integer value

	ctime, ok := rec["ctime"].(time.Time)
	require.True(t, ok)
	assert.False(t, ctime.Before(before))
	assert.Equal(t, rec["ctime"], rec["mtime"])
}

func TestCreate_ValidationFailureNeverReachesEngine(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	report, err := svc.Create(ctx, "person", map[string]any{"age": float64(44)}) // name missing
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	assert.Equal(t, storage.OutcomeNotWritten, report.Outcome)
	assert.Equal(t, int64(0), store.Writes())

	_, err = svc.Create(ctx, "person", map[string]any{"name": "Jan", "age": "old"})
	require.Error(t, err)
	assert.Equal(t, int64(0), store.Writes())
}

func TestCreate_UnknownModel(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Create(context.Background(), "unicorn", map[string]any{"name": "x"})
	assert.True(t, apperror.IsNotFound(err))
}

func seedPeople(t *testing.T, svc *Service, n, fromWaspik int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		place := "Breda"
		if i < fromWaspik {
			place = "Waspik"
		}
		ids[i] = mustCreate(t, svc, map[string]any{
			"name":       fmt.Sprintf("P%03d", i),
			"birthplace": place,
		})
	}
	return ids
}

func TestFind_FiltersAndPaginates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	seedPeople(t, svc, 30, 12)

	cur := cursor.Cursor{
		Limit:  10,
		Sort:   "name",
		Filter: filter.New("birthplace", filter.Eq, "Waspik"),
	}
	tree, err := svc.Find(ctx, "person", cur)
	require.NoError(t, err)

	assert.Equal(t, 12, tree.Paging.Count)
	assert.Len(t, tree.Nodes, 10)
	assert.True(t, tree.Paging.HasNext)
	assert.False(t, tree.Paging.HasPrevious)

	next := cursor.Cursor{Skip: 0, Limit: 10, Dir: cursor.DirNext, Sort: "name",
		Filter: filter.New("birthplace", filter.Eq, "Waspik")}
	tree, err = svc.Find(ctx, "person", next)
	require.NoError(t, err)
	assert.Len(t, tree.Nodes, 2)
	assert.False(t, tree.Paging.HasNext)
	assert.True(t, tree.Paging.HasPrevious)
}

func TestFind_RejectsUnknownFilterField(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Find(context.Background(), "person", cursor.Cursor{
		Limit:  10,
		Filter: filter.New("shoe_size", filter.Eq, 43),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeFilterParse))
}

func TestDelete_IsSoft(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	seedPeople(t, svc, 3, 3)
	id := mustCreate(t, svc, map[string]any{"name": "Jan", "birthplace": "Waspik"})

	report, err := svc.Delete(ctx, "person", id)
	require.NoError(t, err)
	assert.Equal(t, storage.OutcomeDeleted, report.Outcome)

	// the document is still stored, flagged inactive
	rec, err := svc.Raw(ctx, "person", id)
	require.NoError(t, err)
	assert.Equal(t, false, rec["active"])

	// default listing hides it
	tree, err := svc.Find(ctx, "person", cursor.Cursor{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Paging.Count)

	// the include-inactive flag brings it back
	tree, err = svc.Find(ctx, "person", cursor.Cursor{Limit: 10, IncludeInactive: true})
	require.NoError(t, err)
	assert.Equal(t, 4, tree.Paging.Count)

	// deleting again reports, does not fail
	report, err = svc.Delete(ctx, "person", id)
	require.NoError(t, err)
	assert.Equal(t, storage.OutcomeDeleted, report.Outcome)
}

func TestUpdate_OnlyChangedFields(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, map[string]any{
		"name": "Jan", "birthplace": "Waspik", "tags": []any{"editor"},
	})
	created, err := svc.Raw(ctx, "person", id)
	require.NoError(t, err)

	report, err := svc.Update(ctx, "person", id, map[string]any{
		"name": "Jan", "birthplace": "Waspik", "tags": []any{"editor", "author"},
	})
	require.NoError(t, err)
	assert.Equal(t, storage.OutcomeUpdated, report.Outcome)

	rec, err := svc.Raw(ctx, "person", id)
	require.NoError(t, err)
	assert.Equal(t, []any{"editor", "author"}, rec["tags"])
	assert.Equal(t, "Waspik", rec["birthplace"])
	assert.Equal(t, created["ctime"], rec["ctime"])
	assert.NotEqual(t, created["mtime"], rec["mtime"])
}

func TestUpdate_NothingChanged(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, map[string]any{"name": "Jan", "birthplace": "Waspik"})
	writes := store.Writes()

	report, err := svc.Update(ctx, "person", id, map[string]any{
		"name": "Jan", "birthplace": "Waspik",
	})
	require.NoError(t, err)
	assert.Equal(t, storage.OutcomeNotUpdated, report.Outcome)
	assert.Equal(t, "nothing changed", report.Reason)
	assert.Equal(t, writes, store.Writes())
}

func TestUpdate_MissingItem(t *testing.T) {
	svc, _ := newService(t)
	report, err := svc.Update(context.Background(), "person", "ghost", map[string]any{"name": "x"})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, storage.OutcomeNotWritten, report.Outcome)
}

func TestReplace_KeepsIdentityFields(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, map[string]any{"name": "Jan", "birthplace": "Waspik"})
	created, err := svc.Raw(ctx, "person", id)
	require.NoError(t, err)

	report, err := svc.Replace(ctx, "person", id, map[string]any{"name": "Piet"})
	require.NoError(t, err)
	assert.Equal(t, storage.OutcomeUpdated, report.Outcome)

	rec, err := svc.Raw(ctx, "person", id)
	require.NoError(t, err)
	assert.Equal(t, id, rec["id"])
	assert.Equal(t, "Piet", rec["name"])
	assert.Equal(t, created["ctime"], rec["ctime"])
	assert.Equal(t, true, rec["active"])
	_, hasPlace := rec["birthplace"]
	assert.False(t, hasPlace)
}

func TestGet_RendersOneNode(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, map[string]any{"name": "Jan"})

	tree, err := svc.Get(ctx, "person", id)
	require.NoError(t, err)
	require.Len(t, tree.Nodes, 1)
	assert.Equal(t, id, tree.Nodes[0].ID)
	assert.True(t, tree.Nodes[0].Recent)

	_, err = svc.Get(ctx, "person", "ghost")
	assert.True(t, apperror.IsNotFound(err))
}

func TestPurge_RemovesPhysically(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id := mustCreate(t, svc, map[string]any{"name": "Jan"})

	report, err := svc.Purge(ctx, "person", id)
	require.NoError(t, err)
	assert.Equal(t, storage.OutcomeDeleted, report.Outcome)

	_, err = svc.Raw(ctx, "person", id)
	assert.True(t, apperror.IsNotFound(err))

	tree, err := svc.Find(ctx, "person", cursor.Cursor{Limit: 10, IncludeInactive: true})
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Paging.Count)
}
