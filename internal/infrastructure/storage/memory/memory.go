// Package memory implements the storage translator over plain in-process
// maps. It is the reference engine: the predicate compiler it runs is the
// semantic baseline the other engines are tested against, and it backs unit
// tests that need a full engine without external processes.
package memory

import (
	"context"
	"fmt"
	"sync"

	"publica/internal/core/apperror"
	"publica/internal/domain/cursor"
	"publica/internal/domain/filter"
	"publica/internal/infrastructure/storage"
	"publica/internal/metadata"
)

type collection struct {
	records []storage.RawRecord // insertion order
	index   map[string]int
}

// Engine is a map-backed Translator. Safe for concurrent use.
type Engine struct {
	mu          sync.RWMutex
	collections map[string]*collection
	writes      int64
}

// New creates an empty memory engine.
func New() *Engine {
	return &Engine{collections: make(map[string]*collection)}
}

func (e *Engine) Engine() storage.EngineTag { return storage.EngineMemory }

func (e *Engine) EnsureCollection(_ context.Context, def *metadata.ModelDef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.collections[def.TableName]; !ok {
		e.collections[def.TableName] = &collection{index: make(map[string]int)}
	}
	return nil
}

// Writes returns the number of mutating operations that reached the engine.
func (e *Engine) Writes() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.writes
}

func (e *Engine) Translate(def *metadata.ModelDef, f filter.Filter, cur cursor.Cursor) (*storage.NativeQuery, error) {
	pred, err := storage.CompilePredicate(f)
	if err != nil {
		return nil, err
	}
	return &storage.NativeQuery{
		Engine:     storage.EngineMemory,
		Collection: def.TableName,
		Def:        def,
		Predicate:  pred,
		Less:       storage.CompileSort(cur.Sort),
		Skip:       cur.Skip,
		Limit:      cur.Limit,
	}, nil
}

func (e *Engine) Execute(_ context.Context, q *storage.NativeQuery) ([]storage.RawRecord, error) {
	if q.Engine != storage.EngineMemory {
		return nil, apperror.NewEngine(string(storage.EngineMemory), "execute",
			fmt.Errorf("query translated for engine %s", q.Engine))
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	var matched []storage.RawRecord
	if col, ok := e.collections[q.Collection]; ok {
		for _, rec := range col.records {
			if q.Predicate == nil || q.Predicate(rec) {
				matched = append(matched, rec)
			}
		}
	}
	storage.SortRecords(matched, q.Less)

	if q.Skip >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Skip:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	out := make([]storage.RawRecord, len(matched))
	for i, rec := range matched {
		out[i] = storage.Clone(rec)
	}
	return out, nil
}

// Count scans the whole collection. O(n); call once per request.
func (e *Engine) Count(_ context.Context, def *metadata.ModelDef, f filter.Filter) (int, error) {
	pred, err := storage.CompilePredicate(f)
	if err != nil {
		return 0, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	if col, ok := e.collections[def.TableName]; ok {
		for _, rec := range col.records {
			if pred(rec) {
				n++
			}
		}
	}
	return n, nil
}

func (e *Engine) Get(_ context.Context, def *metadata.ModelDef, id string) (storage.RawRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	col, ok := e.collections[def.TableName]
	if !ok {
		return nil, apperror.NewNotFound(def.Name, id)
	}
	i, ok := col.index[id]
	if !ok {
		return nil, apperror.NewNotFound(def.Name, id)
	}
	return storage.Clone(col.records[i]), nil
}

func (e *Engine) Insert(_ context.Context, def *metadata.ModelDef, rec storage.RawRecord) (storage.WriteReport, error) {
	id, _ := rec[metadata.FieldID].(string)
	if id == "" {
		return storage.NotWritten("document has no id"), apperror.NewInvalidInput("document has no id")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	col := e.collection(def.TableName)
	if _, dup := col.index[id]; dup {
		return storage.NotWritten("duplicate id"), apperror.NewEngine(string(storage.EngineMemory), "insert",
			apperror.NewInvalidInput("duplicate id "+id))
	}
	col.index[id] = len(col.records)
	col.records = append(col.records, storage.Clone(rec))
	e.writes++
	return storage.Inserted(id), nil
}

func (e *Engine) Replace(_ context.Context, def *metadata.ModelDef, id string, rec storage.RawRecord) (storage.WriteReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	col := e.collection(def.TableName)
	i, ok := col.index[id]
	if !ok {
		return storage.NotUpdated(id, 0, "no document with this id"), nil
	}
	next := storage.Clone(rec)
	next[metadata.FieldID] = id
	col.records[i] = next
	e.writes++
	return storage.Updated(id), nil
}

func (e *Engine) PartialUpdate(_ context.Context, def *metadata.ModelDef, id string, changes storage.RawRecord) (storage.WriteReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	col := e.collection(def.TableName)
	i, ok := col.index[id]
	if !ok {
		return storage.NotUpdated(id, 0, "no document with this id"), nil
	}
	rec := col.records[i]
	for k, v := range changes {
		if k == metadata.FieldID {
			continue
		}
		rec[k] = v
	}
	e.writes++
	return storage.Updated(id), nil
}

func (e *Engine) Delete(_ context.Context, def *metadata.ModelDef, id string) (storage.WriteReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	col := e.collection(def.TableName)
	i, ok := col.index[id]
	if !ok {
		return storage.NotUpdated(id, 0, "no document with this id"), nil
	}
	col.records = append(col.records[:i], col.records[i+1:]...)
	delete(col.index, id)
	for j := i; j < len(col.records); j++ {
		rid, _ := col.records[j][metadata.FieldID].(string)
		col.index[rid] = j
	}
	e.writes++
	return storage.Deleted(id), nil
}

func (e *Engine) Close() error { return nil }

// collection returns the named collection, creating it on first write.
// Callers hold the write lock.
func (e *Engine) collection(name string) *collection {
	col, ok := e.collections[name]
	if !ok {
		col = &collection{index: make(map[string]int)}
		e.collections[name] = col
	}
	return col
}
