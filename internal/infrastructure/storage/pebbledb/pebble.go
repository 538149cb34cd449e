// Package pebbledb implements the storage translator over a Pebble key-value
// store. Documents live under /item/{collection}/{id} as msgpack values;
// reads are prefix scans with a compiled predicate, so filtered counts are
// O(n) in the collection size by construction.
package pebbledb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"publica/internal/core/apperror"
	"publica/internal/domain/cursor"
	"publica/internal/domain/filter"
	"publica/internal/infrastructure/storage"
	"publica/internal/metadata"
)

const keyPrefix = "/item/"

// Options tunes the underlying store. Zero value is fine for tests.
type Options struct {
	CacheSizeMB    int64
	MemTableSizeMB int64
}

// Engine is a Pebble-backed Translator.
type Engine struct {
	db *pebble.DB

	// Pebble serializes its own writes; the mutex only covers the
	// read-merge-replace sequence of PartialUpdate.
	mu sync.Mutex
}

// Open opens (or creates) the store at path.
func Open(path string, opts Options) (*Engine, error) {
	pebbleOpts := &pebble.Options{}
	if opts.CacheSizeMB > 0 {
		cache := pebble.NewCache(opts.CacheSizeMB << 20)
		defer cache.Unref()
		pebbleOpts.Cache = cache
	}
	if opts.MemTableSizeMB > 0 {
		pebbleOpts.MemTableSize = uint64(opts.MemTableSizeMB << 20)
	}
	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		return nil, apperror.NewEngine(string(storage.EnginePebble), "open", err)
	}
	return &Engine{db: db}, nil
}

func (e *Engine) Engine() storage.EngineTag { return storage.EnginePebble }

// EnsureCollection is a no-op: key spaces need no preparation.
func (e *Engine) EnsureCollection(context.Context, *metadata.ModelDef) error { return nil }

func itemKey(collection, id string) []byte {
	return []byte(keyPrefix + collection + "/" + id)
}

func collectionBounds(collection string) (lower, upper []byte) {
	lower = []byte(keyPrefix + collection + "/")
	upper = make([]byte, len(lower))
	copy(upper, lower)
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return lower, upper
		}
	}
	return lower, nil
}

func (e *Engine) Translate(def *metadata.ModelDef, f filter.Filter, cur cursor.Cursor) (*storage.NativeQuery, error) {
	pred, err := storage.CompilePredicate(f)
	if err != nil {
		return nil, err
	}
	return &storage.NativeQuery{
		Engine:     storage.EnginePebble,
		Collection: def.TableName,
		Def:        def,
		Predicate:  pred,
		Less:       storage.CompileSort(cur.Sort),
		Skip:       cur.Skip,
		Limit:      cur.Limit,
	}, nil
}

func (e *Engine) Execute(_ context.Context, q *storage.NativeQuery) ([]storage.RawRecord, error) {
	if q.Engine != storage.EnginePebble {
		return nil, apperror.NewEngine(string(storage.EnginePebble), "execute",
			fmt.Errorf("query translated for engine %s", q.Engine))
	}
	matched, err := e.scan(q.Collection, q.Predicate)
	if err != nil {
		return nil, err
	}
	storage.SortRecords(matched, q.Less)
	if q.Skip >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Skip:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// Count is a full prefix scan. O(n); call once per request.
func (e *Engine) Count(_ context.Context, def *metadata.ModelDef, f filter.Filter) (int, error) {
	pred, err := storage.CompilePredicate(f)
	if err != nil {
		return 0, err
	}
	matched, err := e.scan(def.TableName, pred)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (e *Engine) scan(collection string, pred storage.Predicate) ([]storage.RawRecord, error) {
	lower, upper := collectionBounds(collection)
	iter, err := e.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, apperror.NewEngine(string(storage.EnginePebble), "scan", err)
	}
	defer iter.Close()

	var matched []storage.RawRecord
	for iter.SeekGE(lower); iter.Valid(); iter.Next() {
		val, err := iter.ValueAndErr()
		if err != nil {
			return nil, apperror.NewEngine(string(storage.EnginePebble), "scan", err)
		}
		rec, err := decodeRecord(val)
		if err != nil {
			return nil, apperror.NewEngine(string(storage.EnginePebble), "decode", err)
		}
		if pred == nil || pred(rec) {
			matched = append(matched, rec)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, apperror.NewEngine(string(storage.EnginePebble), "scan", err)
	}
	return matched, nil
}

func (e *Engine) Get(_ context.Context, def *metadata.ModelDef, id string) (storage.RawRecord, error) {
	val, closer, err := e.db.Get(itemKey(def.TableName, id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, apperror.NewNotFound(def.Name, id)
	}
	if err != nil {
		return nil, apperror.NewEngine(string(storage.EnginePebble), "get", err)
	}
	defer closer.Close()
	rec, err := decodeRecord(val)
	if err != nil {
		return nil, apperror.NewEngine(string(storage.EnginePebble), "decode", err)
	}
	return rec, nil
}

func (e *Engine) Insert(_ context.Context, def *metadata.ModelDef, rec storage.RawRecord) (storage.WriteReport, error) {
	id, _ := rec[metadata.FieldID].(string)
	if id == "" {
		return storage.NotWritten("document has no id"), apperror.NewInvalidInput("document has no id")
	}
	key := itemKey(def.TableName, id)
	_, closer, err := e.db.Get(key)
	if err == nil {
		closer.Close()
		return storage.NotWritten("duplicate id"), apperror.NewEngine(string(storage.EnginePebble), "insert",
			fmt.Errorf("duplicate id %s", id))
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EnginePebble), "insert", err)
	}
	if err := e.set(key, rec); err != nil {
		return storage.NotWritten(err.Error()), err
	}
	return storage.Inserted(id), nil
}

func (e *Engine) Replace(_ context.Context, def *metadata.ModelDef, id string, rec storage.RawRecord) (storage.WriteReport, error) {
	key := itemKey(def.TableName, id)
	if ok, err := e.exists(key); err != nil {
		return storage.NotWritten(err.Error()), err
	} else if !ok {
		return storage.NotUpdated(id, 0, "no document with this id"), nil
	}
	next := storage.Clone(rec)
	next[metadata.FieldID] = id
	if err := e.set(key, next); err != nil {
		return storage.NotWritten(err.Error()), err
	}
	return storage.Updated(id), nil
}

// PartialUpdate has no native primitive here; it reads, merges the changed
// fields and writes the whole document back under the engine mutex.
func (e *Engine) PartialUpdate(ctx context.Context, def *metadata.ModelDef, id string, changes storage.RawRecord) (storage.WriteReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.Get(ctx, def, id)
	if apperror.IsNotFound(err) {
		return storage.NotUpdated(id, 0, "no document with this id"), nil
	}
	if err != nil {
		return storage.NotWritten(err.Error()), err
	}
	for k, v := range changes {
		if k == metadata.FieldID {
			continue
		}
		rec[k] = v
	}
	if err := e.set(itemKey(def.TableName, id), rec); err != nil {
		return storage.NotWritten(err.Error()), err
	}
	return storage.Updated(id), nil
}

func (e *Engine) Delete(_ context.Context, def *metadata.ModelDef, id string) (storage.WriteReport, error) {
	key := itemKey(def.TableName, id)
	if ok, err := e.exists(key); err != nil {
		return storage.NotWritten(err.Error()), err
	} else if !ok {
		return storage.NotUpdated(id, 0, "no document with this id"), nil
	}
	if err := e.db.Delete(key, pebble.Sync); err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EnginePebble), "delete", err)
	}
	return storage.Deleted(id), nil
}

func (e *Engine) Close() error { return e.db.Close() }

func (e *Engine) set(key []byte, rec storage.RawRecord) error {
	val, err := encodeRecord(rec)
	if err != nil {
		return apperror.NewEngine(string(storage.EnginePebble), "encode", err)
	}
	if err := e.db.Set(key, val, pebble.Sync); err != nil {
		return apperror.NewEngine(string(storage.EnginePebble), "set", err)
	}
	return nil
}

func (e *Engine) exists(key []byte) (bool, error) {
	_, closer, err := e.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperror.NewEngine(string(storage.EnginePebble), "get", err)
	}
	closer.Close()
	return true, nil
}
