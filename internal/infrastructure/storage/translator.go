// Package storage defines the backend translator contract: the conversion of
// backend-neutral filters and cursors into native queries for a closed set of
// storage engines, plus the per-document write operations.
package storage

import (
	"context"

	"publica/internal/domain/cursor"
	"publica/internal/domain/filter"
	"publica/internal/metadata"
)

// EngineTag identifies a storage engine. Dispatch is by explicit tag over a
// closed set of variants, never by runtime capability probing.
type EngineTag string

const (
	EnginePostgres EngineTag = "postgres"
	EngineSQLite   EngineTag = "sqlite"
	EnginePebble   EngineTag = "pebble"
	EngineMemory   EngineTag = "memory"
)

// Tags lists the known engines.
func Tags() []EngineTag {
	return []EngineTag{EnginePostgres, EngineSQLite, EnginePebble, EngineMemory}
}

// NativeQuery is the engine-ready form of one filtered, sorted, paginated
// read. Relational engines fill the SQL fields; document engines fill the
// predicate fields. A NativeQuery is only valid for the translator that
// produced it.
type NativeQuery struct {
	Engine     EngineTag
	Collection string
	Def        *metadata.ModelDef

	// Relational form
	SQL  string
	Args []any

	// Document form
	Predicate func(RawRecord) bool
	Less      func(a, b RawRecord) bool // nil keeps insertion order

	Skip  int
	Limit int
}

// Translator converts filters and cursors into native queries for one
// engine, executes them, and carries the per-document write path.
//
// Every implementation reproduces the operator semantics of the filter
// package exactly; an operator the engine cannot express fails translation
// with a TRANSLATION_UNSUPPORTED error naming operator, field and backend.
// Silent approximation is a defect.
type Translator interface {
	// Engine returns the dispatch tag.
	Engine() EngineTag

	// EnsureCollection prepares backing storage for a model (table,
	// key space). Idempotent.
	EnsureCollection(ctx context.Context, def *metadata.ModelDef) error

	// Translate builds the native query for a page read.
	Translate(def *metadata.ModelDef, f filter.Filter, cur cursor.Cursor) (*NativeQuery, error)

	// Execute runs a translated query and returns the page records in
	// engine order.
	Execute(ctx context.Context, q *NativeQuery) ([]RawRecord, error)

	// Count returns the total number of records matching the filter.
	// On engines without maintained counters this is a full scan; treat it
	// as O(n) and call it once per request.
	Count(ctx context.Context, def *metadata.ModelDef, f filter.Filter) (int, error)

	// Get returns the record with the given id, or a NOT_FOUND error.
	Get(ctx context.Context, def *metadata.ModelDef, id string) (RawRecord, error)

	// Insert stores a new document.
	Insert(ctx context.Context, def *metadata.ModelDef, rec RawRecord) (WriteReport, error)

	// Replace overwrites the whole document with the given id.
	Replace(ctx context.Context, def *metadata.ModelDef, id string, rec RawRecord) (WriteReport, error)

	// PartialUpdate applies only the changed fields. Engines without a
	// partial write primitive fall back to read-merge-replace; either way
	// untouched fields keep their stored values.
	PartialUpdate(ctx context.Context, def *metadata.ModelDef, id string, changes RawRecord) (WriteReport, error)

	// Delete removes the document physically. Functional (soft) deletion
	// is a PartialUpdate of the active flag, done by the item service.
	Delete(ctx context.Context, def *metadata.ModelDef, id string) (WriteReport, error)

	// Close releases engine resources.
	Close() error
}

// SortField splits a sort spec into field name and direction.
// A leading '-' means descending, an optional '+' ascending.
func SortField(spec string) (field string, descending bool) {
	if spec == "" {
		return "", false
	}
	switch spec[0] {
	case '-':
		return spec[1:], true
	case '+':
		return spec[1:], false
	}
	return spec, false
}
