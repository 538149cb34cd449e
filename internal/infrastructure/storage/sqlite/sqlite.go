// Package sqlite implements the storage translator over SQLite using the
// goqu query builder. One table per model; schema derives from the model
// definition at EnsureCollection time.
//
// The =~ operator is rejected: SQLite has no native REGEXP implementation
// and the framework never silently approximates, so regexp filters on this
// backend fail translation instead of degrading to LIKE.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/mattn/go-sqlite3"

	"publica/internal/core/apperror"
	"publica/internal/domain/cursor"
	"publica/internal/domain/filter"
	"publica/internal/infrastructure/storage"
	"publica/internal/metadata"
)

// Engine is a SQLite-backed Translator.
type Engine struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
}

// Open opens (or creates) the database file at path.
func Open(path string) (*Engine, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperror.NewEngine(string(storage.EngineSQLite), "open", err)
	}
	// SQLite permits one writer; a single connection avoids SQLITE_BUSY
	// churn under concurrent writes.
	db.SetMaxOpenConns(1)
	return &Engine{db: db, dialect: goqu.Dialect("sqlite3")}, nil
}

func (e *Engine) Engine() storage.EngineTag { return storage.EngineSQLite }

func (e *Engine) EnsureCollection(ctx context.Context, def *metadata.ModelDef) error {
	cols := make([]string, 0, len(def.Fields))
	for _, f := range def.Fields {
		col := fmt.Sprintf("%q %s", f.Name, columnType(f))
		if f.Name == metadata.FieldID {
			col += " PRIMARY KEY"
		}
		cols = append(cols, col)
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", def.TableName, strings.Join(cols, ", "))
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return apperror.NewEngine(string(storage.EngineSQLite), "create table", err)
	}
	for _, name := range def.IndexedFields() {
		if name == metadata.FieldID {
			continue // primary key
		}
		ddl := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %q ON %q (%q)",
			"idx_"+def.TableName+"_"+name, def.TableName, name)
		if _, err := e.db.ExecContext(ctx, ddl); err != nil {
			return apperror.NewEngine(string(storage.EngineSQLite), "create index", err)
		}
	}
	return nil
}

func (e *Engine) whereExprs(def *metadata.ModelDef, f filter.Filter) ([]goqu.Expression, error) {
	exprs := make([]goqu.Expression, 0, len(f))
	for _, item := range f {
		fd, ok := def.Field(item.Field)
		if !ok {
			return nil, apperror.NewFilterParse("unknown field " + item.Field)
		}
		col := goqu.C(item.Field)
		switch item.Op {
		case filter.Eq:
			v, err := encodeValue(fd, item.Value)
			if err != nil {
				return nil, apperror.NewFilterParse(err.Error())
			}
			exprs = append(exprs, col.Eq(v))
		case filter.NotEq:
			v, err := encodeValue(fd, item.Value)
			if err != nil {
				return nil, apperror.NewFilterParse(err.Error())
			}
			exprs = append(exprs, col.Neq(v))
		case filter.Match:
			return nil, apperror.NewTranslationUnsupported(string(storage.EngineSQLite), string(filter.Match), item.Field)
		case filter.Between:
			low, err := encodeValue(fd, item.Value)
			if err != nil {
				return nil, apperror.NewFilterParse(err.Error())
			}
			high, err := encodeValue(fd, item.High)
			if err != nil {
				return nil, apperror.NewFilterParse(err.Error())
			}
			exprs = append(exprs, col.Gte(low), col.Lte(high))
		case filter.Gt:
			v, err := encodeValue(fd, item.Value)
			if err != nil {
				return nil, apperror.NewFilterParse(err.Error())
			}
			exprs = append(exprs, col.Gt(v))
		case filter.GtOrEq:
			v, err := encodeValue(fd, item.Value)
			if err != nil {
				return nil, apperror.NewFilterParse(err.Error())
			}
			exprs = append(exprs, col.Gte(v))
		case filter.Lt:
			v, err := encodeValue(fd, item.Value)
			if err != nil {
				return nil, apperror.NewFilterParse(err.Error())
			}
			exprs = append(exprs, col.Lt(v))
		case filter.LtOrEq:
			v, err := encodeValue(fd, item.Value)
			if err != nil {
				return nil, apperror.NewFilterParse(err.Error())
			}
			exprs = append(exprs, col.Lte(v))
		case filter.In:
			list, ok := item.Value.([]any)
			if !ok {
				return nil, apperror.NewFilterParse("operator in needs a list of candidates")
			}
			encoded := make([]any, len(list))
			for i, cand := range list {
				v, err := encodeValue(fd, cand)
				if err != nil {
					return nil, apperror.NewFilterParse(err.Error())
				}
				encoded[i] = v
			}
			exprs = append(exprs, col.In(encoded...))
		default:
			return nil, apperror.NewTranslationUnsupported(string(storage.EngineSQLite), string(item.Op), item.Field)
		}
	}
	return exprs, nil
}

func (e *Engine) Translate(def *metadata.ModelDef, f filter.Filter, cur cursor.Cursor) (*storage.NativeQuery, error) {
	exprs, err := e.whereExprs(def, f)
	if err != nil {
		return nil, err
	}
	ds := e.dialect.From(def.TableName).Prepared(true).Where(exprs...)
	if field, desc := storage.SortField(cur.Sort); field != "" {
		if !def.HasField(field) {
			return nil, apperror.NewInvalidInput("unknown sort field " + field)
		}
		if desc {
			ds = ds.Order(goqu.C(field).Desc())
		} else {
			ds = ds.Order(goqu.C(field).Asc())
		}
	}
	if cur.Limit > 0 {
		ds = ds.Limit(uint(cur.Limit)).Offset(uint(cur.Skip))
	}
	q, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperror.NewEngine(string(storage.EngineSQLite), "build query", err)
	}
	return &storage.NativeQuery{
		Engine:     storage.EngineSQLite,
		Collection: def.TableName,
		Def:        def,
		SQL:        q,
		Args:       args,
		Skip:       cur.Skip,
		Limit:      cur.Limit,
	}, nil
}

func (e *Engine) Execute(ctx context.Context, q *storage.NativeQuery) ([]storage.RawRecord, error) {
	if q.Engine != storage.EngineSQLite {
		return nil, apperror.NewEngine(string(storage.EngineSQLite), "execute",
			fmt.Errorf("query translated for engine %s", q.Engine))
	}
	if q.Def == nil {
		return nil, apperror.NewInternal(errors.New("query carries no model definition"))
	}
	rows, err := e.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, apperror.NewEngine(string(storage.EngineSQLite), "query", err)
	}
	defer rows.Close()
	return scanRecords(q.Def, rows)
}

func (e *Engine) Count(ctx context.Context, def *metadata.ModelDef, f filter.Filter) (int, error) {
	exprs, err := e.whereExprs(def, f)
	if err != nil {
		return 0, err
	}
	q, args, err := e.dialect.From(def.TableName).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).Where(exprs...).ToSQL()
	if err != nil {
		return 0, apperror.NewEngine(string(storage.EngineSQLite), "build count", err)
	}
	var n int
	if err := e.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, apperror.NewEngine(string(storage.EngineSQLite), "count", err)
	}
	return n, nil
}

func (e *Engine) Get(ctx context.Context, def *metadata.ModelDef, id string) (storage.RawRecord, error) {
	q, args, err := e.dialect.From(def.TableName).Prepared(true).
		Where(goqu.C(metadata.FieldID).Eq(id)).Limit(1).ToSQL()
	if err != nil {
		return nil, apperror.NewEngine(string(storage.EngineSQLite), "build query", err)
	}
	rows, err := e.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperror.NewEngine(string(storage.EngineSQLite), "query", err)
	}
	defer rows.Close()
	recs, err := scanRecords(def, rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperror.NewNotFound(def.Name, id)
	}
	return recs[0], nil
}

func (e *Engine) Insert(ctx context.Context, def *metadata.ModelDef, rec storage.RawRecord) (storage.WriteReport, error) {
	id, _ := rec[metadata.FieldID].(string)
	if id == "" {
		return storage.NotWritten("document has no id"), apperror.NewInvalidInput("document has no id")
	}
	row, err := encodeRecord(def, rec)
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EngineSQLite), "encode", err)
	}
	q, args, err := e.dialect.Insert(def.TableName).Prepared(true).Rows(goqu.Record(row)).ToSQL()
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EngineSQLite), "build insert", err)
	}
	if _, err := e.db.ExecContext(ctx, q, args...); err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EngineSQLite), "insert", err)
	}
	return storage.Inserted(id), nil
}

func (e *Engine) Replace(ctx context.Context, def *metadata.ModelDef, id string, rec storage.RawRecord) (storage.WriteReport, error) {
	next := storage.Clone(rec)
	next[metadata.FieldID] = id
	// Columns absent from the document reset to NULL, matching a whole
	// document replacement.
	for _, f := range def.Fields {
		if _, ok := next[f.Name]; !ok {
			next[f.Name] = nil
		}
	}
	return e.update(ctx, def, id, next, "replace")
}

func (e *Engine) PartialUpdate(ctx context.Context, def *metadata.ModelDef, id string, changes storage.RawRecord) (storage.WriteReport, error) {
	if len(changes) == 0 {
		return storage.NotUpdated(id, 0, "nothing to update"), nil
	}
	return e.update(ctx, def, id, changes, "update")
}

func (e *Engine) update(ctx context.Context, def *metadata.ModelDef, id string, fields storage.RawRecord, op string) (storage.WriteReport, error) {
	row, err := encodeRecord(def, fields)
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EngineSQLite), "encode", err)
	}
	delete(row, metadata.FieldID)
	q, args, err := e.dialect.Update(def.TableName).Prepared(true).
		Set(goqu.Record(row)).Where(goqu.C(metadata.FieldID).Eq(id)).ToSQL()
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EngineSQLite), "build "+op, err)
	}
	res, err := e.db.ExecContext(ctx, q, args...)
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EngineSQLite), op, err)
	}
	matched, err := res.RowsAffected()
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EngineSQLite), op, err)
	}
	if matched == 0 {
		return storage.NotUpdated(id, 0, "no document with this id"), nil
	}
	if matched > 1 {
		return storage.NotUpdated(id, matched, "matched more than one document"),
			apperror.NewPartialWriteMismatch(def.TableName, id, matched)
	}
	return storage.Updated(id), nil
}

func (e *Engine) Delete(ctx context.Context, def *metadata.ModelDef, id string) (storage.WriteReport, error) {
	q, args, err := e.dialect.Delete(def.TableName).Prepared(true).
		Where(goqu.C(metadata.FieldID).Eq(id)).ToSQL()
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EngineSQLite), "build delete", err)
	}
	res, err := e.db.ExecContext(ctx, q, args...)
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EngineSQLite), "delete", err)
	}
	matched, err := res.RowsAffected()
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EngineSQLite), "delete", err)
	}
	if matched == 0 {
		return storage.NotUpdated(id, 0, "no document with this id"), nil
	}
	return storage.Deleted(id), nil
}

func (e *Engine) Close() error { return e.db.Close() }

func scanRecords(def *metadata.ModelDef, rows *sql.Rows) ([]storage.RawRecord, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, apperror.NewEngine(string(storage.EngineSQLite), "scan", err)
	}
	var out []storage.RawRecord
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperror.NewEngine(string(storage.EngineSQLite), "scan", err)
		}
		rec, err := decodeRecord(def, columns, values)
		if err != nil {
			return nil, apperror.NewEngine(string(storage.EngineSQLite), "decode", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewEngine(string(storage.EngineSQLite), "scan", err)
	}
	return out, nil
}
