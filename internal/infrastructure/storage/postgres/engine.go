package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"publica/internal/core/apperror"
	"publica/internal/domain/cursor"
	"publica/internal/domain/filter"
	"publica/internal/infrastructure/storage"
	"publica/internal/metadata"
)

// Engine is a PostgreSQL-backed Translator.
type Engine struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool.
func New(pool *pgxpool.Pool) *Engine {
	return &Engine{pool: pool}
}

func (e *Engine) Engine() storage.EngineTag { return storage.EnginePostgres }

// Builder returns a squirrel builder with PostgreSQL placeholder format.
func (e *Engine) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

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
	if _, err := e.pool.Exec(ctx, ddl); err != nil {
		return apperror.NewEngine(string(storage.EnginePostgres), "create table", err)
	}
	for _, name := range def.IndexedFields() {
		if name == metadata.FieldID {
			continue
		}
		ddl := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %q ON %q (%q)",
			"idx_"+def.TableName+"_"+name, def.TableName, name)
		if _, err := e.pool.Exec(ctx, ddl); err != nil {
			return apperror.NewEngine(string(storage.EnginePostgres), "create index", err)
		}
	}
	return nil
}

// applyFilter adds WHERE clauses for every filter expression. Field names
// are validated against the model definition before they reach SQL text.
func (e *Engine) applyFilter(def *metadata.ModelDef, q squirrel.SelectBuilder, f filter.Filter) (squirrel.SelectBuilder, error) {
	for _, item := range f {
		fd, ok := def.Field(item.Field)
		if !ok {
			return q, apperror.NewFilterParse("unknown field " + item.Field)
		}
		v, err := encodeValue(fd, item.Value)
		if err != nil {
			return q, apperror.NewFilterParse(err.Error())
		}
		// Columns are quoted everywhere so reserved words stay valid
		// identifiers. Field names are whitelisted above.
		col := pgQuote(item.Field)
		switch item.Op {
		case filter.Eq:
			q = q.Where(squirrel.Eq{col: v})
		case filter.NotEq:
			q = q.Where(squirrel.NotEq{col: v})
		case filter.Match:
			// POSIX regexp match.
			q = q.Where(squirrel.Expr(col+" ~ ?", v))
		case filter.Between:
			high, err := encodeValue(fd, item.High)
			if err != nil {
				return q, apperror.NewFilterParse(err.Error())
			}
			q = q.Where(squirrel.GtOrEq{col: v}).Where(squirrel.LtOrEq{col: high})
		case filter.Gt:
			q = q.Where(squirrel.Gt{col: v})
		case filter.GtOrEq:
			q = q.Where(squirrel.GtOrEq{col: v})
		case filter.Lt:
			q = q.Where(squirrel.Lt{col: v})
		case filter.LtOrEq:
			q = q.Where(squirrel.LtOrEq{col: v})
		case filter.In:
			list, ok := item.Value.([]any)
			if !ok {
				return q, apperror.NewFilterParse("operator in needs a list of candidates")
			}
			q = q.Where(squirrel.Eq{col: list})
		default:
			return q, apperror.NewTranslationUnsupported(string(storage.EnginePostgres), string(item.Op), item.Field)
		}
	}
	return q, nil
}

func (e *Engine) orderBy(def *metadata.ModelDef, spec string) (string, error) {
	field, desc := storage.SortField(spec)
	if field == "" {
		return "", nil
	}
	if !def.HasField(field) {
		return "", apperror.NewInvalidInput("unknown sort field " + field)
	}
	if desc {
		return fmt.Sprintf("%q DESC", field), nil
	}
	return fmt.Sprintf("%q ASC", field), nil
}

func (e *Engine) Translate(def *metadata.ModelDef, f filter.Filter, cur cursor.Cursor) (*storage.NativeQuery, error) {
	q := e.Builder().Select(quoteAll(def.FieldNames())...).From(pgQuote(def.TableName))
	q, err := e.applyFilter(def, q, f)
	if err != nil {
		return nil, err
	}
	orderBy, err := e.orderBy(def, cur.Sort)
	if err != nil {
		return nil, err
	}
	if orderBy != "" {
		q = q.OrderBy(orderBy)
	}
	if cur.Limit > 0 {
		q = q.Limit(uint64(cur.Limit)).Offset(uint64(cur.Skip))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewEngine(string(storage.EnginePostgres), "build query", err)
	}
	return &storage.NativeQuery{
		Engine:     storage.EnginePostgres,
		Collection: def.TableName,
		Def:        def,
		SQL:        sql,
		Args:       args,
		Skip:       cur.Skip,
		Limit:      cur.Limit,
	}, nil
}

func (e *Engine) Execute(ctx context.Context, q *storage.NativeQuery) ([]storage.RawRecord, error) {
	if q.Engine != storage.EnginePostgres {
		return nil, apperror.NewEngine(string(storage.EnginePostgres), "execute",
			fmt.Errorf("query translated for engine %s", q.Engine))
	}
	if q.Def == nil {
		return nil, apperror.NewInternal(errors.New("query carries no model definition"))
	}
	var rows []map[string]any
	if err := pgxscan.Select(ctx, e.pool, &rows, q.SQL, q.Args...); err != nil {
		return nil, apperror.NewEngine(string(storage.EnginePostgres), "query", err)
	}
	out := make([]storage.RawRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeRow(q.Def, row)
		if err != nil {
			return nil, apperror.NewEngine(string(storage.EnginePostgres), "decode", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (e *Engine) Count(ctx context.Context, def *metadata.ModelDef, f filter.Filter) (int, error) {
	q := e.Builder().Select("COUNT(*)").From(pgQuote(def.TableName))
	q, err := e.applyFilter(def, q, f)
	if err != nil {
		return 0, err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, apperror.NewEngine(string(storage.EnginePostgres), "build count", err)
	}
	var n int
	if err := e.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, apperror.NewEngine(string(storage.EnginePostgres), "count", err)
	}
	return n, nil
}

func (e *Engine) Get(ctx context.Context, def *metadata.ModelDef, id string) (storage.RawRecord, error) {
	sql, args, err := e.Builder().Select(quoteAll(def.FieldNames())...).From(pgQuote(def.TableName)).
		Where(squirrel.Eq{pgQuote(metadata.FieldID): id}).Limit(1).ToSql()
	if err != nil {
		return nil, apperror.NewEngine(string(storage.EnginePostgres), "build query", err)
	}
	var rows []map[string]any
	if err := pgxscan.Select(ctx, e.pool, &rows, sql, args...); err != nil {
		return nil, apperror.NewEngine(string(storage.EnginePostgres), "query", err)
	}
	if len(rows) == 0 {
		return nil, apperror.NewNotFound(def.Name, id)
	}
	rec, err := decodeRow(def, rows[0])
	if err != nil {
		return nil, apperror.NewEngine(string(storage.EnginePostgres), "decode", err)
	}
	return rec, nil
}

func (e *Engine) Insert(ctx context.Context, def *metadata.ModelDef, rec storage.RawRecord) (storage.WriteReport, error) {
	id, _ := rec[metadata.FieldID].(string)
	if id == "" {
		return storage.NotWritten("document has no id"), apperror.NewInvalidInput("document has no id")
	}
	row, err := encodeRecord(def, rec)
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EnginePostgres), "encode", err)
	}
	sql, args, err := e.Builder().Insert(pgQuote(def.TableName)).SetMap(row).ToSql()
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EnginePostgres), "build insert", err)
	}
	if _, err := e.pool.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return storage.NotWritten("duplicate id"), apperror.NewEngine(string(storage.EnginePostgres), "insert", err)
		}
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EnginePostgres), "insert", err)
	}
	return storage.Inserted(id), nil
}

func (e *Engine) Replace(ctx context.Context, def *metadata.ModelDef, id string, rec storage.RawRecord) (storage.WriteReport, error) {
	next := storage.Clone(rec)
	next[metadata.FieldID] = id
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
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EnginePostgres), "encode", err)
	}
	delete(row, metadata.FieldID)
	sql, args, err := e.Builder().Update(pgQuote(def.TableName)).SetMap(row).
		Where(squirrel.Eq{pgQuote(metadata.FieldID): id}).ToSql()
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EnginePostgres), "build "+op, err)
	}
	res, err := e.pool.Exec(ctx, sql, args...)
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EnginePostgres), op, err)
	}
	matched := res.RowsAffected()
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
	sql, args, err := e.Builder().Delete(pgQuote(def.TableName)).
		Where(squirrel.Eq{pgQuote(metadata.FieldID): id}).ToSql()
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EnginePostgres), "build delete", err)
	}
	res, err := e.pool.Exec(ctx, sql, args...)
	if err != nil {
		return storage.NotWritten(err.Error()), apperror.NewEngine(string(storage.EnginePostgres), "delete", err)
	}
	if res.RowsAffected() == 0 {
		return storage.NotUpdated(id, 0, "no document with this id"), nil
	}
	return storage.Deleted(id), nil
}

func (e *Engine) Close() error {
	e.pool.Close()
	return nil
}

func pgQuote(name string) string {
	return `"` + name + `"`
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = pgQuote(n)
	}
	return out
}
