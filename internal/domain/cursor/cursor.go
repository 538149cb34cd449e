// Package cursor implements the stateless pagination protocol.
//
// A cursor is rebuilt per request from submitted form or query fields; the
// server holds no session state. Paging works by deriving a new cursor from
// the previous response's echoed fields, which keeps requests idempotent and
// cacheable with no server affinity.
package cursor

import (
	"fmt"
	"net/url"
	"strconv"

	"publica/internal/core/apperror"
	"publica/internal/domain/filter"
)

// Wire field names submitted by the page.
const (
	FieldSkip   = "_skip"
	FieldCount  = "_count"
	FieldFilter = "_filter"
	FieldLimit  = "_limit"
	FieldDir    = "_dir"
	FieldIncl   = "_incl"
)

// DefaultLimit is the page size used when the request carries none.
const DefaultLimit = 10

// AllowedLimits enumerates the valid page sizes. Anything else is rejected,
// not clamped, so client bugs surface instead of being masked.
var AllowedLimits = []int{5, 10, 15, 20, 25, 50}

// Paging intents relative to the submitted skip.
const (
	DirPrevious = -1
	DirRefresh  = 0
	DirNext     = 1
)

// Cursor describes pagination, sort and filter state for one request.
// It is an immutable value object; deriving methods return a copy.
type Cursor struct {
	// Skip is the offset of the first record of the page.
	Skip int

	// Count is the total number of matching records, computed lazily by the
	// backend. On some engines obtaining it costs a full scan.
	Count int

	// Limit is the page size, one of AllowedLimits.
	Limit int

	// Dir is the paging intent: DirPrevious, DirRefresh or DirNext.
	Dir int

	// Filter is the predicate conjunction for the query, possibly empty.
	Filter filter.Filter

	// Sort names the sort field, with a leading '-' for descending.
	// It is supplied by the view, not by the wire fields.
	Sort string

	// IncludeInactive also returns soft-deleted items when set.
	IncludeInactive bool
}

// Default returns the initial cursor: first page, default limit, refresh.
func Default() Cursor {
	return Cursor{Limit: DefaultLimit}
}

// FromValues builds a cursor from submitted wire fields. Missing fields fall
// back to the initial state; malformed or out-of-range fields are rejected.
func FromValues(v url.Values) (Cursor, error) {
	c := Default()

	var err error
	if c.Skip, err = intField(v, FieldSkip, 0); err != nil {
		return Cursor{}, err
	}
	if c.Skip < 0 {
		return Cursor{}, apperror.NewInvalidInput("_skip must not be negative")
	}
	if c.Count, err = intField(v, FieldCount, 0); err != nil {
		return Cursor{}, err
	}
	if c.Count < 0 {
		return Cursor{}, apperror.NewInvalidInput("_count must not be negative")
	}

	if raw := v.Get(FieldLimit); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || !limitAllowed(limit) {
			return Cursor{}, apperror.NewInvalidInput(
				fmt.Sprintf("_limit %q is not one of the allowed page sizes %v", raw, AllowedLimits))
		}
		c.Limit = limit
	}

	if raw := v.Get(FieldDir); raw != "" {
		dir, convErr := strconv.Atoi(raw)
		if convErr != nil || dir < DirPrevious || dir > DirNext {
			return Cursor{}, apperror.NewInvalidInput("_dir must be -1, 0 or 1")
		}
		c.Dir = dir
	}

	switch raw := v.Get(FieldIncl); raw {
	case "", "0":
	case "1":
		c.IncludeInactive = true
	default:
		return Cursor{}, apperror.NewInvalidInput("_incl must be 0 or 1")
	}

	c.Filter, err = filter.ParseString(v.Get(FieldFilter))
	if err != nil {
		return Cursor{}, err
	}
	return c, nil
}

// Values encodes the cursor back to wire fields for the response echo.
func (c Cursor) Values() url.Values {
	v := url.Values{}
	v.Set(FieldSkip, strconv.Itoa(c.Skip))
	v.Set(FieldCount, strconv.Itoa(c.Count))
	v.Set(FieldLimit, strconv.Itoa(c.Limit))
	v.Set(FieldDir, strconv.Itoa(c.Dir))
	incl := "0"
	if c.IncludeInactive {
		incl = "1"
	}
	v.Set(FieldIncl, incl)
	if s := c.Filter.Serialize(); s != "" {
		v.Set(FieldFilter, s)
	}
	return v
}

// Advance derives the cursor for the current request once the total match
// count is known: the submitted skip moves by Dir pages and is clamped to the
// valid range. The receiver is unchanged.
func (c Cursor) Advance(count int) Cursor {
	out := c
	out.Count = count
	out.Skip = c.Skip + c.Dir*c.Limit
	if out.Skip > count {
		out.Skip = count
	}
	if out.Skip < 0 {
		out.Skip = 0
	}
	return out
}

// Next derives the cursor a "next page" submission would produce.
func (c Cursor) Next() Cursor {
	out := c
	out.Dir = DirNext
	return out
}

// Previous derives the cursor a "previous page" submission would produce.
func (c Cursor) Previous() Cursor {
	out := c
	out.Dir = DirPrevious
	return out
}

// Refresh derives the cursor a re-submission of the same page would produce.
func (c Cursor) Refresh() Cursor {
	out := c
	out.Dir = DirRefresh
	return out
}

// HasPrevious reports whether a page precedes the current one.
func (c Cursor) HasPrevious() bool {
	return c.Skip > 0
}

// HasNext reports whether records remain past the current page.
func (c Cursor) HasNext() bool {
	return c.Skip+c.Limit < c.Count
}

func intField(v url.Values, name string, fallback int) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.NewInvalidInput(fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

func limitAllowed(limit int) bool {
	for _, allowed := range AllowedLimits {
		if limit == allowed {
			return true
		}
	}
	return false
}
