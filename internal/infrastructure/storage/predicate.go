package storage

import (
	"regexp"
	"sort"

	"publica/internal/core/apperror"
	"publica/internal/domain/filter"
)

// Predicate decides whether a stored record matches a filter. Used by the
// engines without a query language of their own (memory, pebble), which scan
// and apply the predicate record by record.
type Predicate func(RawRecord) bool

// CompilePredicate turns a filter into a matching closure. Regexp patterns
// use the host dialect and are compiled once here; an invalid pattern fails
// compilation, not every record.
//
// An absent field never matches, whatever the operator.
func CompilePredicate(f filter.Filter) (Predicate, error) {
	checks := make([]Predicate, 0, len(f))
	for _, e := range f {
		check, err := compileExpr(e)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	return func(rec RawRecord) bool {
		for _, check := range checks {
			if !check(rec) {
				return false
			}
		}
		return true
	}, nil
}

func compileExpr(e filter.Expr) (Predicate, error) {
	field := e.Field
	switch e.Op {
	case filter.Eq:
		want := e.Value
		return present(field, func(v any) bool { return filter.Equal(v, want) }), nil
	case filter.NotEq:
		want := e.Value
		return present(field, func(v any) bool { return !filter.Equal(v, want) }), nil
	case filter.Match:
		pattern, ok := e.Value.(string)
		if !ok {
			return nil, apperror.NewFilterParse("operator =~ needs a string pattern")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, apperror.NewFilterParse("invalid pattern for field " + field + ": " + err.Error())
		}
		return present(field, func(v any) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}), nil
	case filter.Between:
		low, high := e.Value, e.High
		return present(field, func(v any) bool {
			cl, ok := filter.Compare(v, low)
			if !ok || cl < 0 {
				return false
			}
			ch, ok := filter.Compare(v, high)
			return ok && ch <= 0
		}), nil
	case filter.Gt:
		return ordered(field, e.Value, func(c int) bool { return c > 0 }), nil
	case filter.GtOrEq:
		return ordered(field, e.Value, func(c int) bool { return c >= 0 }), nil
	case filter.Lt:
		return ordered(field, e.Value, func(c int) bool { return c < 0 }), nil
	case filter.LtOrEq:
		return ordered(field, e.Value, func(c int) bool { return c <= 0 }), nil
	case filter.In:
		set, ok := e.Value.([]any)
		if !ok {
			return nil, apperror.NewFilterParse("operator in needs a list of candidates")
		}
		return present(field, func(v any) bool {
			for _, cand := range set {
				if filter.Equal(v, cand) {
					return true
				}
			}
			return false
		}), nil
	default:
		return nil, apperror.NewFilterParse("unknown operator " + string(e.Op))
	}
}

func present(field string, match func(any) bool) Predicate {
	return func(rec RawRecord) bool {
		v, ok := rec[field]
		if !ok || v == nil {
			return false
		}
		return match(v)
	}
}

func ordered(field string, bound any, accept func(int) bool) Predicate {
	return present(field, func(v any) bool {
		c, ok := filter.Compare(v, bound)
		return ok && accept(c)
	})
}

// CompileSort builds a less function for a "field" / "-field" sort spec.
// Records missing the field sort first; incomparable pairs keep their
// relative order under a stable sort.
func CompileSort(spec string) func(a, b RawRecord) bool {
	field, descending := SortField(spec)
	if field == "" {
		return nil
	}
	return func(a, b RawRecord) bool {
		av, aok := a[field]
		bv, bok := b[field]
		if !aok && !bok {
			return false
		}
		if !aok {
			return !descending
		}
		if !bok {
			return descending
		}
		c, ok := filter.Compare(av, bv)
		if !ok {
			return false
		}
		if descending {
			return c > 0
		}
		return c < 0
	}
}

// SortRecords stable-sorts records in place by the compiled less function.
func SortRecords(recs []RawRecord, less func(a, b RawRecord) bool) {
	if less == nil {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool { return less(recs[i], recs[j]) })
}

func equalScalar(a, b any) bool {
	return filter.Equal(a, b)
}
