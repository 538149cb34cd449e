// Package filter defines the backend-neutral predicate language.
//
// A predicate is a tuple over one field: (field, value) for implicit equality
// or (field, operator, value). A full filter is a conjunction of predicates
// over distinct fields; the core supports no nested disjunction. Translators
// convert filters to the native query form of each storage engine.
package filter

import (
	"fmt"
	"time"

	"publica/internal/core/apperror"
)

// Op identifies a comparison operator.
type Op string

const (
	Eq      Op = "=="
	NotEq   Op = "!="
	Match   Op = "=~" // regex match in the engine's native dialect
	Between Op = "[]" // inclusive on both ends
	Gt      Op = ">"
	GtOrEq  Op = ">="
	Lt      Op = "<"
	LtOrEq  Op = "<="
	In      Op = "in" // value is a member of a set
)

var validOps = map[Op]bool{
	Eq: true, NotEq: true, Match: true, Between: true,
	Gt: true, GtOrEq: true, Lt: true, LtOrEq: true, In: true,
}

// Expr is a predicate over one field. High is populated only for Between;
// the tagged form avoids the ambiguous positional decoding of raw tuples.
type Expr struct {
	Field string
	Op    Op
	Value any
	High  any
}

// Filter is a conjunction (logical AND) of expressions over distinct fields.
type Filter []Expr

// FieldKnown reports whether a field may be filtered on.
type FieldKnown func(field string) bool

// New builds a single-expression filter.
func New(field string, op Op, value any) Filter {
	return Filter{{Field: field, Op: op, Value: value}}
}

// Range builds an inclusive-range filter. Bounds are validated on Parse, not
// here; use Validate for programmatically built filters.
func Range(field string, low, high any) Filter {
	return Filter{{Field: field, Op: Between, Value: low, High: high}}
}

// With returns a new filter extended by one expression. The receiver is not
// modified; filters are immutable value objects owned by the request scope.
func (f Filter) With(field string, op Op, value any) Filter {
	out := make(Filter, len(f), len(f)+1)
	copy(out, f)
	return append(out, Expr{Field: field, Op: op, Value: value})
}

// Fields returns the fields referenced by the filter, in filter order.
func (f Filter) Fields() []string {
	out := make([]string, len(f))
	for i, e := range f {
		out[i] = e.Field
	}
	return out
}

// Validate checks operator membership, field distinctness, range bounds and
// that every field is known to the target schema.
func (f Filter) Validate(known FieldKnown) error {
	seen := make(map[string]bool, len(f))
	for _, e := range f {
		if !validOps[e.Op] {
			return apperror.NewFilterParse(fmt.Sprintf("unknown operator %q", string(e.Op)))
		}
		if seen[e.Field] {
			return apperror.NewFilterParse(fmt.Sprintf("duplicate predicate for field %q", e.Field))
		}
		seen[e.Field] = true
		if known != nil && !known(e.Field) {
			return apperror.NewFilterParse(fmt.Sprintf("field %q is not declared in the schema", e.Field))
		}
		if e.Op == Between {
			if err := checkBounds(e.Field, e.Value, e.High); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkBounds rejects reversed range bounds. Bounds are inclusive on both
// ends across every backend; a reversed range is an error, never auto-swapped.
func checkBounds(field string, low, high any) error {
	c, ok := Compare(low, high)
	if !ok {
		return apperror.NewFilterParse(
			fmt.Sprintf("range bounds for field %q are not comparable (%T vs %T)", field, low, high))
	}
	if c > 0 {
		return apperror.NewFilterParse(
			fmt.Sprintf("reversed range bounds for field %q: low > high", field))
	}
	return nil
}

// Compare orders two values of a comparable kind: numbers, strings, times and
// booleans (false < true). Strings in date or RFC 3339 layout compare against
// time values. Returns ok=false for incomparable kinds; callers decide whether
// that is a parse error or a non-match.
func Compare(a, b any) (int, bool) {
	if at, aok := asTime(a); aok {
		if bt, bok := asTime(b); bok {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			}
			return 0, true
		}
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			switch {
			case as < bs:
				return -1, true
			case as > bs:
				return 1, true
			}
			return 0, true
		}
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			switch {
			case ab == bb:
				return 0, true
			case bb:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

// Equal reports loose equality across the numeric kinds and times. Lists and
// objects, as decoded from wire JSON, compare element-wise; the == fallback is
// reserved for comparable scalars.
func Equal(a, b any) bool {
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	if as, ok := a.([]any); ok {
		bs, ok := b.([]any)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	if _, ok := b.([]any); ok {
		return false
	}
	if am, ok := a.(map[string]any); ok {
		bm, ok := b.(map[string]any)
		if !ok || len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, present := bm[k]
			if !present || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	if _, ok := b.(map[string]any); ok {
		return false
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// time layouts accepted in filter values submitted as strings
var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
