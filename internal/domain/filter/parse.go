package filter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"publica/internal/core/apperror"
)

// Parse validates a raw tuple and converts it to an Expr.
//
// Accepted forms:
//
//	[field, value]            implicit equality
//	[field, op, value]        explicit operator
//	[field, "[]", [low,high]] inclusive range
//	[field, "in", [a,b,...]]  set membership
func Parse(raw []any) (Expr, error) {
	if len(raw) != 2 && len(raw) != 3 {
		return Expr{}, apperror.NewFilterParse(
			fmt.Sprintf("predicate must have 2 or 3 elements, got %d", len(raw)))
	}
	field, ok := raw[0].(string)
	if !ok || field == "" {
		return Expr{}, apperror.NewFilterParse("predicate field must be a non-empty string")
	}
	if len(raw) == 2 {
		return Expr{Field: field, Op: Eq, Value: raw[1]}, nil
	}

	opStr, ok := raw[1].(string)
	if !ok {
		return Expr{}, apperror.NewFilterParse("predicate operator must be a string")
	}
	op := Op(opStr)
	if !validOps[op] {
		return Expr{}, apperror.NewFilterParse(fmt.Sprintf("unknown operator %q", opStr))
	}

	switch op {
	case Between:
		bounds, ok := raw[2].([]any)
		if !ok || len(bounds) != 2 {
			return Expr{}, apperror.NewFilterParse(
				fmt.Sprintf("range predicate for field %q needs [low, high]", field))
		}
		if err := checkBounds(field, bounds[0], bounds[1]); err != nil {
			return Expr{}, err
		}
		return Expr{Field: field, Op: Between, Value: bounds[0], High: bounds[1]}, nil
	case In:
		if _, ok := raw[2].([]any); !ok {
			return Expr{}, apperror.NewFilterParse(
				fmt.Sprintf("membership predicate for field %q needs a list", field))
		}
	}
	return Expr{Field: field, Op: op, Value: raw[2]}, nil
}

// ParseString decodes the wire form of a filter: a JSON array of predicate
// tuples, transported as the opaque _filter parameter. An empty string means
// no filter.
func ParseString(s string) (Filter, error) {
	if s == "" {
		return nil, nil
	}
	var raw [][]any
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	if err := dec.Decode(&raw); err != nil {
		return nil, apperror.NewFilterParse("filter is not a JSON array of tuples").WithCause(err)
	}
	f := make(Filter, 0, len(raw))
	for _, tuple := range raw {
		expr, err := Parse(tuple)
		if err != nil {
			return nil, err
		}
		f = append(f, expr)
	}
	if err := f.Validate(nil); err != nil {
		return nil, err
	}
	return f, nil
}

// Serialize encodes a filter back to its wire form. The 3-element form is
// always emitted, so Parse(Serialize(f)) reproduces f exactly.
func (f Filter) Serialize() string {
	if len(f) == 0 {
		return ""
	}
	raw := make([][]any, len(f))
	for i, e := range f {
		if e.Op == Between {
			raw[i] = []any{e.Field, string(e.Op), []any{e.Value, e.High}}
		} else {
			raw[i] = []any{e.Field, string(e.Op), e.Value}
		}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		// values come from JSON or test literals; marshal cannot fail for them
		return ""
	}
	return string(data)
}
