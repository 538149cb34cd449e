package item

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"publica/internal/core/apperror"
	"publica/internal/infrastructure/storage"
	"publica/internal/metadata"
)

// coerce converts a submitted document (JSON- or form-decoded, so numbers
// are float64 and dates are strings) into typed field values. Unknown and
// auto fields are dropped; the service owns the auto fields and engines
// never see undeclared ones.
func coerce(def *metadata.ModelDef, atoms *metadata.AtomSet, doc map[string]any) (storage.RawRecord, error) {
	rec := make(storage.RawRecord, len(doc))
	for name, value := range doc {
		f, ok := def.Field(name)
		if !ok || f.Auto {
			continue
		}
		if value == nil {
			continue
		}
		if f.Multiple {
			list, ok := value.([]any)
			if !ok {
				return nil, apperror.NewInvalidInput(fmt.Sprintf("field %q must be a list", name))
			}
			out := make([]any, len(list))
			for i, el := range list {
				v, err := coerceValue(f, atoms, el)
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
			rec[name] = out
			continue
		}
		v, err := coerceValue(f, atoms, value)
		if err != nil {
			return nil, err
		}
		rec[name] = v
	}
	return rec, nil
}

func coerceValue(f metadata.FieldDef, atoms *metadata.AtomSet, value any) (any, error) {
	switch f.Type {
	case "int":
		switch n := value.(type) {
		case float64:
			if n != float64(int64(n)) {
				return nil, apperror.NewInvalidInput(fmt.Sprintf("field %q must be an integer", f.Name))
			}
			return int64(n), nil
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case string:
			return convertString(f, atoms, n)
		}
	case "float":
		switch n := value.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case string:
			return convertString(f, atoms, n)
		}
	case "decimal":
		// Stored as the canonical decimal string; parsing normalizes input
		// like "1.50" vs "1.5000".
		if s, ok := value.(string); ok {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, apperror.NewInvalidInput(fmt.Sprintf("field %q: %v", f.Name, err))
			}
			return d.String(), nil
		}
		if n, ok := value.(float64); ok {
			return decimal.NewFromFloat(n).String(), nil
		}
	case "boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		if s, ok := value.(string); ok {
			return convertString(f, atoms, s)
		}
	case "date", "datetime":
		switch t := value.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return parsed.UTC(), nil
			}
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return parsed.UTC(), nil
			}
			v, err := convertString(f, atoms, t)
			if err != nil {
				return nil, err
			}
			if parsed, ok := v.(time.Time); ok {
				return parsed.UTC(), nil
			}
			return v, nil
		}
	default:
		if s, ok := value.(string); ok {
			return s, nil
		}
	}
	return nil, apperror.NewInvalidInput(fmt.Sprintf("field %q: cannot accept %T value", f.Name, value))
}

func convertString(f metadata.FieldDef, atoms *metadata.AtomSet, s string) (any, error) {
	atom, ok := atoms.Get(f.Type)
	if !ok || atom.Convert == nil {
		return s, nil
	}
	v, err := atom.Convert(s)
	if err != nil {
		return nil, apperror.NewInvalidInput(fmt.Sprintf("field %q: %v", f.Name, err))
	}
	return v, nil
}
