package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"publica/internal/infrastructure/storage"
	"publica/internal/metadata"
)

// SQLite has no dedicated temporal or boolean types. Dates are stored as
// RFC 3339 TEXT in UTC with a fixed nine-digit fraction, so every stored
// value has the same width and lexicographic order matches chronological
// order. Booleans are INTEGER 0/1, list-valued fields JSON TEXT. The codec
// is symmetric: encodeValue on the way in, decodeValue on the way out.

// timeLayout pads the fraction to nine digits. Format with RFC3339Nano would
// trim trailing zeros and break TEXT comparisons against sub-second values.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func columnType(f metadata.FieldDef) string {
	if f.Multiple {
		return "TEXT" // JSON
	}
	switch f.Type {
	case "int":
		return "INTEGER"
	case "float":
		return "REAL"
	case "boolean":
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func encodeValue(f metadata.FieldDef, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if f.Multiple {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return string(data), nil
	}
	switch f.Type {
	case "date", "datetime":
		switch t := v.(type) {
		case time.Time:
			return t.UTC().Format(timeLayout), nil
		case string:
			if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return parsed.UTC().Format(timeLayout), nil
			}
			return t, nil
		}
		return nil, fmt.Errorf("field %s: cannot store %T as a date", f.Name, v)
	case "boolean":
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return nil, fmt.Errorf("field %s: cannot store %T as a boolean", f.Name, v)
	default:
		return v, nil
	}
}

func decodeValue(f metadata.FieldDef, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if f.Multiple {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("field %s: expected JSON text, got %T", f.Name, v)
		}
		var out []any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return out, nil
	}
	switch f.Type {
	case "date", "datetime":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("field %s: expected RFC 3339 text, got %T", f.Name, v)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return t, nil
	case "boolean":
		if n, ok := v.(int64); ok {
			return n != 0, nil
		}
		return nil, fmt.Errorf("field %s: expected INTEGER boolean, got %T", f.Name, v)
	default:
		return v, nil
	}
}

func encodeRecord(def *metadata.ModelDef, rec storage.RawRecord) (map[string]any, error) {
	out := make(map[string]any, len(rec))
	for name, v := range rec {
		f, ok := def.Field(name)
		if !ok {
			continue // unknown fields never reach a column
		}
		enc, err := encodeValue(f, v)
		if err != nil {
			return nil, err
		}
		out[name] = enc
	}
	return out, nil
}

func decodeRecord(def *metadata.ModelDef, columns []string, values []any) (storage.RawRecord, error) {
	rec := make(storage.RawRecord, len(columns))
	for i, name := range columns {
		f, ok := def.Field(name)
		if !ok {
			continue
		}
		if values[i] == nil {
			continue
		}
		dec, err := decodeValue(f, values[i])
		if err != nil {
			return nil, err
		}
		rec[name] = dec
	}
	return rec, nil
}
