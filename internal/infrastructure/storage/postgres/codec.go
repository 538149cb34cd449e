package postgres

import (
	"encoding/json"
	"fmt"

	"publica/internal/infrastructure/storage"
	"publica/internal/metadata"
)

// PostgreSQL carries temporal and boolean values natively (timestamptz,
// boolean); only list-valued fields need help, stored as JSONB. The decimal
// atom is stored as TEXT to keep exact precision out of float64.

func columnType(f metadata.FieldDef) string {
	if f.Multiple {
		return "JSONB"
	}
	switch f.Type {
	case "int":
		return "BIGINT"
	case "float":
		return "DOUBLE PRECISION"
	case "boolean":
		return "BOOLEAN"
	case "date", "datetime":
		return "TIMESTAMPTZ"
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
		return data, nil
	}
	return v, nil
}

func decodeValue(f metadata.FieldDef, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if f.Multiple {
		switch t := v.(type) {
		case []any:
			return t, nil // pgx already unmarshalled the JSONB
		case []byte:
			var out []any
			if err := json.Unmarshal(t, &out); err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return out, nil
		}
		return nil, fmt.Errorf("field %s: unexpected JSONB carrier %T", f.Name, v)
	}
	return v, nil
}

func encodeRecord(def *metadata.ModelDef, rec storage.RawRecord) (map[string]any, error) {
	out := make(map[string]any, len(rec))
	for name, v := range rec {
		f, ok := def.Field(name)
		if !ok {
			continue
		}
		enc, err := encodeValue(f, v)
		if err != nil {
			return nil, err
		}
		out[name] = enc
	}
	return out, nil
}

func decodeRow(def *metadata.ModelDef, row map[string]any) (storage.RawRecord, error) {
	rec := make(storage.RawRecord, len(row))
	for name, v := range row {
		f, ok := def.Field(name)
		if !ok || v == nil {
			continue
		}
		dec, err := decodeValue(f, v)
		if err != nil {
			return nil, err
		}
		rec[name] = dec
	}
	return rec, nil
}
