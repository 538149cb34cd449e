package storage

// RawRecord is a stored document as handed over by an engine: field name to
// primitive or nested value. Temporal fields are time.Time in memory; the
// per-engine wire encoding (RFC 3339 string, native timestamp, msgpack time)
// is a translator responsibility and invisible above this package.
type RawRecord = map[string]any

// Clone makes a shallow copy of a record.
func Clone(rec RawRecord) RawRecord {
	out := make(RawRecord, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// Diff computes the changed fields of next relative to the last-read
// snapshot prev. Fields present in prev but absent from next are not treated
// as removals; a partial update only ever touches fields the caller set.
func Diff(prev, next RawRecord) RawRecord {
	changes := make(RawRecord)
	for key, value := range next {
		old, existed := prev[key]
		if !existed || !looseEqual(old, value) {
			changes[key] = value
		}
	}
	return changes
}

func looseEqual(a, b any) bool {
	as, aok := a.([]any)
	bs, bok := b.([]any)
	if aok && bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !looseEqual(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if aok && bok {
		if len(am) != len(bm) {
			return false
		}
		for k := range am {
			if !looseEqual(am[k], bm[k]) {
				return false
			}
		}
		return true
	}
	return equalScalar(a, b)
}
