package pebbledb

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"publica/internal/infrastructure/storage"
)

func encodeRecord(rec storage.RawRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeRecord decodes a stored value. Loose interface decoding keeps
// strings as strings instead of []byte; time.Time round-trips natively
// through the msgpack time extension.
func decodeRecord(data []byte) (storage.RawRecord, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	var rec storage.RawRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}
