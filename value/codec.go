package value

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes v to msgpack. Map keys are sorted so equal values
// produce identical bytes.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v.Native()); err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses msgpack produced by Encode.
// Integer encodings decode as KindInt and float encodings as KindFloat.
func Decode(data []byte) (Value, error) {
	var raw any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return Value{}, fmt.Errorf("decode value: %w", err)
	}
	return FromNative(raw)
}
