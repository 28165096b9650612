package codec

import (
	"fmt"

	"github.com/go-json-experiment/json"
)

// JSON returns a codec that stores values as deterministic JSON. It is never
// selected automatically; pass it explicitly when the stored bytes should be
// human-readable.
func JSON[T any]() Codec[T] {
	return jsonCodec[T]{}
}

type jsonCodec[T any] struct{}

func (jsonCodec[T]) Encode(v T) ([]byte, error) {
	data, err := json.Marshal(v, json.Deterministic(true))
	if err != nil {
		return nil, fmt.Errorf("json: encode %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, dataErrf(data, 0, err, "failed to decode JSON into %T", &v)
	}
	return v, nil
}
