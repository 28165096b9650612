// Package codec converts typed values to and from the byte strings stored by
// an engine, and orders typed keys.
//
// Every codec obeys the round-trip law: Decode(Encode(x)) == x for each legal
// x. Built-in codecs cover strings, fixed-width big-endian signed integers,
// raw bytes and the unit value used by sets. Any other type falls back to
// msgpack unless a codec has been registered for it with Register.
package codec

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrCorrupt is wrapped by every decoding failure.
var ErrCorrupt = errors.New("corrupt data")

// Codec converts values of type T to bytes and back.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// DataError describes bytes that could not be decoded.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Is(target error) bool {
	return target == ErrCorrupt
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}

var registry sync.Map // reflect.Type -> any (Codec[T])

// Register makes c the codec returned by For[T]. Registering a type twice
// replaces the earlier codec.
func Register[T any](c Codec[T]) {
	if c == nil {
		panic("codec: Register with nil codec")
	}
	registry.Store(reflect.TypeFor[T](), c)
}

// For returns the codec registered for T, or the msgpack codec if there is
// none.
func For[T any]() Codec[T] {
	if v, ok := registry.Load(reflect.TypeFor[T]()); ok {
		return v.(Codec[T])
	}
	return MsgPack[T]()
}

func init() {
	Register[string](String)
	Register[int16](Int16)
	Register[int32](Int32)
	Register[int64](Int64)
	Register[int](Int)
	Register[uint64](Uint64)
	Register[[]byte](Bytes)
	Register[struct{}](Unit)
}
