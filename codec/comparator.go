package codec

import (
	"bytes"
	"cmp"
	"reflect"
	"runtime"
)

// Comparator orders typed values: negative when a < b, zero when equal,
// positive when a > b. It must be a total order.
type Comparator[T any] func(a, b T) int

// Natural orders a type by its built-in ordering.
func Natural[T cmp.Ordered]() Comparator[T] {
	return cmp.Compare[T]
}

// NilsLast lifts c to pointers; nil sorts after every non-nil value.
func NilsLast[T any](c Comparator[T]) Comparator[*T] {
	return func(a, b *T) int {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		case b == nil:
			return -1
		default:
			return c(*a, *b)
		}
	}
}

// Reverse inverts c.
func Reverse[T any](c Comparator[T]) Comparator[T] {
	return func(a, b T) int { return c(b, a) }
}

// Bytewise is the lexicographic order of raw bytes, the native order of every
// engine.
func Bytewise(a, b []byte) int {
	return bytes.Compare(a, b)
}

// ByteComparer adapts a typed comparator to encoded keys. Keys that fail to
// decode sort bytewise after all decodable keys, so a corrupt key cannot make
// the order inconsistent.
func ByteComparer[T any](c Codec[T], order Comparator[T]) func(a, b []byte) int {
	return func(a, b []byte) int {
		va, errA := c.Decode(a)
		vb, errB := c.Decode(b)
		switch {
		case errA != nil && errB != nil:
			return bytes.Compare(a, b)
		case errA != nil:
			return 1
		case errB != nil:
			return -1
		}
		if r := order(va, vb); r != 0 {
			return r
		}
		// Distinct encodings of equal values must not collapse into one key.
		return bytes.Compare(a, b)
	}
}

// Name identifies c by the function implementing it, which tells apart
// Natural, Reverse(Natural) and user functions but not two closures built by
// the same constructor from different arguments.
func Name[T any](c Comparator[T]) string {
	if c == nil {
		return ""
	}
	if f := runtime.FuncForPC(reflect.ValueOf(c).Pointer()); f != nil {
		return f.Name()
	}
	return reflect.TypeOf(c).String()
}
