package offheap

import (
	"bytes"

	"github.com/andreyvit/offheap/codec"
	"github.com/andreyvit/offheap/engine"
)

// source is what views need from a collection.
type source[K, V any] interface {
	Len() int
	ContainsKey(key K) (bool, error)
	Remove(key K) (V, bool, error)
	Clear() error

	codecs() (codec.Codec[K], codec.Codec[V])
	encodeKey(op string, key K) ([]byte, error)
	rawGet(kb []byte) ([]byte, bool, error)
	rawIterator() (engine.Iterator, error)
	errf(op string, key []byte, err error) error
}

func iterate[K, V, T any](src source[K, V], project func(kc codec.Codec[K], vc codec.Codec[V], k, v []byte) (T, error)) (*Iterator[T], error) {
	raw, err := src.rawIterator()
	if err != nil {
		return nil, err
	}
	kc, vc := src.codecs()
	return newIterator(raw, func(k, v []byte) (T, error) {
		t, err := project(kc, vc, k, v)
		if err != nil {
			return t, src.errf("iterate", k, err)
		}
		return t, nil
	}), nil
}

func rangeOver[T any](it *Iterator[T], err error, fn func(T) bool) error {
	if err != nil {
		return err
	}
	defer it.Close()
	for it.HasNext() {
		v, err := it.Next()
		if err != nil {
			return err
		}
		if !fn(v) {
			return nil
		}
	}
	return it.Err()
}

func collect[T any](it *Iterator[T], err error) ([]T, error) {
	var result []T
	err = rangeOver(it, err, func(v T) bool {
		result = append(result, v)
		return true
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// KeyView is a live view of a collection's keys. Removing through the view
// removes the whole entry.
type KeyView[K, V any] struct {
	src source[K, V]
}

func (kv *KeyView[K, V]) Len() int {
	return kv.src.Len()
}

func (kv *KeyView[K, V]) Contains(key K) (bool, error) {
	return kv.src.ContainsKey(key)
}

// Remove deletes key's entry and reports whether it existed.
func (kv *KeyView[K, V]) Remove(key K) (bool, error) {
	_, removed, err := kv.src.Remove(key)
	return removed, err
}

func (kv *KeyView[K, V]) Clear() error {
	return kv.src.Clear()
}

// Iterator decodes keys only.
func (kv *KeyView[K, V]) Iterator() (*Iterator[K], error) {
	return iterate(kv.src, func(kc codec.Codec[K], _ codec.Codec[V], k, _ []byte) (K, error) {
		return kc.Decode(k)
	})
}

func (kv *KeyView[K, V]) Range(fn func(key K) bool) error {
	it, err := kv.Iterator()
	return rangeOver(it, err, fn)
}

func (kv *KeyView[K, V]) Slice() ([]K, error) {
	it, err := kv.Iterator()
	return collect(it, err)
}

// First returns the first key in iteration order, or ErrNoSuchElement.
func (kv *KeyView[K, V]) First() (K, error) {
	it, err := kv.Iterator()
	if err != nil {
		var zero K
		return zero, err
	}
	defer it.Close()
	return it.Next()
}

// ValueView is a live view of a collection's values. Values are not
// indexed, so lookups by value fail with ErrNotScalable.
type ValueView[K, V any] struct {
	src source[K, V]
}

func (vv *ValueView[K, V]) Len() int {
	return vv.src.Len()
}

func (vv *ValueView[K, V]) Contains(value V) (bool, error) {
	return false, vv.src.errf("contains value", nil, ErrNotScalable)
}

func (vv *ValueView[K, V]) Remove(value V) (bool, error) {
	return false, vv.src.errf("remove value", nil, ErrNotScalable)
}

func (vv *ValueView[K, V]) Clear() error {
	return vv.src.Clear()
}

// Iterator decodes values only.
func (vv *ValueView[K, V]) Iterator() (*Iterator[V], error) {
	return iterate(vv.src, func(_ codec.Codec[K], vc codec.Codec[V], _, v []byte) (V, error) {
		return vc.Decode(v)
	})
}

func (vv *ValueView[K, V]) Range(fn func(value V) bool) error {
	it, err := vv.Iterator()
	return rangeOver(it, err, fn)
}

func (vv *ValueView[K, V]) Slice() ([]V, error) {
	it, err := vv.Iterator()
	return collect(it, err)
}

// EntryView is a live view of a collection's entries. An entry matches when
// its key is present and the stored value encodes to the same bytes.
type EntryView[K, V any] struct {
	src source[K, V]
}

func (ev *EntryView[K, V]) Len() int {
	return ev.src.Len()
}

func (ev *EntryView[K, V]) Contains(e Entry[K, V]) (bool, error) {
	kb, err := ev.src.encodeKey("contains entry", e.Key)
	if err != nil {
		return false, err
	}
	_, vc := ev.src.codecs()
	want, err := vc.Encode(e.Value)
	if err != nil {
		return false, ev.src.errf("contains entry", kb, err)
	}
	got, found, err := ev.src.rawGet(kb)
	if err != nil || !found {
		return false, err
	}
	return bytes.Equal(got, want), nil
}

// Remove deletes the entry only if both key and value match.
func (ev *EntryView[K, V]) Remove(e Entry[K, V]) (bool, error) {
	ok, err := ev.Contains(e)
	if err != nil || !ok {
		return false, err
	}
	_, removed, err := ev.src.Remove(e.Key)
	return removed, err
}

func (ev *EntryView[K, V]) Clear() error {
	return ev.src.Clear()
}

func (ev *EntryView[K, V]) Iterator() (*Iterator[Entry[K, V]], error) {
	return iterate(ev.src, func(kc codec.Codec[K], vc codec.Codec[V], k, v []byte) (Entry[K, V], error) {
		key, err := kc.Decode(k)
		if err != nil {
			return Entry[K, V]{}, err
		}
		value, err := vc.Decode(v)
		if err != nil {
			return Entry[K, V]{}, err
		}
		return Entry[K, V]{key, value}, nil
	})
}

func (ev *EntryView[K, V]) Range(fn func(e Entry[K, V]) bool) error {
	it, err := ev.Iterator()
	return rangeOver(it, err, fn)
}

func (ev *EntryView[K, V]) Slice() ([]Entry[K, V], error) {
	it, err := ev.Iterator()
	return collect(it, err)
}
