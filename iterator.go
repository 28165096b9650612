package offheap

import (
	"github.com/andreyvit/offheap/engine"
)

// Entry is a decoded key-value pair.
type Entry[K, V any] struct {
	Key   K
	Value V
}

// Iterator walks a view, decoding one element at a time. It must be closed
// when abandoned before exhaustion; it closes itself once exhausted.
//
// Modifying the collection while iterating is allowed. Entries written
// during iteration may or may not be observed.
type Iterator[T any] struct {
	raw     engine.Iterator
	project func(k, v []byte) (T, error)
	cur     T
	fetched bool
	done    bool
	err     error
}

func newIterator[T any](raw engine.Iterator, project func(k, v []byte) (T, error)) *Iterator[T] {
	return &Iterator[T]{raw: raw, project: project}
}

func (it *Iterator[T]) advance() {
	if it.fetched || it.done {
		return
	}
	if !it.raw.Next() {
		it.finish(it.raw.Err())
		return
	}
	v, err := it.project(it.raw.Key(), it.raw.Value())
	if err != nil {
		it.finish(err)
		return
	}
	it.cur, it.fetched = v, true
}

func (it *Iterator[T]) finish(err error) {
	it.done = true
	if err != nil {
		it.err = err
	}
	if cerr := it.raw.Close(); cerr != nil && it.err == nil {
		it.err = cerr
	}
}

// HasNext reports whether Next will return an element. It returns false
// on a failure, which Next then reports.
func (it *Iterator[T]) HasNext() bool {
	it.advance()
	return it.fetched
}

// Next returns the next element, or ErrNoSuchElement after the last one.
func (it *Iterator[T]) Next() (T, error) {
	var zero T
	it.advance()
	if !it.fetched {
		if it.err != nil {
			return zero, it.err
		}
		return zero, ErrNoSuchElement
	}
	v := it.cur
	it.cur, it.fetched = zero, false
	return v, nil
}

// Err returns the failure that stopped iteration, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// Remove always fails with ErrUnsupported; remove through the collection.
func (it *Iterator[T]) Remove() error {
	return ErrUnsupported
}

func (it *Iterator[T]) Close() error {
	if it.done {
		return nil
	}
	it.done, it.fetched = true, false
	return it.raw.Close()
}
