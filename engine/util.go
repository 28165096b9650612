package engine

import (
	"bytes"
	"slices"
)

func bytesCompare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Clone copies b, preserving the difference between nil and empty.
func Clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	if len(b) == 0 {
		return []byte{}
	}
	return slices.Clone(b)
}

// PageFunc returns up to limit entries with keys strictly after the given
// key, or from the first key when after is nil. Returned slices are owned by
// the caller.
type PageFunc func(after []byte, limit int) (keys, values [][]byte, err error)

// DefaultPageSize is the batch size used by Paged iterators.
const DefaultPageSize = 256

// Paged builds an Iterator that fetches entries in batches. Engines whose
// native cursors must not outlive a short read transaction use it so that
// writes can proceed between batches. The view is live: entries written
// behind the current position are not seen, entries written ahead are.
func Paged(fetch PageFunc, pageSize int) Iterator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &pagedIterator{fetch: fetch, pageSize: pageSize, pos: -1}
}

type pagedIterator struct {
	fetch    PageFunc
	pageSize int

	keys   [][]byte
	values [][]byte
	pos    int
	last   []byte
	eof    bool
	closed bool
	err    error
}

func (it *pagedIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	it.pos++
	if it.pos < len(it.keys) {
		it.last = it.keys[it.pos]
		return true
	}
	if it.eof {
		return false
	}
	keys, values, err := it.fetch(it.last, it.pageSize)
	if err != nil {
		it.err = err
		return false
	}
	if len(keys) < it.pageSize {
		it.eof = true
	}
	it.keys, it.values, it.pos = keys, values, 0
	if len(keys) == 0 {
		return false
	}
	it.last = keys[0]
	return true
}

func (it *pagedIterator) Key() []byte   { return it.keys[it.pos] }
func (it *pagedIterator) Value() []byte { return it.values[it.pos] }
func (it *pagedIterator) Err() error    { return it.err }

func (it *pagedIterator) Close() error {
	it.closed = true
	it.keys, it.values = nil, nil
	return nil
}
