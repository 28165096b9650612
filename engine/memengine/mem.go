// Package memengine is an in-memory engine ordered by a B-tree. It honours
// custom comparers and is meant for tests and small scratch collections; the
// directory it is given stays empty.
package memengine

import (
	"sync"

	"github.com/google/btree"

	"github.com/andreyvit/offheap/engine"
)

const degree = 32

type memKV struct {
	key   []byte
	value []byte
}

type memEngine struct {
	mu     sync.Mutex
	tree   *btree.BTreeG[memKV]
	less   btree.LessFunc[memKV]
	closed bool
}

var _ engine.Opener = Open

// Open returns an empty in-memory engine.
func Open(cfg engine.Config) (engine.Engine, error) {
	compare := cfg.Compare()
	less := func(a, b memKV) bool {
		return compare(a.key, b.key) < 0
	}
	return &memEngine{
		tree: btree.NewG(degree, less),
		less: less,
	}, nil
}

func (e *memEngine) Get(key []byte) ([]byte, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, false, engine.ErrClosed
	}
	kv, ok := e.tree.Get(memKV{key: key})
	if !ok {
		return nil, false, nil
	}
	return engine.Clone(kv.value), true, nil
}

func (e *memEngine) Put(key, value []byte) ([]byte, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, false, engine.ErrClosed
	}
	if value == nil {
		value = []byte{}
	}
	prev, replaced := e.tree.ReplaceOrInsert(memKV{
		key:   engine.Clone(key),
		value: engine.Clone(value),
	})
	if !replaced {
		return nil, false, nil
	}
	return prev.value, true, nil
}

func (e *memEngine) Delete(key []byte) ([]byte, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, false, engine.ErrClosed
	}
	prev, ok := e.tree.Delete(memKV{key: key})
	if !ok {
		return nil, false, nil
	}
	return prev.value, true, nil
}

func (e *memEngine) Has(key []byte) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, engine.ErrClosed
	}
	return e.tree.Has(memKV{key: key}), nil
}

// Iterator walks a copy-on-write clone taken now, so later writes are not
// visible to it.
func (e *memEngine) Iterator() (engine.Iterator, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, engine.ErrClosed
	}
	snap := e.tree.Clone()
	return engine.Paged(func(after []byte, limit int) (keys, values [][]byte, err error) {
		visit := func(kv memKV) bool {
			if after != nil && !e.less(memKV{key: after}, kv) {
				return true
			}
			keys = append(keys, engine.Clone(kv.key))
			values = append(values, engine.Clone(kv.value))
			return len(keys) < limit
		}
		if after == nil {
			snap.Ascend(visit)
		} else {
			snap.AscendGreaterOrEqual(memKV{key: after}, visit)
		}
		return keys, values, nil
	}, 0), nil
}

func (e *memEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.tree.Clear(false)
	return nil
}
