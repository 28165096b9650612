// Package pebbleengine stores a collection in a Pebble LSM tree. Custom key
// orders are installed as a Pebble Comparer, so sorted collections over
// signed or composite keys iterate in their typed order.
package pebbleengine

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/andreyvit/offheap/engine"
	"github.com/andreyvit/offheap/logger"
)

// DefaultCacheSize is the block cache used when Config.CacheSize is 0.
const DefaultCacheSize = 8 << 20

type pebbleEngine struct {
	db        *pebble.DB
	path      string
	writeOpts *pebble.WriteOptions
	log       logger.Logger
}

var _ engine.Opener = Open

// Open opens or creates a Pebble store in cfg.Dir.
func Open(cfg engine.Config) (engine.Engine, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache := pebble.NewCache(size)
	defer cache.Unref()

	pOpts := &pebble.Options{
		Cache:    cache,
		Comparer: comparer(cfg.Comparer),
	}

	db, err := pebble.Open(cfg.Dir, pOpts)
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", cfg.Dir, err)
	}

	log := cfg.Log().With("engine", "pebble", "path", cfg.Dir)
	log.Debug("engine opened", "cache_size", size)
	return &pebbleEngine{
		db:        db,
		path:      cfg.Dir,
		writeOpts: pebble.NoSync,
		log:       log,
	}, nil
}

// comparer builds a Pebble comparer from c. Abbreviated keys are constant
// and separators are the identity, which is valid for any total order.
func comparer(c *engine.Comparer) *pebble.Comparer {
	if c == nil {
		return pebble.DefaultComparer
	}
	compare := c.Compare
	pc := *pebble.DefaultComparer
	pc.Name = "offheap." + c.Name
	pc.Compare = compare
	pc.Equal = func(a, b []byte) bool { return compare(a, b) == 0 }
	pc.AbbreviatedKey = func(key []byte) uint64 { return 0 }
	pc.Separator = func(dst, a, b []byte) []byte { return append(dst, a...) }
	pc.Successor = func(dst, a []byte) []byte { return append(dst, a...) }
	return &pc
}

func (e *pebbleEngine) get(key []byte) ([]byte, bool, error) {
	val, closer, err := e.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("pebble: get: %w", err)
	}
	defer closer.Close()

	// The returned slice is only valid until closer.Close().
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (e *pebbleEngine) Get(key []byte) ([]byte, bool, error) {
	if e.db == nil {
		return nil, false, engine.ErrClosed
	}
	return e.get(key)
}

func (e *pebbleEngine) Put(key, value []byte) ([]byte, bool, error) {
	if e.db == nil {
		return nil, false, engine.ErrClosed
	}
	prev, replaced, err := e.get(key)
	if err != nil {
		return nil, false, err
	}
	if err := e.db.Set(key, value, e.writeOpts); err != nil {
		return nil, false, fmt.Errorf("pebble: put: %w", err)
	}
	return prev, replaced, nil
}

func (e *pebbleEngine) Delete(key []byte) ([]byte, bool, error) {
	if e.db == nil {
		return nil, false, engine.ErrClosed
	}
	prev, deleted, err := e.get(key)
	if err != nil || !deleted {
		return nil, false, err
	}
	if err := e.db.Delete(key, e.writeOpts); err != nil {
		return nil, false, fmt.Errorf("pebble: delete: %w", err)
	}
	return prev, true, nil
}

func (e *pebbleEngine) Has(key []byte) (bool, error) {
	if e.db == nil {
		return false, engine.ErrClosed
	}
	_, closer, err := e.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("pebble: has: %w", err)
	}
	closer.Close()
	return true, nil
}

// Iterator reads from an implicit Pebble snapshot taken now.
func (e *pebbleEngine) Iterator() (engine.Iterator, error) {
	if e.db == nil {
		return nil, engine.ErrClosed
	}
	iter, err := e.db.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf("pebble: new iterator: %w", err)
	}
	return &pebbleIterator{iter: iter}, nil
}

func (e *pebbleEngine) Close() error {
	if e.db == nil {
		return nil
	}
	db := e.db
	e.db = nil

	if err := db.Flush(); err != nil {
		e.log.Error("flush failed during close", "error", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("pebble: close %s: %w", e.path, err)
	}
	e.log.Debug("engine closed")
	return nil
}

type pebbleIterator struct {
	iter    *pebble.Iterator
	started bool
	closed  bool
	value   []byte
	err     error
}

func (it *pebbleIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	var ok bool
	if it.started {
		ok = it.iter.Next()
	} else {
		it.started = true
		ok = it.iter.First()
	}
	if !ok {
		return false
	}
	val, err := it.iter.ValueAndErr()
	if err != nil {
		it.err = fmt.Errorf("pebble: iterator value: %w", err)
		return false
	}
	it.value = make([]byte, len(val))
	copy(it.value, val)
	return true
}

func (it *pebbleIterator) Key() []byte {
	raw := it.iter.Key()
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}

func (it *pebbleIterator) Value() []byte { return it.value }

func (it *pebbleIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	if it.closed {
		return nil
	}
	return it.iter.Error()
}

func (it *pebbleIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.iter.Close()
}
