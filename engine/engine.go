// Package engine defines the byte-level primitives a storage engine must
// provide to back an offheap collection.
//
// Engines store opaque keys and values. They must tell "key not found" apart
// from "key found with an empty value": Get, Put and Delete report presence
// with a separate boolean, and an empty stored value comes back as a non-nil,
// zero-length slice.
//
// Implementations live in subpackages: boltengine (Bolt, the default for unsorted collections),
// pebbleengine (Pebble) and memengine (in-memory B-tree). The enginetest
// package holds the conformance suite every implementation runs.
package engine

import (
	"errors"

	"github.com/andreyvit/offheap/logger"
)

var (
	ErrClosed = errors.New("engine: closed")

	// ErrUnsupportedOrdering is returned by Open when the engine cannot
	// iterate in the order of the requested Comparer.
	ErrUnsupportedOrdering = errors.New("engine: custom key ordering not supported")
)

// Engine is a single open key-value store. Engines are not required to be
// safe for concurrent use.
type Engine interface {
	// Get returns the value stored under key. found is false when the key
	// does not exist.
	Get(key []byte) (value []byte, found bool, err error)

	// Put stores value under key and returns the value it replaced.
	Put(key, value []byte) (prev []byte, replaced bool, err error)

	// Delete removes key and returns the value it had.
	Delete(key []byte) (prev []byte, deleted bool, err error)

	// Has reports whether key exists without fetching its value.
	Has(key []byte) (bool, error)

	// Iterator returns a forward iterator over all entries in ascending key
	// order. Iterators are not restartable; ask for a new one instead.
	Iterator() (Iterator, error)

	// Close releases the engine. Closing twice is a no-op.
	Close() error
}

// Iterator walks entries in ascending key order.
//
//	it, err := eng.Iterator()
//	...
//	defer it.Close()
//	for it.Next() {
//		use(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
//
// Key and Value return slices that stay valid after the iterator advances.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// Comparer is a key order plugged into an engine. Name identifies the order
// in persisted files; reopening a store with a differently named comparer is
// an error for engines that persist it.
type Comparer struct {
	Name    string
	Compare func(a, b []byte) int
}

// Config is what an engine receives when it is opened.
type Config struct {
	// Dir is the engine's own directory. It exists when Open is called.
	Dir string

	// CacheSize is an engine-specific cache budget in bytes; 0 picks the
	// engine's default.
	CacheSize int64

	// Comparer orders keys. nil means bytewise order.
	Comparer *Comparer

	// Logger receives operational messages. nil means logger.Default().
	Logger logger.Logger
}

// Compare returns the configured key order, falling back to bytewise.
func (c *Config) Compare() func(a, b []byte) int {
	if c.Comparer != nil && c.Comparer.Compare != nil {
		return c.Comparer.Compare
	}
	return bytesCompare
}

// Log returns the configured logger, falling back to logger.Default().
func (c *Config) Log() logger.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Default()
}

// Opener opens an engine in cfg.Dir.
type Opener func(cfg Config) (Engine, error)
