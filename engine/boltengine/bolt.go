// Package boltengine stores a collection in a single Bolt file. Bolt keeps
// keys in bytewise order only, so opening with a custom Comparer fails with
// engine.ErrUnsupportedOrdering.
package boltengine

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/andreyvit/offheap/engine"
	"github.com/andreyvit/offheap/logger"
)

// FileName is the Bolt file created inside the engine directory.
const FileName = "data.bolt"

var bucketName = []byte("data")

// Bolt rejects empty keys, so every stored key carries a one-byte prefix.
// The prefix is constant, so bytewise order is unchanged.
const keyPrefix = 0x00

func storedKey(key []byte) []byte {
	sk := make([]byte, 1+len(key))
	sk[0] = keyPrefix
	copy(sk[1:], key)
	return sk
}

func userKey(sk []byte) []byte {
	return engine.Clone(sk[1:])
}

type boltEngine struct {
	bdb  *bbolt.DB
	path string
	log  logger.Logger
}

var _ engine.Opener = Open

// Open opens or creates <cfg.Dir>/data.bolt. A positive CacheSize becomes
// Bolt's initial mmap size.
func Open(cfg engine.Config) (engine.Engine, error) {
	if cfg.Comparer != nil {
		return nil, fmt.Errorf("bolt: %w (%s)", engine.ErrUnsupportedOrdering, cfg.Comparer.Name)
	}

	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bopt.FreelistType = bbolt.FreelistMapType
	if cfg.CacheSize > 0 {
		bopt.InitialMmapSize = int(cfg.CacheSize)
	}

	path := filepath.Join(cfg.Dir, FileName)
	bdb, err := bbolt.Open(path, 0600, bopt)
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("bolt: create bucket: %w", err)
	}

	log := cfg.Log().With("engine", "bolt", "path", path)
	log.Debug("engine opened")
	return &boltEngine{bdb: bdb, path: path, log: log}, nil
}

// lookup distinguishes a missing key from an empty value, which Bucket.Get
// does not promise to do.
func lookup(b *bbolt.Bucket, key []byte) ([]byte, bool) {
	k, v := b.Cursor().Seek(key)
	if k == nil || !bytes.Equal(k, key) {
		return nil, false
	}
	return engine.Clone(nonNilValue(v)), true
}

func nonNilValue(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return v
}

func (e *boltEngine) view(fn func(b *bbolt.Bucket) error) error {
	if e.bdb == nil {
		return engine.ErrClosed
	}
	return e.bdb.View(func(tx *bbolt.Tx) error {
		return fn(tx.Bucket(bucketName))
	})
}

func (e *boltEngine) update(fn func(b *bbolt.Bucket) error) error {
	if e.bdb == nil {
		return engine.ErrClosed
	}
	return e.bdb.Update(func(tx *bbolt.Tx) error {
		return fn(tx.Bucket(bucketName))
	})
}

func (e *boltEngine) Get(key []byte) (value []byte, found bool, err error) {
	key = storedKey(key)
	err = e.view(func(b *bbolt.Bucket) error {
		value, found = lookup(b, key)
		return nil
	})
	return
}

func (e *boltEngine) Put(key, value []byte) (prev []byte, replaced bool, err error) {
	key = storedKey(key)
	err = e.update(func(b *bbolt.Bucket) error {
		prev, replaced = lookup(b, key)
		return b.Put(key, nonNilValue(value))
	})
	if err != nil {
		prev, replaced = nil, false
	}
	return
}

func (e *boltEngine) Delete(key []byte) (prev []byte, deleted bool, err error) {
	key = storedKey(key)
	err = e.update(func(b *bbolt.Bucket) error {
		prev, deleted = lookup(b, key)
		if !deleted {
			return nil
		}
		return b.Delete(key)
	})
	if err != nil {
		prev, deleted = nil, false
	}
	return
}

func (e *boltEngine) Has(key []byte) (found bool, err error) {
	key = storedKey(key)
	err = e.view(func(b *bbolt.Bucket) error {
		k, _ := b.Cursor().Seek(key)
		found = k != nil && bytes.Equal(k, key)
		return nil
	})
	return
}

// Iterator reads in pages, each in its own read transaction. A read
// transaction held across a write in the same goroutine can deadlock Bolt
// when the write needs to grow the mmap.
func (e *boltEngine) Iterator() (engine.Iterator, error) {
	if e.bdb == nil {
		return nil, engine.ErrClosed
	}
	return engine.Paged(func(after []byte, limit int) (keys, values [][]byte, err error) {
		err = e.view(func(b *bbolt.Bucket) error {
			c := b.Cursor()
			var k, v []byte
			if after == nil {
				k, v = c.First()
			} else {
				sk := storedKey(after)
				k, v = c.Seek(sk)
				if k != nil && bytes.Equal(k, sk) {
					k, v = c.Next()
				}
			}
			for ; k != nil && len(keys) < limit; k, v = c.Next() {
				keys = append(keys, userKey(k))
				values = append(values, engine.Clone(nonNilValue(v)))
			}
			return nil
		})
		return
	}, 0), nil
}

func (e *boltEngine) Close() error {
	if e.bdb == nil {
		return nil
	}
	bdb := e.bdb
	e.bdb = nil
	if err := bdb.Close(); err != nil {
		return fmt.Errorf("bolt: close %s: %w", e.path, err)
	}
	e.log.Debug("engine closed")
	return nil
}
