package offheap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andreyvit/offheap/codec"
	"github.com/andreyvit/offheap/engine"
	"github.com/andreyvit/offheap/logger"
)

// Subdirectories of a linked collection.
const (
	linkedDataDir = "data"
	linkedI2KDir  = "i2k"
	linkedK2IDir  = "k2i"
)

// LinkedMap is a Map that iterates in insertion order. Replacing the value
// of an existing key keeps its position; removing and re-adding a key moves
// it to the end.
//
// Order is kept in two index maps: i2k from insertion sequence to key and
// k2i from key to sequence. The three maps are updated one after another
// without a transaction, indexes first, so a failure in the middle can
// leave index entries without data. Iteration skips those.
type LinkedMap[K, V any] struct {
	id         uint64
	dir        string
	persistent bool
	data       *Map[K, V]
	k2i        *Map[K, int64]
	i2k        *Map[int64, K]
	seq        int64
	reg        *Registry
	log        logger.Logger
	kind       string
}

// OpenLinkedMap opens an insertion-ordered map.
func OpenLinkedMap[K, V any](kc codec.Codec[K], vc codec.Codec[V], opts ...Option) (*LinkedMap[K, V], error) {
	return openLinkedMap(kc, vc, "linkedmap", buildConfig(opts))
}

func openLinkedMap[K, V any](kc codec.Codec[K], vc codec.Codec[V], kind string, cfg *Config) (*LinkedMap[K, V], error) {
	if kc == nil || vc == nil {
		return nil, fmt.Errorf("%w: nil codec", ErrInvalidArgument)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	dir, err := cfg.dir()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if !cfg.Persistent {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("%w: wipe %s: %w", ErrEngine, dir, err)
		}
	}

	l := &LinkedMap[K, V]{
		id:         nextID(),
		dir:        dir,
		persistent: cfg.Persistent,
		reg:        cfg.registry(),
		kind:       kind,
	}
	l.log = cfg.log().With("collection", l.id)

	fail := func(err error) (*LinkedMap[K, V], error) {
		l.shutdown()
		return nil, err
	}
	if l.data, err = openMap(kc, vc, nil, kind+".data", false, cfg.child(dir, linkedDataDir)); err != nil {
		return fail(err)
	}
	if l.k2i, err = openMap(kc, codec.Int64, nil, kind+".k2i", false, cfg.child(dir, linkedK2IDir)); err != nil {
		return fail(err)
	}
	if l.i2k, err = openMap(codec.Int64, kc, nil, kind+".i2k", false, cfg.child(dir, linkedI2KDir)); err != nil {
		return fail(err)
	}
	if cfg.Persistent {
		if err := l.recoverSeq(); err != nil {
			return fail(err)
		}
	}
	l.track()
	return l, nil
}

func (l *LinkedMap[K, V]) track() {
	track(l.reg, l, l.id, fmt.Sprintf("%s %s", l.kind, l.dir), l.closer())
}

// closer captures the storage resources only.
func (l *LinkedMap[K, V]) closer() func() error {
	var closers []func() error
	for _, r := range l.resources() {
		closers = append(closers, r.shutdown)
	}
	dir, persistent := l.dir, l.persistent
	return func() error {
		err := closeAll(closers...)
		if !persistent {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				err = errors.Join(err, rmErr)
			}
		}
		return err
	}
}

func (l *LinkedMap[K, V]) resources() []*resource {
	var result []*resource
	if l.data != nil {
		result = append(result, l.data.res)
	}
	if l.k2i != nil {
		result = append(result, l.k2i.res)
	}
	if l.i2k != nil {
		result = append(result, l.i2k.res)
	}
	return result
}

func (l *LinkedMap[K, V]) shutdown() error {
	return l.closer()()
}

// recoverSeq continues numbering after the highest persisted sequence.
func (l *LinkedMap[K, V]) recoverSeq() error {
	it, err := l.i2k.Keys().Iterator()
	if err != nil {
		return err
	}
	defer it.Close()
	for it.HasNext() {
		seq, err := it.Next()
		if err != nil {
			return err
		}
		if seq >= l.seq {
			l.seq = seq + 1
		}
	}
	return it.Err()
}

func (l *LinkedMap[K, V]) errf(op string, key []byte, err error) error {
	return collErrf(l.id, l.dir, op, key, err)
}

func (l *LinkedMap[K, V]) checkOpen(op string) error {
	if l.data.IsClosed() {
		return l.errf(op, nil, ErrClosed)
	}
	return nil
}

func (l *LinkedMap[K, V]) ID() uint64         { return l.id }
func (l *LinkedMap[K, V]) Dir() string        { return l.dir }
func (l *LinkedMap[K, V]) IsPersistent() bool { return l.persistent }
func (l *LinkedMap[K, V]) IsClosed() bool     { return l.data.IsClosed() }

func (l *LinkedMap[K, V]) Get(key K) (V, bool, error) {
	return l.data.Get(key)
}

// Put stores value under key. A new key is appended to the insertion order;
// an existing key keeps its position.
func (l *LinkedMap[K, V]) Put(key K, value V) (V, bool, error) {
	var zero V
	if err := l.checkOpen("put"); err != nil {
		return zero, false, err
	}
	kb, err := l.data.encodeKey("put", key)
	if err != nil {
		return zero, false, err
	}
	vb, err := l.data.encodeValue("put", kb, value)
	if err != nil {
		return zero, false, err
	}
	known, err := l.k2i.ContainsKey(key)
	if err != nil {
		return zero, false, err
	}
	if !known {
		seq := l.seq
		l.seq++
		if _, _, err := l.i2k.Put(seq, key); err != nil {
			return zero, false, err
		}
		if _, _, err := l.k2i.Put(key, seq); err != nil {
			return zero, false, err
		}
	}
	return l.data.putRaw(kb, vb)
}

// PutIfAbsent stores value only when key is missing.
func (l *LinkedMap[K, V]) PutIfAbsent(key K, value V) (V, bool, error) {
	existing, found, err := l.data.Get(key)
	if err != nil || found {
		return existing, found, err
	}
	_, _, err = l.Put(key, value)
	return existing, false, err
}

// Remove deletes key from the indexes and then from the data.
func (l *LinkedMap[K, V]) Remove(key K) (V, bool, error) {
	var zero V
	if err := l.checkOpen("remove"); err != nil {
		return zero, false, err
	}
	seq, found, err := l.k2i.Remove(key)
	if err != nil || !found {
		return zero, false, err
	}
	if _, _, err := l.i2k.Remove(seq); err != nil {
		return zero, false, err
	}
	return l.data.Remove(key)
}

func (l *LinkedMap[K, V]) ContainsKey(key K) (bool, error) {
	return l.data.ContainsKey(key)
}

func (l *LinkedMap[K, V]) ContainsValue(value V) (bool, error) {
	return l.data.ContainsValue(value)
}

func (l *LinkedMap[K, V]) Len() int      { return l.data.Len() }
func (l *LinkedMap[K, V]) IsEmpty() bool { return l.data.IsEmpty() }

// KeyByteSize includes the index maps.
func (l *LinkedMap[K, V]) KeyByteSize() int64 {
	return l.data.KeyByteSize() + l.k2i.KeyByteSize() + l.i2k.KeyByteSize()
}

// ValueByteSize includes the index maps.
func (l *LinkedMap[K, V]) ValueByteSize() int64 {
	return l.data.ValueByteSize() + l.k2i.ValueByteSize() + l.i2k.ValueByteSize()
}

func (l *LinkedMap[K, V]) Stats() Stats {
	s := l.data.Stats()
	s.merge(l.k2i.Stats())
	s.merge(l.i2k.Stats())
	return s
}

// Clear empties all three maps and restarts the insertion sequence.
func (l *LinkedMap[K, V]) Clear() error {
	if err := l.checkOpen("clear"); err != nil {
		return err
	}
	err := closeAll(l.i2k.Clear, l.k2i.Clear, l.data.Clear)
	l.seq = 0
	if err != nil {
		return l.errf("clear", nil, err)
	}
	return nil
}

// Close closes all three maps, continuing past failures, and removes the
// directory of a non-persistent map.
func (l *LinkedMap[K, V]) Close() error {
	l.reg.untrack(l.id)
	if err := l.shutdown(); err != nil {
		return l.errf("close", nil, err)
	}
	return nil
}

// Open reopens a closed map, empty.
func (l *LinkedMap[K, V]) Open() error {
	if !l.IsClosed() {
		return nil
	}
	if !l.persistent {
		os.RemoveAll(l.dir)
	}
	err := closeAll(l.data.Open, l.k2i.Open, l.i2k.Open)
	if err != nil {
		l.shutdown()
		return l.errf("open", nil, err)
	}
	l.seq = 0
	l.track()
	return nil
}

func (l *LinkedMap[K, V]) codecs() (codec.Codec[K], codec.Codec[V]) {
	return l.data.codecs()
}

func (l *LinkedMap[K, V]) encodeKey(op string, key K) ([]byte, error) {
	return l.data.encodeKey(op, key)
}

func (l *LinkedMap[K, V]) rawGet(kb []byte) ([]byte, bool, error) {
	return l.data.rawGet(kb)
}

// rawIterator walks i2k in sequence order and looks each key up in data.
func (l *LinkedMap[K, V]) rawIterator() (engine.Iterator, error) {
	order, err := l.i2k.rawIterator()
	if err != nil {
		return nil, err
	}
	return &linkedIterator{order: order, data: l.data.res.eng}, nil
}

func (l *LinkedMap[K, V]) Keys() *KeyView[K, V] {
	return &KeyView[K, V]{src: l}
}

func (l *LinkedMap[K, V]) Values() *ValueView[K, V] {
	return &ValueView[K, V]{src: l}
}

func (l *LinkedMap[K, V]) Entries() *EntryView[K, V] {
	return &EntryView[K, V]{src: l}
}

// Iterator walks the entries in insertion order.
func (l *LinkedMap[K, V]) Iterator() (*Iterator[Entry[K, V]], error) {
	return l.Entries().Iterator()
}

func (l *LinkedMap[K, V]) Range(fn func(key K, value V) bool) error {
	return l.Entries().Range(func(e Entry[K, V]) bool {
		return fn(e.Key, e.Value)
	})
}

// FirstKey returns the oldest key, or ErrNoSuchElement when empty.
func (l *LinkedMap[K, V]) FirstKey() (K, error) {
	return l.Keys().First()
}

func (l *LinkedMap[K, V]) String() string {
	return fmt.Sprintf("offheap.%s#%d(%d entries, %s)", l.kind, l.id, l.Len(), filepath.Clean(l.dir))
}

type linkedIterator struct {
	order engine.Iterator
	data  engine.Engine
	key   []byte
	value []byte
	err   error
}

func (it *linkedIterator) Next() bool {
	if it.err != nil {
		return false
	}
	for it.order.Next() {
		key := it.order.Value()
		value, found, err := it.data.Get(key)
		if err != nil {
			it.err = engineErr(err)
			return false
		}
		if !found {
			continue
		}
		it.key, it.value = key, value
		return true
	}
	return false
}

func (it *linkedIterator) Key() []byte   { return it.key }
func (it *linkedIterator) Value() []byte { return it.value }

func (it *linkedIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.order.Err()
}

func (it *linkedIterator) Close() error {
	return it.order.Close()
}

// LinkedSet is a Set that iterates in insertion order.
type LinkedSet[K any] struct {
	m *LinkedMap[K, struct{}]
}

func OpenLinkedSet[K any](kc codec.Codec[K], opts ...Option) (*LinkedSet[K], error) {
	m, err := openLinkedMap(kc, codec.Unit, "linkedset", buildConfig(opts))
	if err != nil {
		return nil, err
	}
	return &LinkedSet[K]{m}, nil
}

func (s *LinkedSet[K]) ID() uint64         { return s.m.ID() }
func (s *LinkedSet[K]) Dir() string        { return s.m.Dir() }
func (s *LinkedSet[K]) IsPersistent() bool { return s.m.IsPersistent() }
func (s *LinkedSet[K]) IsClosed() bool     { return s.m.IsClosed() }
func (s *LinkedSet[K]) Len() int           { return s.m.Len() }
func (s *LinkedSet[K]) IsEmpty() bool      { return s.m.IsEmpty() }
func (s *LinkedSet[K]) KeyByteSize() int64 { return s.m.KeyByteSize() }
func (s *LinkedSet[K]) Stats() Stats       { return s.m.Stats() }
func (s *LinkedSet[K]) Clear() error       { return s.m.Clear() }
func (s *LinkedSet[K]) Close() error       { return s.m.Close() }
func (s *LinkedSet[K]) Open() error        { return s.m.Open() }

// Add appends key and reports whether it was absent.
func (s *LinkedSet[K]) Add(key K) (bool, error) {
	_, replaced, err := s.m.Put(key, struct{}{})
	return err == nil && !replaced, err
}

func (s *LinkedSet[K]) Remove(key K) (bool, error) {
	_, removed, err := s.m.Remove(key)
	return removed, err
}

func (s *LinkedSet[K]) Contains(key K) (bool, error) {
	return s.m.ContainsKey(key)
}

func (s *LinkedSet[K]) First() (K, error) {
	return s.m.FirstKey()
}

func (s *LinkedSet[K]) Iterator() (*Iterator[K], error) {
	return s.m.Keys().Iterator()
}

func (s *LinkedSet[K]) Range(fn func(key K) bool) error {
	return s.m.Keys().Range(fn)
}

func (s *LinkedSet[K]) Slice() ([]K, error) {
	return s.m.Keys().Slice()
}

func (s *LinkedSet[K]) String() string {
	return fmt.Sprintf("offheap.linkedset#%d(%d keys, %s)", s.m.ID(), s.m.Len(), s.m.Dir())
}
