package offheap

import (
	"cmp"
	"fmt"

	"github.com/andreyvit/offheap/codec"
	"github.com/andreyvit/offheap/engine"
	"github.com/andreyvit/offheap/logger"
)

// Map is a key-value collection whose entries live in an embedded storage
// engine on disk. Iteration follows the engine's key order, which is
// bytewise on the encoded keys unless the map was opened sorted.
//
// A Map is not safe for concurrent use.
type Map[K, V any] struct {
	res     *resource
	keys    codec.Codec[K]
	vals    codec.Codec[V]
	order   codec.Comparator[K]
	reg     *Registry
	log     logger.Logger
	tracked bool
	kind    string
	stats   Stats
}

// OpenMap opens a map that iterates in bytewise order of encoded keys.
func OpenMap[K, V any](kc codec.Codec[K], vc codec.Codec[V], opts ...Option) (*Map[K, V], error) {
	return openMap(kc, vc, nil, "map", true, buildConfig(opts))
}

func openMap[K, V any](kc codec.Codec[K], vc codec.Codec[V], order codec.Comparator[K], kind string, tracked bool, cfg *Config) (*Map[K, V], error) {
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

	var cmpr *engine.Comparer
	if order != nil {
		name := cfg.OrderName
		if name == "" {
			name = codec.Name(order)
		}
		cmpr = &engine.Comparer{
			Name:    name,
			Compare: codec.ByteComparer(kc, order),
		}
	}

	id := nextID()
	m := &Map[K, V]{
		res:     newResource(id, dir, cfg, cmpr),
		keys:    kc,
		vals:    vc,
		order:   order,
		reg:     cfg.registry(),
		tracked: tracked,
		kind:    kind,
	}
	m.log = m.res.log
	if err := m.start(!cfg.Persistent); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Map[K, V]) start(wipe bool) error {
	if err := m.res.start(wipe); err != nil {
		return m.errf("open", nil, err)
	}
	m.stats = Stats{}
	if !wipe {
		if err := m.recount(); err != nil {
			m.res.shutdown()
			return err
		}
	}
	if m.tracked {
		track(m.reg, m, m.res.id, m.describe(), m.res.shutdown)
	}
	return nil
}

// recount rebuilds the size counters from persisted data.
func (m *Map[K, V]) recount() error {
	it, err := m.res.eng.Iterator()
	if err != nil {
		return m.errf("load", nil, engineErr(err))
	}
	defer it.Close()
	for it.Next() {
		m.stats.add(it.Key(), it.Value())
	}
	if err := it.Err(); err != nil {
		return m.errf("load", nil, engineErr(err))
	}
	if m.stats.Entries > 0 {
		m.log.Info("loaded persisted collection", "entries", m.stats.Entries, "key_bytes", m.stats.KeyBytes, "value_bytes", m.stats.ValueBytes)
	}
	return nil
}

func (m *Map[K, V]) describe() string {
	return fmt.Sprintf("%s %s", m.kind, m.res.dir)
}

func (m *Map[K, V]) errf(op string, key []byte, err error) error {
	return collErrf(m.res.id, m.res.dir, op, key, err)
}

func (m *Map[K, V]) checkOpen(op string) error {
	if m.res.closed() {
		return m.errf(op, nil, ErrClosed)
	}
	return nil
}

func (m *Map[K, V]) encodeKey(op string, key K) ([]byte, error) {
	if isNil(key) {
		return nil, m.errf(op, nil, fmt.Errorf("%w: nil key", ErrInvalidArgument))
	}
	kb, err := m.keys.Encode(key)
	if err != nil {
		return nil, m.errf(op, nil, fmt.Errorf("%w: key: %w", ErrInvalidArgument, err))
	}
	return kb, nil
}

func (m *Map[K, V]) encodeValue(op string, kb []byte, value V) ([]byte, error) {
	if isNil(value) {
		return nil, m.errf(op, kb, fmt.Errorf("%w: nil value", ErrInvalidArgument))
	}
	vb, err := m.vals.Encode(value)
	if err != nil {
		return nil, m.errf(op, kb, fmt.Errorf("%w: value: %w", ErrInvalidArgument, err))
	}
	return vb, nil
}

func (m *Map[K, V]) decodeKey(op string, kb []byte) (K, error) {
	k, err := m.keys.Decode(kb)
	if err != nil {
		return k, m.errf(op, kb, err)
	}
	return k, nil
}

func (m *Map[K, V]) decodeValue(op string, kb, vb []byte) (V, error) {
	v, err := m.vals.Decode(vb)
	if err != nil {
		return v, m.errf(op, kb, err)
	}
	return v, nil
}

// ID identifies the map in its Registry and in logs.
func (m *Map[K, V]) ID() uint64 {
	return m.res.id
}

// Dir is the directory holding the map's data.
func (m *Map[K, V]) Dir() string {
	return m.res.dir
}

func (m *Map[K, V]) IsPersistent() bool {
	return m.res.persistent
}

func (m *Map[K, V]) IsClosed() bool {
	return m.res.closed()
}

// Get returns the value stored under key and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool, error) {
	var zero V
	if err := m.checkOpen("get"); err != nil {
		return zero, false, err
	}
	kb, err := m.encodeKey("get", key)
	if err != nil {
		return zero, false, err
	}
	vb, found, err := m.res.eng.Get(kb)
	if err != nil {
		return zero, false, m.errf("get", kb, engineErr(err))
	}
	if !found {
		return zero, false, nil
	}
	v, err := m.decodeValue("get", kb, vb)
	return v, err == nil, err
}

// Put stores value under key, returning the previous value and whether one
// was replaced.
func (m *Map[K, V]) Put(key K, value V) (V, bool, error) {
	var zero V
	if err := m.checkOpen("put"); err != nil {
		return zero, false, err
	}
	kb, err := m.encodeKey("put", key)
	if err != nil {
		return zero, false, err
	}
	vb, err := m.encodeValue("put", kb, value)
	if err != nil {
		return zero, false, err
	}
	return m.putRaw(kb, vb)
}

func (m *Map[K, V]) putRaw(kb, vb []byte) (V, bool, error) {
	var zero V
	prev, replaced, err := m.res.eng.Put(kb, vb)
	if err != nil {
		return zero, false, m.errf("put", kb, engineErr(err))
	}
	if !replaced {
		m.stats.add(kb, vb)
		return zero, false, nil
	}
	m.stats.ValueBytes += int64(len(vb) - len(prev))
	pv, err := m.decodeValue("put", kb, prev)
	return pv, true, err
}

// PutIfAbsent stores value only when key is missing. It returns the existing
// value and true when the key was already present.
func (m *Map[K, V]) PutIfAbsent(key K, value V) (V, bool, error) {
	var zero V
	if err := m.checkOpen("put"); err != nil {
		return zero, false, err
	}
	kb, err := m.encodeKey("put", key)
	if err != nil {
		return zero, false, err
	}
	vb, err := m.encodeValue("put", kb, value)
	if err != nil {
		return zero, false, err
	}
	existing, found, err := m.res.eng.Get(kb)
	if err != nil {
		return zero, false, m.errf("put", kb, engineErr(err))
	}
	if found {
		v, err := m.decodeValue("put", kb, existing)
		return v, true, err
	}
	_, _, err = m.putRaw(kb, vb)
	return zero, false, err
}

// Remove deletes key, returning the removed value and whether it existed.
func (m *Map[K, V]) Remove(key K) (V, bool, error) {
	var zero V
	if err := m.checkOpen("remove"); err != nil {
		return zero, false, err
	}
	kb, err := m.encodeKey("remove", key)
	if err != nil {
		return zero, false, err
	}
	return m.removeRaw(kb)
}

func (m *Map[K, V]) removeRaw(kb []byte) (V, bool, error) {
	var zero V
	prev, deleted, err := m.res.eng.Delete(kb)
	if err != nil {
		return zero, false, m.errf("remove", kb, engineErr(err))
	}
	if !deleted {
		return zero, false, nil
	}
	m.stats.sub(kb, prev)
	pv, err := m.decodeValue("remove", kb, prev)
	return pv, true, err
}

func (m *Map[K, V]) ContainsKey(key K) (bool, error) {
	if err := m.checkOpen("contains"); err != nil {
		return false, err
	}
	kb, err := m.encodeKey("contains", key)
	if err != nil {
		return false, err
	}
	ok, err := m.res.eng.Has(kb)
	if err != nil {
		return false, m.errf("contains", kb, engineErr(err))
	}
	return ok, nil
}

// ContainsValue always fails with ErrNotScalable.
func (m *Map[K, V]) ContainsValue(value V) (bool, error) {
	if err := m.checkOpen("contains value"); err != nil {
		return false, err
	}
	return false, m.errf("contains value", nil, ErrNotScalable)
}

func (m *Map[K, V]) Len() int {
	return m.Stats().Entries
}

func (m *Map[K, V]) IsEmpty() bool {
	return m.Len() == 0
}

// KeyByteSize is the total encoded size of all keys.
func (m *Map[K, V]) KeyByteSize() int64 {
	return m.Stats().KeyBytes
}

// ValueByteSize is the total encoded size of all values.
func (m *Map[K, V]) ValueByteSize() int64 {
	return m.Stats().ValueBytes
}

// Stats reports the sizes of a map; a closed map is empty.
func (m *Map[K, V]) Stats() Stats {
	if m.res.closed() {
		return Stats{}
	}
	return m.stats
}

// Clear removes all entries by discarding and recreating the storage.
func (m *Map[K, V]) Clear() error {
	if err := m.checkOpen("clear"); err != nil {
		return err
	}
	if err := m.Close(); err != nil {
		return err
	}
	return m.Open()
}

// Close releases the storage. Non-persistent maps also delete their
// directory. Closing a closed map does nothing.
func (m *Map[K, V]) Close() error {
	if m.tracked {
		m.reg.untrack(m.res.id)
	}
	if err := m.res.shutdown(); err != nil {
		return m.errf("close", nil, err)
	}
	return nil
}

// Open reopens a closed map. The reopened map is empty, even when
// persistent. Opening an open map does nothing.
func (m *Map[K, V]) Open() error {
	if !m.res.closed() {
		return nil
	}
	return m.start(true)
}

func (m *Map[K, V]) rawIterator() (engine.Iterator, error) {
	if err := m.checkOpen("iterate"); err != nil {
		return nil, err
	}
	it, err := m.res.eng.Iterator()
	if err != nil {
		return nil, m.errf("iterate", nil, engineErr(err))
	}
	return it, nil
}

func (m *Map[K, V]) rawGet(kb []byte) ([]byte, bool, error) {
	if err := m.checkOpen("get"); err != nil {
		return nil, false, err
	}
	vb, found, err := m.res.eng.Get(kb)
	if err != nil {
		return nil, false, m.errf("get", kb, engineErr(err))
	}
	return vb, found, nil
}

func (m *Map[K, V]) codecs() (codec.Codec[K], codec.Codec[V]) {
	return m.keys, m.vals
}

// Keys is a live view of the map's keys.
func (m *Map[K, V]) Keys() *KeyView[K, V] {
	return &KeyView[K, V]{src: m}
}

// Values is a live view of the map's values.
func (m *Map[K, V]) Values() *ValueView[K, V] {
	return &ValueView[K, V]{src: m}
}

// Entries is a live view of the map's key-value pairs.
func (m *Map[K, V]) Entries() *EntryView[K, V] {
	return &EntryView[K, V]{src: m}
}

// Iterator walks the entries in key order.
func (m *Map[K, V]) Iterator() (*Iterator[Entry[K, V]], error) {
	return m.Entries().Iterator()
}

// Range calls fn for each entry in key order until fn returns false.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) error {
	return m.Entries().Range(func(e Entry[K, V]) bool {
		return fn(e.Key, e.Value)
	})
}

func (m *Map[K, V]) String() string {
	return fmt.Sprintf("offheap.%s#%d(%d entries, %s)", m.kind, m.res.id, m.Len(), m.res.dir)
}

// SortedMap is a Map iterating in the order of a key comparator.
type SortedMap[K, V any] struct {
	*Map[K, V]
}

// OpenSortedMap opens a map ordered by order. The engine must support
// custom key order; the default engine selection picks one that does.
func OpenSortedMap[K, V any](kc codec.Codec[K], vc codec.Codec[V], order codec.Comparator[K], opts ...Option) (*SortedMap[K, V], error) {
	if order == nil {
		return nil, fmt.Errorf("%w: nil comparator", ErrInvalidArgument)
	}
	m, err := openMap(kc, vc, order, "sortedmap", true, buildConfig(opts))
	if err != nil {
		return nil, err
	}
	return &SortedMap[K, V]{m}, nil
}

// OpenOrderedMap opens a map sorted by the natural order of K.
func OpenOrderedMap[K cmp.Ordered, V any](kc codec.Codec[K], vc codec.Codec[V], opts ...Option) (*SortedMap[K, V], error) {
	return OpenSortedMap(kc, vc, codec.Natural[K](), opts...)
}

// Comparator returns the key order.
func (m *SortedMap[K, V]) Comparator() codec.Comparator[K] {
	return m.order
}

// FirstKey returns the smallest key, or ErrNoSuchElement when empty.
func (m *SortedMap[K, V]) FirstKey() (K, error) {
	return m.Keys().First()
}
