package offheap

import (
	"cmp"
	"fmt"

	"github.com/andreyvit/offheap/codec"
)

// Set is a collection of distinct keys stored off-heap. It is a Map with
// empty values.
type Set[K any] struct {
	m *Map[K, struct{}]
}

func OpenSet[K any](kc codec.Codec[K], opts ...Option) (*Set[K], error) {
	m, err := openMap(kc, codec.Unit, nil, "set", true, buildConfig(opts))
	if err != nil {
		return nil, err
	}
	return &Set[K]{m}, nil
}

func (s *Set[K]) ID() uint64         { return s.m.ID() }
func (s *Set[K]) Dir() string        { return s.m.Dir() }
func (s *Set[K]) IsPersistent() bool { return s.m.IsPersistent() }
func (s *Set[K]) IsClosed() bool     { return s.m.IsClosed() }
func (s *Set[K]) Len() int           { return s.m.Len() }
func (s *Set[K]) IsEmpty() bool      { return s.m.IsEmpty() }
func (s *Set[K]) KeyByteSize() int64 { return s.m.KeyByteSize() }
func (s *Set[K]) Stats() Stats       { return s.m.Stats() }
func (s *Set[K]) Clear() error       { return s.m.Clear() }
func (s *Set[K]) Close() error       { return s.m.Close() }
func (s *Set[K]) Open() error        { return s.m.Open() }

// Add inserts key and reports whether it was absent.
func (s *Set[K]) Add(key K) (bool, error) {
	_, replaced, err := s.m.Put(key, struct{}{})
	return err == nil && !replaced, err
}

// Remove deletes key and reports whether it was present.
func (s *Set[K]) Remove(key K) (bool, error) {
	_, removed, err := s.m.Remove(key)
	return removed, err
}

func (s *Set[K]) Contains(key K) (bool, error) {
	return s.m.ContainsKey(key)
}

func (s *Set[K]) Iterator() (*Iterator[K], error) {
	return s.m.Keys().Iterator()
}

func (s *Set[K]) Range(fn func(key K) bool) error {
	return s.m.Keys().Range(fn)
}

func (s *Set[K]) Slice() ([]K, error) {
	return s.m.Keys().Slice()
}

func (s *Set[K]) String() string {
	return fmt.Sprintf("offheap.set#%d(%d keys, %s)", s.m.ID(), s.m.Len(), s.m.Dir())
}

// SortedSet is a Set iterating in comparator order.
type SortedSet[K any] struct {
	Set[K]
}

func OpenSortedSet[K any](kc codec.Codec[K], order codec.Comparator[K], opts ...Option) (*SortedSet[K], error) {
	if order == nil {
		return nil, fmt.Errorf("%w: nil comparator", ErrInvalidArgument)
	}
	m, err := openMap(kc, codec.Unit, order, "sortedset", true, buildConfig(opts))
	if err != nil {
		return nil, err
	}
	return &SortedSet[K]{Set[K]{m}}, nil
}

// OpenOrderedSet opens a set sorted by the natural order of K.
func OpenOrderedSet[K cmp.Ordered](kc codec.Codec[K], opts ...Option) (*SortedSet[K], error) {
	return OpenSortedSet(kc, codec.Natural[K](), opts...)
}

// First returns the smallest key, or ErrNoSuchElement when empty.
func (s *SortedSet[K]) First() (K, error) {
	return s.m.Keys().First()
}
