package offheap

import (
	"errors"
	"testing"

	"github.com/andreyvit/offheap/codec"
)

func TestSet(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		s, err := OpenSet(codec.String, testOpts(t, engineName)...)
		ok(t, err)
		closeLater(t, s)

		added, err := s.Add("b")
		ok(t, err)
		deepEqual(t, added, true)
		added, err = s.Add("a")
		ok(t, err)
		deepEqual(t, added, true)
		added, err = s.Add("b")
		ok(t, err)
		deepEqual(t, added, false)
		deepEqual(t, s.Len(), 2)
		deepEqual(t, s.KeyByteSize(), int64(2))

		has, err := s.Contains("a")
		ok(t, err)
		deepEqual(t, has, true)

		keys, err := s.Slice()
		ok(t, err)
		deepEqual(t, keys, []string{"a", "b"})

		removed, err := s.Remove("a")
		ok(t, err)
		deepEqual(t, removed, true)
		removed, err = s.Remove("a")
		ok(t, err)
		deepEqual(t, removed, false)
		deepEqual(t, s.Len(), 1)

		ok(t, s.Close())
		_, err = s.Add("c")
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("** Add after Close err = %v, wanted ErrClosed", err)
		}
		ok(t, s.Open())
		deepEqual(t, s.IsEmpty(), true)
	})
}

func TestSortedSet(t *testing.T) {
	forEachSortingEngine(t, func(t *testing.T, engineName string) {
		s, err := OpenOrderedSet(codec.Int32, testOpts(t, engineName)...)
		ok(t, err)
		closeLater(t, s)

		for _, v := range []int32{5, -3, 12, 0, 5} {
			_, err := s.Add(v)
			ok(t, err)
		}
		deepEqual(t, s.Len(), 4)

		first, err := s.First()
		ok(t, err)
		deepEqual(t, first, int32(-3))

		var got []int32
		ok(t, s.Range(func(v int32) bool {
			got = append(got, v)
			return true
		}))
		deepEqual(t, got, []int32{-3, 0, 5, 12})
	})
}
