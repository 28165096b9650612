package offheap

import (
	"errors"
	"testing"

	"github.com/andreyvit/offheap/codec"
)

func TestUpdateInsertsWhenAbsent(t *testing.T) {
	m := openStringMap(t, EngineMem)
	ok(t, Update(m, "k", func(mv *Mutable[string]) error {
		deepEqual(t, mv.WasPresent(), false)
		deepEqual(t, mv.IsPresent(), false)
		mv.Set("v")
		deepEqual(t, mv.IsPresent(), true)
		return nil
	}))
	v, found, err := m.Get("k")
	ok(t, err)
	deepEqual(t, found, true)
	deepEqual(t, v, "v")
}

func TestUpdateLeavesAbsentKeyAbsent(t *testing.T) {
	m := openStringMap(t, EngineMem)
	ok(t, Update(m, "k", func(mv *Mutable[string]) error {
		return nil
	}))
	deepEqual(t, m.Len(), 0)
}

func TestUpdateWithoutSetKeepsValue(t *testing.T) {
	m := openStringMap(t, EngineMem)
	_, _, err := m.Put("k", "v")
	ok(t, err)
	ok(t, Update(m, "k", func(mv *Mutable[string]) error {
		v, present := mv.Get()
		deepEqual(t, present, true)
		deepEqual(t, v, "v")
		return nil
	}))
	v, _, err := m.Get("k")
	ok(t, err)
	deepEqual(t, v, "v")
	deepEqual(t, m.Len(), 1)
}

func TestUpdateUnsetRemoves(t *testing.T) {
	m := openStringMap(t, EngineBolt)
	_, _, err := m.Put("k", "v")
	ok(t, err)
	ok(t, Update(m, "k", func(mv *Mutable[string]) error {
		mv.Unset()
		deepEqual(t, mv.IsPresent(), false)
		deepEqual(t, mv.WasPresent(), true)
		return nil
	}))
	deepEqual(t, m.Len(), 0)
}

func TestUpdateCommitsOnError(t *testing.T) {
	m := openStringMap(t, EngineMem)
	boom := errors.New("boom")
	err := Update(m, "k", func(mv *Mutable[string]) error {
		mv.Set("partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("** err = %v, wanted boom", err)
	}
	v, found, err := m.Get("k")
	ok(t, err)
	deepEqual(t, found, true)
	deepEqual(t, v, "partial")
}

func TestUpdateCommitsOnPanic(t *testing.T) {
	m := openStringMap(t, EngineMem)
	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Fatalf("** recovered %v, wanted boom", r)
			}
		}()
		Update(m, "k", func(mv *Mutable[string]) error {
			mv.Set("partial")
			panic("boom")
		})
	}()
	v, found, err := m.Get("k")
	ok(t, err)
	deepEqual(t, found, true)
	deepEqual(t, v, "partial")
}

func TestUpdateSetNilRemoves(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		m, err := OpenMap(codec.String, codec.Bytes, testOpts(t, engineName)...)
		ok(t, err)
		closeLater(t, m)
		_, _, err = m.Put("k", []byte("v"))
		ok(t, err)

		ok(t, Update(m, "k", func(mv *Mutable[[]byte]) error {
			mv.Set(nil)
			deepEqual(t, mv.IsPresent(), false)
			deepEqual(t, mv.WasPresent(), true)
			v, found, err := m.Get("k")
			ok(t, err)
			deepEqual(t, found, true)
			deepEqual(t, v, []byte("v"))
			return nil
		}))
		_, found, err := m.Get("k")
		ok(t, err)
		deepEqual(t, found, false)
		deepEqual(t, m.Len(), 0)

		// An empty slice is a value, not absence.
		ok(t, Update(m, "k", func(mv *Mutable[[]byte]) error {
			mv.Set([]byte{})
			return nil
		}))
		deepEqual(t, m.Len(), 1)
	})
}

func TestUpdateReportsCommitFailure(t *testing.T) {
	m := openStringMap(t, EngineMem)
	_, _, err := m.Put("k", "v")
	ok(t, err)
	err = Update(m, "k", func(mv *Mutable[string]) error {
		mv.Set("w")
		return m.Close()
	})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("** err = %v, wanted ErrClosed", err)
	}
}

func TestUpdatePersistsInPlaceChanges(t *testing.T) {
	m, err := OpenMap(codec.String, codec.MsgPack[map[string]int](), testOpts(t, EngineMem)...)
	ok(t, err)
	closeLater(t, m)
	_, _, err = m.Put("counts", map[string]int{"a": 1})
	ok(t, err)

	ok(t, Update(m, "counts", func(mv *Mutable[map[string]int]) error {
		counts, _ := mv.Get()
		counts["a"]++
		counts["b"] = 1
		return nil
	}))
	v, _, err := m.Get("counts")
	ok(t, err)
	deepEqual(t, v, map[string]int{"a": 2, "b": 1})
}

func TestUpdateLinkedMap(t *testing.T) {
	l := openLinked(t, EngineMem)
	_, _, err := l.Put("a", "1")
	ok(t, err)
	for _, k := range []string{"b", "a"} {
		ok(t, Update(l, k, func(mv *Mutable[string]) error {
			v, _ := mv.Get()
			mv.Set(v + "+")
			return nil
		}))
	}
	entries, err := l.Entries().Slice()
	ok(t, err)
	deepEqual(t, entries, []Entry[string, string]{{"a", "1+"}, {"b", "+"}})

	ok(t, Update(l, "a", func(mv *Mutable[string]) error {
		mv.Unset()
		return nil
	}))
	deepEqual(t, linkedKeys(t, l), []string{"b"})
}
