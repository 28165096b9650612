package offheap

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andreyvit/offheap/codec"
)

func openLinked(t *testing.T, engineName string, extra ...Option) *LinkedMap[string, string] {
	t.Helper()
	l, err := OpenLinkedMap(codec.String, codec.String, testOpts(t, engineName, extra...)...)
	ok(t, err)
	return closeLater(t, l)
}

func linkedKeys(t testing.TB, l *LinkedMap[string, string]) []string {
	t.Helper()
	keys, err := l.Keys().Slice()
	ok(t, err)
	return keys
}

func TestLinkedMapInsertionOrder(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		l := openLinked(t, engineName)
		_, _, err := l.Put("5", "5")
		ok(t, err)
		_, _, err = l.Put("1", "1")
		ok(t, err)
		prev, replaced, err := l.Put("5", "5b")
		ok(t, err)
		deepEqual(t, replaced, true)
		deepEqual(t, prev, "5")

		deepEqual(t, linkedKeys(t, l), []string{"5", "1"})
		values, err := l.Values().Slice()
		ok(t, err)
		deepEqual(t, values, []string{"5b", "1"})
		deepEqual(t, l.Len(), 2)

		first, err := l.FirstKey()
		ok(t, err)
		deepEqual(t, first, "5")
	})
}

func TestLinkedMapRemoveAndReadd(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		l := openLinked(t, engineName)
		for _, k := range []string{"a", "b", "c"} {
			_, _, err := l.Put(k, strings.ToUpper(k))
			ok(t, err)
		}
		prev, removed, err := l.Remove("a")
		ok(t, err)
		deepEqual(t, removed, true)
		deepEqual(t, prev, "A")

		_, removed, err = l.Remove("zzz")
		ok(t, err)
		deepEqual(t, removed, false)

		_, _, err = l.Put("a", "A2")
		ok(t, err)
		deepEqual(t, linkedKeys(t, l), []string{"b", "c", "a"})
		deepEqual(t, l.Len(), 3)
		deepEqual(t, l.k2i.Len(), 3)
		deepEqual(t, l.i2k.Len(), 3)
	})
}

func TestLinkedMapSizes(t *testing.T) {
	l := openLinked(t, EngineMem)
	_, _, err := l.Put("key", "value")
	ok(t, err)

	// data: 3+5, k2i: 3+8, i2k: 8+3
	deepEqual(t, l.KeyByteSize(), int64(3+3+8))
	deepEqual(t, l.ValueByteSize(), int64(5+8+3))
	deepEqual(t, l.Stats(), Stats{Entries: 1, KeyBytes: 14, ValueBytes: 16})

	_, _, err = l.Remove("key")
	ok(t, err)
	deepEqual(t, l.KeyByteSize(), int64(0))
	deepEqual(t, l.ValueByteSize(), int64(0))
}

func TestLinkedMapClearRestartsSequence(t *testing.T) {
	l := openLinked(t, EngineBolt)
	for _, k := range []string{"x", "y"} {
		_, _, err := l.Put(k, k)
		ok(t, err)
	}
	ok(t, l.Clear())
	deepEqual(t, l.Len(), 0)
	deepEqual(t, l.seq, int64(0))

	_, _, err := l.Put("z", "z")
	ok(t, err)
	seqs, err := l.i2k.Keys().Slice()
	ok(t, err)
	deepEqual(t, seqs, []int64{0})
}

func TestLinkedMapSkipsDanglingIndex(t *testing.T) {
	l := openLinked(t, EngineMem)
	_, _, err := l.Put("a", "1")
	ok(t, err)

	// Simulate a failure between the index writes and the data write.
	_, _, err = l.i2k.Put(l.seq, "ghost")
	ok(t, err)
	_, _, err = l.k2i.Put("ghost", l.seq)
	ok(t, err)
	l.seq++

	_, _, err = l.Put("b", "2")
	ok(t, err)

	deepEqual(t, linkedKeys(t, l), []string{"a", "b"})
	deepEqual(t, l.Len(), 2)
	_, found, err := l.Get("ghost")
	ok(t, err)
	deepEqual(t, found, false)

	// Writing the ghost key later keeps its original position.
	_, _, err = l.Put("ghost", "3")
	ok(t, err)
	deepEqual(t, linkedKeys(t, l), []string{"a", "ghost", "b"})
}

func TestLinkedMapCloseAndReopen(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		l := openLinked(t, engineName)
		dir := l.Dir()
		for _, sub := range []string{"data", "i2k", "k2i"} {
			if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
				t.Fatalf("** missing %s: %v", sub, err)
			}
		}
		_, _, err := l.Put("a", "1")
		ok(t, err)

		ok(t, l.Close())
		ok(t, l.Close())
		deepEqual(t, l.Len(), 0)
		deepEqual(t, l.Stats(), Stats{})
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Fatalf("** dir %s still exists after Close (err = %v)", dir, err)
		}
		_, _, err = l.Put("a", "1")
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("** Put after Close err = %v, wanted ErrClosed", err)
		}

		ok(t, l.Open())
		deepEqual(t, l.Len(), 0)
		_, _, err = l.Put("b", "2")
		ok(t, err)
		deepEqual(t, linkedKeys(t, l), []string{"b"})
	})
}

func TestLinkedMapPersistentRecoversSequence(t *testing.T) {
	for _, engineName := range []string{EngineBolt, EnginePebble} {
		t.Run(engineName, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "linked")
			l := openLinked(t, engineName, WithDir(dir), WithPersistent(true))
			for _, k := range []string{"c", "a", "b"} {
				_, _, err := l.Put(k, k)
				ok(t, err)
			}
			_, _, err := l.Remove("c")
			ok(t, err)
			ok(t, l.Close())

			l2 := openLinked(t, engineName, WithDir(dir), WithPersistent(true))
			deepEqual(t, l2.Len(), 2)
			deepEqual(t, l2.seq, int64(3))
			_, _, err = l2.Put("c", "c")
			ok(t, err)
			deepEqual(t, linkedKeys(t, l2), []string{"a", "b", "c"})
		})
	}
}

func TestLinkedMapDump(t *testing.T) {
	l := openLinked(t, EngineMem)
	_, _, err := l.Put("b", "2")
	ok(t, err)
	_, _, err = l.Put("a", "1")
	ok(t, err)

	var buf strings.Builder
	ok(t, l.Dump(&buf, DumpAll))
	out := buf.String()
	for _, want := range []string{`linkedmap.1: "b" => "2"`, `linkedmap.2: "a" => "1"`, `linkedmap.i2k.1 => "a"`} {
		if !strings.Contains(out, want) {
			t.Errorf("** Dump output missing %q; got:\n%s", want, out)
		}
	}
}

func TestLinkedSet(t *testing.T) {
	forEachEngine(t, func(t *testing.T, engineName string) {
		s, err := OpenLinkedSet(codec.String, testOpts(t, engineName)...)
		ok(t, err)
		closeLater(t, s)

		var fresh []string
		for _, line := range []string{"b", "a", "b", "c", "a"} {
			added, err := s.Add(line)
			ok(t, err)
			if added {
				fresh = append(fresh, line)
			}
		}
		deepEqual(t, fresh, []string{"b", "a", "c"})

		keys, err := s.Slice()
		ok(t, err)
		deepEqual(t, keys, []string{"b", "a", "c"})

		removed, err := s.Remove("b")
		ok(t, err)
		deepEqual(t, removed, true)
		first, err := s.First()
		ok(t, err)
		deepEqual(t, first, "a")
	})
}
