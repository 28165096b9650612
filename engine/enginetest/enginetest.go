// Package enginetest is the conformance suite for engine implementations.
//
//	func TestConformance(t *testing.T) {
//		enginetest.Run(t, "bolt", func(t testing.TB, cfg engine.Config) (engine.Engine, error) {
//			return boltengine.Open(cfg)
//		})
//	}
package enginetest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andreyvit/offheap/engine"
)

// Factory opens an engine for cfg. The suite fills in cfg.Dir.
type Factory func(t testing.TB, cfg engine.Config) (engine.Engine, error)

// Run runs every conformance test against the engine produced by factory.
func Run(t *testing.T, name string, factory Factory) {
	t.Run(name, func(t *testing.T) {
		t.Run("GetPut", func(t *testing.T) { testGetPut(t, open(t, factory, nil)) })
		t.Run("EmptyValue", func(t *testing.T) { testEmptyValue(t, open(t, factory, nil)) })
		t.Run("EmptyKey", func(t *testing.T) { testEmptyKey(t, open(t, factory, nil)) })
		t.Run("Delete", func(t *testing.T) { testDelete(t, open(t, factory, nil)) })
		t.Run("Has", func(t *testing.T) { testHas(t, open(t, factory, nil)) })
		t.Run("BytewiseOrder", func(t *testing.T) { testBytewiseOrder(t, open(t, factory, nil)) })
		t.Run("CustomOrder", func(t *testing.T) { testCustomOrder(t, factory) })
		t.Run("IterateWhileWriting", func(t *testing.T) { testIterateWhileWriting(t, open(t, factory, nil)) })
		t.Run("LargeIteration", func(t *testing.T) { testLargeIteration(t, open(t, factory, nil)) })
		t.Run("Close", func(t *testing.T) { testClose(t, open(t, factory, nil)) })
	})
}

func open(t *testing.T, factory Factory, cmp *engine.Comparer) engine.Engine {
	t.Helper()
	eng, err := factory(t, engine.Config{Dir: t.TempDir(), Comparer: cmp})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

// Collect drains an iterator into parallel key and value slices.
func Collect(t testing.TB, eng engine.Engine) (keys, values []string) {
	t.Helper()
	it, err := eng.Iterator()
	require.NoError(t, err)
	defer it.Close()
	for it.Next() {
		keys = append(keys, string(it.Key()))
		values = append(values, string(it.Value()))
	}
	require.NoError(t, it.Err())
	return keys, values
}

func testGetPut(t *testing.T, eng engine.Engine) {
	v, found, err := eng.Get([]byte("a"))
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, v)

	prev, replaced, err := eng.Put([]byte("a"), []byte("1"))
	require.NoError(t, err)
	require.False(t, replaced)
	require.Nil(t, prev)

	prev, replaced, err = eng.Put([]byte("a"), []byte("2"))
	require.NoError(t, err)
	require.True(t, replaced)
	require.Equal(t, "1", string(prev))

	v, found, err = eng.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "2", string(v))

	// The returned slice must be a copy.
	v[0] = 'X'
	v, _, _ = eng.Get([]byte("a"))
	require.Equal(t, "2", string(v))
}

func testEmptyValue(t *testing.T, eng engine.Engine) {
	_, _, err := eng.Put([]byte("k"), []byte{})
	require.NoError(t, err)

	v, found, err := eng.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found, "stored empty value must be found")
	require.NotNil(t, v)
	require.Len(t, v, 0)

	prev, replaced, err := eng.Put([]byte("k"), []byte("x"))
	require.NoError(t, err)
	require.True(t, replaced)
	require.NotNil(t, prev)
	require.Len(t, prev, 0)

	has, err := eng.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, has)
}

func testEmptyKey(t *testing.T, eng engine.Engine) {
	_, _, err := eng.Put([]byte{}, []byte("empty"))
	require.NoError(t, err)
	_, _, err = eng.Put([]byte("a"), []byte("a"))
	require.NoError(t, err)

	v, found, err := eng.Get([]byte{})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "empty", string(v))

	keys, _ := Collect(t, eng)
	require.Equal(t, []string{"", "a"}, keys)
}

func testDelete(t *testing.T, eng engine.Engine) {
	prev, deleted, err := eng.Delete([]byte("missing"))
	require.NoError(t, err)
	require.False(t, deleted)
	require.Nil(t, prev)

	_, _, err = eng.Put([]byte("a"), []byte("1"))
	require.NoError(t, err)
	prev, deleted, err = eng.Delete([]byte("a"))
	require.NoError(t, err)
	require.True(t, deleted)
	require.Equal(t, "1", string(prev))

	_, found, err := eng.Get([]byte("a"))
	require.NoError(t, err)
	require.False(t, found)
}

func testHas(t *testing.T, eng engine.Engine) {
	_, _, err := eng.Put([]byte("ab"), []byte("1"))
	require.NoError(t, err)

	for _, tc := range []struct {
		key  string
		want bool
	}{
		{"ab", true},
		{"a", false},
		{"abc", false},
		{"b", false},
	} {
		has, err := eng.Has([]byte(tc.key))
		require.NoError(t, err)
		require.Equal(t, tc.want, has, "Has(%q)", tc.key)
	}
}

func testBytewiseOrder(t *testing.T, eng engine.Engine) {
	for _, k := range []string{"b", "a", "ba", "\xff", "\x00", "ab"} {
		_, _, err := eng.Put([]byte(k), []byte("v"+k))
		require.NoError(t, err)
	}
	keys, values := Collect(t, eng)
	require.Equal(t, []string{"\x00", "a", "ab", "b", "ba", "\xff"}, keys)
	require.Equal(t, "va", values[1])
}

// reverseComparer orders keys in descending byte order.
var reverseComparer = &engine.Comparer{
	Name:    "enginetest.reverse",
	Compare: func(a, b []byte) int { return bytes.Compare(b, a) },
}

func testCustomOrder(t *testing.T, factory Factory) {
	eng, err := factory(t, engine.Config{Dir: t.TempDir(), Comparer: reverseComparer})
	if errors.Is(err, engine.ErrUnsupportedOrdering) {
		t.Skip("engine does not support custom ordering")
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	for _, k := range []string{"b", "c", "a"} {
		_, _, err := eng.Put([]byte(k), []byte(k))
		require.NoError(t, err)
	}
	keys, _ := Collect(t, eng)
	require.Equal(t, []string{"c", "b", "a"}, keys)

	v, found, err := eng.Get([]byte("b"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "b", string(v))
}

func testIterateWhileWriting(t *testing.T, eng engine.Engine) {
	for i := range 10 {
		_, _, err := eng.Put(seqKey(i), []byte("v"))
		require.NoError(t, err)
	}

	it, err := eng.Iterator()
	require.NoError(t, err)
	defer it.Close()

	var n int
	for it.Next() {
		n++
		// Writing through the same goroutine must not block.
		_, _, err := eng.Put(it.Key(), []byte("updated"))
		require.NoError(t, err)
	}
	require.NoError(t, it.Err())
	require.Equal(t, 10, n)

	_, values := Collect(t, eng)
	for _, v := range values {
		require.Equal(t, "updated", v)
	}
}

func testLargeIteration(t *testing.T, eng engine.Engine) {
	const n = 1000
	for i := n - 1; i >= 0; i-- {
		_, _, err := eng.Put(seqKey(i), []byte(fmt.Sprint(i)))
		require.NoError(t, err)
	}
	keys, values := Collect(t, eng)
	require.Len(t, keys, n)
	for i := range n {
		require.Equal(t, string(seqKey(i)), keys[i])
		require.Equal(t, fmt.Sprint(i), values[i])
	}
}

func testClose(t *testing.T, eng engine.Engine) {
	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close(), "second Close must be a no-op")

	_, _, err := eng.Get([]byte("a"))
	require.ErrorIs(t, err, engine.ErrClosed)
	_, _, err = eng.Put([]byte("a"), []byte("1"))
	require.ErrorIs(t, err, engine.ErrClosed)
	_, err = eng.Has([]byte("a"))
	require.ErrorIs(t, err, engine.ErrClosed)
	_, err = eng.Iterator()
	require.ErrorIs(t, err, engine.ErrClosed)
}

func seqKey(i int) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(i))
}
