package offheap

import (
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/andreyvit/offheap/codec"
	"github.com/andreyvit/offheap/logger"
)

func TestRegistryTracksOpenCollections(t *testing.T) {
	reg := setupRegistry(t)
	m, err := OpenMap(codec.String, codec.String, WithBaseDir(t.TempDir()), WithEngine(EngineMem), WithRegistry(reg))
	require.NoError(t, err)
	l, err := OpenLinkedMap(codec.String, codec.String, WithBaseDir(t.TempDir()), WithEngine(EngineMem), WithRegistry(reg))
	require.NoError(t, err)

	require.True(t, reg.IsRegistered(m.ID()))
	require.True(t, reg.IsRegistered(l.ID()))
	// Linked sub-maps are not tracked on their own.
	require.Equal(t, 2, reg.Len())

	regs := reg.Registered()
	require.Len(t, regs, 2)
	require.Equal(t, m.ID(), regs[0].ID)
	require.True(t, regs[0].Alive)
	require.Contains(t, regs[1].Desc, "linkedmap")

	require.NoError(t, m.Close())
	require.False(t, reg.IsRegistered(m.ID()))
	require.NoError(t, m.Open())
	require.True(t, reg.IsRegistered(m.ID()))

	require.NoError(t, l.Close())
	require.NoError(t, m.Close())
	require.Equal(t, 0, reg.Len())
	runtime.KeepAlive(l)
}

func TestRegistryListsByID(t *testing.T) {
	reg := setupRegistry(t)
	var ids []uint64
	for range 5 {
		s, err := OpenSet(codec.Int, WithBaseDir(t.TempDir()), WithEngine(EngineMem), WithRegistry(reg))
		require.NoError(t, err)
		closeLater(t, s)
		ids = append(ids, s.ID())
	}
	var got []uint64
	for _, r := range reg.Registered() {
		got = append(got, r.ID)
	}
	require.Equal(t, ids, got)
}

// openAndDrop opens a map and returns only what the test needs to observe
// it, so that the map itself becomes unreachable.
//
//go:noinline
func openAndDrop(t *testing.T, reg *Registry, dir string) (uint64, string) {
	m, err := OpenMap(codec.String, codec.String, WithBaseDir(dir), WithEngine(EngineBolt), WithRegistry(reg), WithLogger(logger.Nop()))
	require.NoError(t, err)
	_, _, err = m.Put("k", "v")
	require.NoError(t, err)
	return m.ID(), m.Dir()
}

func TestRegistryReclaimsUnreachable(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	reg := NewRegistry(logger.New(zap.New(core)))
	defer reg.Stop()

	id, dir := openAndDrop(t, reg, t.TempDir())
	require.True(t, reg.IsRegistered(id))

	require.Eventually(t, func() bool {
		runtime.GC()
		return !reg.IsRegistered(id)
	}, 10*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := os.Stat(dir)
		return os.IsNotExist(err)
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return logs.FilterMessage("reclaimed unreachable collection").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	var buf strings.Builder
	reg.WriteMetrics(&buf)
	require.Contains(t, buf.String(), "offheap_reclaimed_total 1")
}

func TestRegistryReclaimFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	reg := NewRegistry(logger.New(zap.New(core)))
	defer reg.Stop()

	trackFailing(reg)

	require.Eventually(t, func() bool {
		runtime.GC()
		return reg.Len() == 0 && logs.FilterMessage("failed to reclaim unreachable collection").Len() == 1
	}, 10*time.Second, 10*time.Millisecond)
}

//go:noinline
func trackFailing(reg *Registry) {
	owner := &struct{ buf [64]byte }{}
	track(reg, owner, nextID(), "failing", func() error {
		return os.ErrPermission
	})
}

func TestRegistryShutdown(t *testing.T) {
	reg := setupRegistry(t)
	var maps []*Map[string, string]
	for range 3 {
		m, err := OpenMap(codec.String, codec.String, WithBaseDir(t.TempDir()), WithEngine(EngineBolt), WithRegistry(reg), WithLogger(logger.Nop()))
		require.NoError(t, err)
		maps = append(maps, m)
	}
	s, err := OpenLinkedSet(codec.String, WithBaseDir(t.TempDir()), WithEngine(EngineMem), WithRegistry(reg), WithLogger(logger.Nop()))
	require.NoError(t, err)

	require.Equal(t, 4, reg.Shutdown())
	require.Equal(t, 0, reg.Len())
	for _, m := range maps {
		require.True(t, m.IsClosed())
		_, statErr := os.Stat(m.Dir())
		require.True(t, os.IsNotExist(statErr))
		require.NoError(t, m.Close())
	}
	require.True(t, s.IsClosed())
	_, statErr := os.Stat(s.Dir())
	require.True(t, os.IsNotExist(statErr))
	require.Equal(t, 0, reg.Shutdown())

	var buf strings.Builder
	reg.WriteMetrics(&buf)
	require.Contains(t, buf.String(), "offheap_shutdown_closed_total 4")
	require.Contains(t, buf.String(), "offheap_open_collections 0")
}

func TestRegistryStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	reg := NewRegistry(logger.Nop())
	m, err := OpenMap(codec.String, codec.String, WithBaseDir(t.TempDir()), WithEngine(EngineMem), WithRegistry(reg))
	require.NoError(t, err)
	require.NoError(t, m.Close())
	reg.Stop()
	reg.Stop()
}

func TestDefaultRegistry(t *testing.T) {
	require.Same(t, DefaultRegistry(), DefaultRegistry())
	m, err := OpenSet(codec.String, WithBaseDir(t.TempDir()), WithEngine(EngineMem))
	require.NoError(t, err)
	require.True(t, DefaultRegistry().IsRegistered(m.ID()))
	require.NoError(t, m.Close())
	require.False(t, DefaultRegistry().IsRegistered(m.ID()))
}
