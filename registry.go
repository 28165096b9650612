package offheap

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/andreyvit/offheap/logger"
)

const reclaimQueueSize = 1024

var lastID atomic.Uint64

func nextID() uint64 {
	return lastID.Add(1)
}

// Registry tracks open collections and closes the storage of those that
// become unreachable without an explicit Close.
//
// Each registration owns a closer that references the storage resources
// only, never the collection object. A runtime cleanup attached to the
// collection posts its id to a queue drained by a single reclaimer
// goroutine, which runs the closer. Failures are logged and never reach the
// caller.
type Registry struct {
	entries *xsync.MapOf[uint64, *registration]
	queue   chan uint64
	done    chan struct{}
	stopped sync.WaitGroup
	start   sync.Once
	stop    sync.Once
	log     logger.Logger

	metrics        *metrics.Set
	registered     *metrics.Counter
	unregistered   *metrics.Counter
	reclaimed      *metrics.Counter
	reclaimFailed  *metrics.Counter
	shutdownClosed *metrics.Counter
}

type registration struct {
	id      uint64
	desc    string
	alive   func() bool
	closer  func() error
	cleanup runtime.Cleanup
}

// Registration describes one tracked collection.
type Registration struct {
	ID    uint64
	Desc  string
	Alive bool
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r := NewRegistry(nil)
	metrics.RegisterSet(r.metrics)
	return r
})

// DefaultRegistry is used by collections opened without WithRegistry. Its
// metrics are published in the global VictoriaMetrics set.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// NewRegistry returns an independent registry; a nil log means
// logger.Default().
func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.Default()
	}
	s := metrics.NewSet()
	r := &Registry{
		entries: xsync.NewMapOf[uint64, *registration](),
		queue:   make(chan uint64, reclaimQueueSize),
		done:    make(chan struct{}),
		log:     log.With("component", "offheap.registry"),
		metrics: s,

		registered:     s.GetOrCreateCounter("offheap_registered_total"),
		unregistered:   s.GetOrCreateCounter("offheap_unregistered_total"),
		reclaimed:      s.GetOrCreateCounter("offheap_reclaimed_total"),
		reclaimFailed:  s.GetOrCreateCounter("offheap_reclaim_failures_total"),
		shutdownClosed: s.GetOrCreateCounter("offheap_shutdown_closed_total"),
	}
	s.GetOrCreateGauge("offheap_open_collections", func() float64 {
		return float64(r.entries.Size())
	})
	return r
}

// track registers closer under id and arranges for it to run once owner
// becomes unreachable. closer must not reference owner.
func track[T any](r *Registry, owner *T, id uint64, desc string, closer func() error) {
	r.start.Do(r.startReclaimer)
	wp := weak.Make(owner)
	reg := &registration{
		id:     id,
		desc:   desc,
		alive:  func() bool { return wp.Value() != nil },
		closer: closer,
	}
	reg.cleanup = runtime.AddCleanup(owner, r.enqueue, id)
	if prev, loaded := r.entries.LoadAndStore(id, reg); loaded {
		prev.cleanup.Stop()
	} else {
		r.registered.Inc()
	}
}

// untrack removes id without running its closer.
func (r *Registry) untrack(id uint64) {
	if reg, ok := r.entries.LoadAndDelete(id); ok {
		reg.cleanup.Stop()
		r.unregistered.Inc()
	}
}

func (r *Registry) enqueue(id uint64) {
	select {
	case r.queue <- id:
	case <-r.done:
	}
}

func (r *Registry) startReclaimer() {
	r.stopped.Add(1)
	go r.reclaimLoop()
}

func (r *Registry) reclaimLoop() {
	defer r.stopped.Done()
	for {
		select {
		case id := <-r.queue:
			r.reclaim(id)
		case <-r.done:
			return
		}
	}
}

func (r *Registry) reclaim(id uint64) {
	reg, ok := r.entries.LoadAndDelete(id)
	if !ok {
		return
	}
	r.reclaimed.Inc()
	if err := reg.closer(); err != nil {
		r.reclaimFailed.Inc()
		r.log.Error("failed to reclaim unreachable collection", "id", id, "desc", reg.desc, "err", err)
		return
	}
	r.log.Info("reclaimed unreachable collection", "id", id, "desc", reg.desc)
}

// IsRegistered reports whether id is open and tracked.
func (r *Registry) IsRegistered(id uint64) bool {
	_, ok := r.entries.Load(id)
	return ok
}

func (r *Registry) Len() int {
	return r.entries.Size()
}

// Registered lists tracked collections ordered by id.
func (r *Registry) Registered() []Registration {
	var result []Registration
	r.entries.Range(func(id uint64, reg *registration) bool {
		result = append(result, Registration{ID: id, Desc: reg.desc, Alive: reg.alive()})
		return true
	})
	slices.SortFunc(result, func(a, b Registration) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// Shutdown closes every tracked collection, logging each failure, and
// returns the number of collections closed. Collections remain usable as
// objects but report ErrClosed until reopened.
func (r *Registry) Shutdown() int {
	var n int
	for _, e := range r.Registered() {
		reg, ok := r.entries.LoadAndDelete(e.ID)
		if !ok {
			continue
		}
		reg.cleanup.Stop()
		n++
		r.shutdownClosed.Inc()
		if err := reg.closer(); err != nil {
			r.log.Error("failed to close collection on shutdown", "id", e.ID, "desc", reg.desc, "err", err)
		} else {
			r.log.Debug("closed collection on shutdown", "id", e.ID, "desc", reg.desc)
		}
	}
	return n
}

// Stop terminates the reclaimer goroutine. Unreachable collections are no
// longer closed afterwards; use Shutdown to close what remains.
func (r *Registry) Stop() {
	r.stop.Do(func() {
		close(r.done)
	})
	r.stopped.Wait()
}

// WriteMetrics writes the registry counters in Prometheus text format.
func (r *Registry) WriteMetrics(w io.Writer) {
	r.metrics.WritePrometheus(w)
}

func (r *Registry) String() string {
	return fmt.Sprintf("offheap.Registry(%d open)", r.Len())
}

// closeAll runs every closer, continuing past failures.
func closeAll(closers ...func() error) error {
	var errs []error
	for _, c := range closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
