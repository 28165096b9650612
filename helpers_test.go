package offheap

import (
	"reflect"
	"testing"

	"github.com/andreyvit/offheap/logger"
)

func setupRegistry(t testing.TB) *Registry {
	t.Helper()
	reg := NewRegistry(logger.Nop())
	t.Cleanup(func() {
		reg.Shutdown()
		reg.Stop()
	})
	return reg
}

func testOpts(t testing.TB, engineName string, extra ...Option) []Option {
	t.Helper()
	opts := []Option{
		WithBaseDir(t.TempDir()),
		WithEngine(engineName),
		WithLogger(logger.Nop()),
		WithRegistry(setupRegistry(t)),
	}
	return append(opts, extra...)
}

// forEachEngine runs fn against every engine that supports the test.
func forEachEngine(t *testing.T, fn func(t *testing.T, engineName string)) {
	for _, name := range []string{EngineBolt, EnginePebble, EngineMem} {
		t.Run(name, func(t *testing.T) {
			fn(t, name)
		})
	}
}

// forEachSortingEngine skips Bolt, which only orders keys bytewise.
func forEachSortingEngine(t *testing.T, fn func(t *testing.T, engineName string)) {
	for _, name := range []string{EnginePebble, EngineMem} {
		t.Run(name, func(t *testing.T) {
			fn(t, name)
		})
	}
}

func closeLater[C interface{ Close() error }](t testing.TB, c C) C {
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("** close: %v", err)
		}
	})
	return c
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func ok(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("** unexpected error: %v", err)
	}
}
