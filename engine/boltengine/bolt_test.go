package boltengine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/andreyvit/offheap/engine"
	"github.com/andreyvit/offheap/engine/enginetest"
)

func TestConformance(t *testing.T) {
	enginetest.Run(t, "bolt", func(t testing.TB, cfg engine.Config) (engine.Engine, error) {
		return Open(cfg)
	})
}

func TestRejectsCustomComparer(t *testing.T) {
	_, err := Open(engine.Config{
		Dir:      t.TempDir(),
		Comparer: &engine.Comparer{Name: "x", Compare: func(a, b []byte) int { return 0 }},
	})
	if !errors.Is(err, engine.ErrUnsupportedOrdering) {
		t.Fatalf("** err = %v, wanted ErrUnsupportedOrdering", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	eng, err := Open(engine.Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := eng.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := eng.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Fatalf("** data file missing: %v", err)
	}

	eng, err = Open(engine.Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()
	v, found, err := eng.Get([]byte("k"))
	if err != nil || !found || string(v) != "v" {
		t.Errorf("** Get = %q, %v, %v; wanted v, true, nil", v, found, err)
	}
}
