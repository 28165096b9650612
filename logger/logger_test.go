package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithAddsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := New(zap.New(core)).With("component", "test")

	log.Info("opened", "id", 7)
	log.Debug("detail")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("** got %d entries, wanted 2", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["component"] != "test" {
		t.Errorf("** component = %v, wanted test", ctx["component"])
	}
	if ctx["id"] != int64(7) {
		t.Errorf("** id = %v (%T), wanted 7", ctx["id"], ctx["id"])
	}
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	core, logs := observer.New(zap.InfoLevel)
	SetDefault(New(zap.New(core)))
	Default().Warn("hello")
	if logs.Len() != 1 {
		t.Fatalf("** got %d entries, wanted 1", logs.Len())
	}
}

func TestMustProductionRejectsBadLevel(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("** MustProduction(\"loud\") did not panic")
		}
	}()
	MustProduction("loud")
}
