package offheap

import (
	"errors"
	"strings"
	"testing"
)

func TestCollectionError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := collErrf(42, "/tmp/x", "put", []byte{0xAB}, engineErr(cause))

	msg := err.Error()
	for _, want := range []string{"offheap #42", "/tmp/x", "put", "ab", "engine failure", "disk on fire"} {
		if !strings.Contains(msg, want) {
			t.Errorf("** Error() = %q, missing %q", msg, want)
		}
	}
	if !errors.Is(err, ErrEngine) || !errors.Is(err, cause) {
		t.Fatalf("** errors.Is chain broken for %v", err)
	}
	var ce *CollectionError
	if !errors.As(err, &ce) || ce.ID != 42 {
		t.Fatalf("** errors.As = %+v", ce)
	}
}

func TestIsNil(t *testing.T) {
	var nilPtr *int
	var nilMap map[string]int
	var nilSlice []byte
	var nilIface error
	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"nil ptr", isNil(nilPtr), true},
		{"nil map", isNil(nilMap), true},
		{"nil slice", isNil(nilSlice), true},
		{"nil iface", isNil(nilIface), true},
		{"empty slice", isNil([]byte{}), false},
		{"zero int", isNil(0), false},
		{"empty string", isNil(""), false},
		{"struct", isNil(struct{}{}), false},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("** isNil(%s) = %v, wanted %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestHexstr(t *testing.T) {
	deepEqual(t, hexstr(nil), "<nil>")
	deepEqual(t, hexstr([]byte{}), "<empty>")
	deepEqual(t, hexstr([]byte{0xAA, 0xBB}), "aabb")
	deepEqual(t, hexstr(make([]byte, 40)), strings.Repeat("00", 32)+"...")
}
