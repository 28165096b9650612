package offheap

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-json-experiment/json"
)

type DumpFlags uint64

const (
	DumpHeader = DumpFlags(1 << iota)
	DumpStats
	DumpEntries
	DumpIndexes

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump writes a human-readable listing of the map.
func (m *Map[K, V]) Dump(w io.Writer, f DumpFlags) error {
	return dump[K, V](w, f, m.kind, m.stats, m)
}

// Dump writes a human-readable listing of the map in insertion order. With
// DumpIndexes, the sequence index follows.
func (l *LinkedMap[K, V]) Dump(w io.Writer, f DumpFlags) error {
	if err := dump[K, V](w, f, l.kind, l.Stats(), l); err != nil {
		return err
	}
	if f.Contains(DumpIndexes) {
		fmt.Fprintln(w, dumpSep2)
		return l.i2k.Range(func(seq int64, key K) bool {
			fmt.Fprintf(w, "%s.i2k.%d => %s\n", l.kind, seq, loggable(key))
			return true
		})
	}
	return nil
}

func dump[K, V any](w io.Writer, f DumpFlags, prefix string, s Stats, src source[K, V]) error {
	if f.Contains(DumpHeader) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d entries)\n", prefix, src.Len())
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: key_bytes = %d, value_bytes = %d, total_bytes = %d\n", prefix, s.KeyBytes, s.ValueBytes, s.TotalBytes())
	}
	if !f.Contains(DumpEntries) {
		return nil
	}
	if f.Contains(DumpStats) {
		fmt.Fprintln(w, dumpSep2)
	}
	raw, err := src.rawIterator()
	if err != nil {
		return err
	}
	defer raw.Close()
	kc, vc := src.codecs()
	var pos int
	for raw.Next() {
		pos++
		k, kerr := kc.Decode(raw.Key())
		v, verr := vc.Decode(raw.Value())
		if kerr != nil || verr != nil {
			fmt.Fprintf(w, "%s.%d = ** ERROR: %x: %v\n", prefix, pos, raw.Key(), firstErr(kerr, verr))
			continue
		}
		fmt.Fprintf(w, "%s.%d: %s => %s\n", prefix, pos, loggable(k), loggable(v))
	}
	if err := raw.Err(); err != nil {
		return src.errf("dump", nil, engineErr(err))
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func loggable(v any) string {
	b, err := json.Marshal(v, json.Deterministic(true))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
