/*
Package offheap implements maps and sets whose entries live in an embedded
key-value engine on disk rather than in the Go heap. Collections hold
millions of entries with a small, constant memory footprint.

We implement:

1. Map and Set, iterating in bytewise order of the encoded keys.

2. SortedMap and SortedSet, iterating in the order of a typed comparator.

3. LinkedMap and LinkedSet, iterating in insertion order.

4. Update, a read-modify-write helper that commits exactly once.

5. Registry, which closes the storage of collections dropped without Close.

# Technical Details

**Codecs.**
Keys and values are converted to bytes by a codec.Codec. Fixed-width integers
are big-endian, strings are raw UTF-8, and any other type falls back to
MessagePack. Encoded keys are the engine keys, so two keys are equal exactly
when their encodings are equal.

**Engines.**
Storage goes through the engine.Engine interface. Bolt (the default for
unsorted collections) only orders keys bytewise; Pebble accepts a custom
comparer and backs the sorted collections; an in-memory B-tree engine serves
tests. Each collection owns one engine instance in its own directory.

**Sizes.**
Entry counts and byte sizes are tracked in memory on every write, so Len
never scans. Persistent collections recount once when first opened.

**Insertion order.**
A linked collection keeps three maps in subdirectories: data, i2k
(sequence to key) and k2i (key to sequence). Writes touch the indexes
before data, and removals touch data last. There is no transaction across
the three, so a crash can leave index entries without data; iteration skips
them.

**Lifecycle.**
A collection is open from creation until Close. Close on a non-persistent
collection deletes its directory. Open brings a closed collection back,
empty. Collections that become unreachable while open are closed by the
Registry through a runtime cleanup; Registry.Shutdown closes everything at
process exit.

**Concurrency.**
A single collection must not be used from several goroutines at once.
Distinct collections are independent.
*/
package offheap
