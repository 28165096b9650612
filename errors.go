package offheap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andreyvit/offheap/codec"
)

var (
	// ErrInvalidArgument reports a nil key or value, an unencodable value,
	// or invalid configuration.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed reports use of a collection after Close and before Open.
	ErrClosed = errors.New("collection is closed")

	// ErrNotScalable reports an operation that would need a full scan to
	// find values, such as ContainsValue. There is no value index.
	ErrNotScalable = errors.New("operation not scalable: no value index")

	// ErrNoSuchElement reports an exhausted iterator or a first-key query on
	// an empty collection.
	ErrNoSuchElement = errors.New("no such element")

	// ErrUnsupported reports removal through an iterator. Iteration is
	// read-only; remove by key instead.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrEngine wraps every failure reported by the storage engine.
	ErrEngine = errors.New("engine failure")

	// ErrCorrupt wraps stored bytes that do not decode.
	ErrCorrupt = codec.ErrCorrupt
)

// CollectionError attaches the collection and operation to a failure.
type CollectionError struct {
	ID  uint64
	Dir string
	Op  string
	Key []byte
	Err error
}

func collErrf(id uint64, dir, op string, key []byte, err error) error {
	return &CollectionError{ID: id, Dir: dir, Op: op, Key: key, Err: err}
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

func (e *CollectionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "offheap #%d", e.ID)
	if e.Dir != "" {
		buf.WriteString(" (")
		buf.WriteString(e.Dir)
		buf.WriteByte(')')
	}
	if e.Op != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Op)
	}
	if e.Key != nil {
		fmt.Fprintf(&buf, " %s", hexstr(e.Key))
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

func engineErr(err error) error {
	return fmt.Errorf("%w: %w", ErrEngine, err)
}
