package offheap

import (
	"errors"
)

// Updatable is a collection that supports Update.
type Updatable[K, V any] interface {
	Get(key K) (V, bool, error)
	Put(key K, value V) (V, bool, error)
	Remove(key K) (V, bool, error)
}

// Mutable holds a working copy of one entry during Update.
type Mutable[V any] struct {
	value      V
	present    bool
	wasPresent bool
}

// Get returns the current working value and whether it is present.
func (mv *Mutable[V]) Get() (V, bool) {
	return mv.value, mv.present
}

// Set replaces the working value and marks it present. Setting nil is the
// same as Unset.
func (mv *Mutable[V]) Set(v V) {
	if isNil(v) {
		mv.Unset()
		return
	}
	mv.value, mv.present = v, true
}

// Unset marks the entry for removal.
func (mv *Mutable[V]) Unset() {
	var zero V
	mv.value, mv.present = zero, false
}

func (mv *Mutable[V]) IsPresent() bool {
	return mv.present
}

// WasPresent reports whether the key existed when Update started.
func (mv *Mutable[V]) WasPresent() bool {
	return mv.wasPresent
}

// Update loads key into a Mutable, runs fn, and writes the outcome back
// exactly once: a present value is stored, an entry unset by fn is removed,
// and an entry that was never present stays absent.
//
// The write happens on every exit from fn. When fn returns an error, both
// errors are returned; when fn panics, the write is done and the panic is
// re-raised.
//
// Values are stored again even if fn did not call Set, so in-place changes
// to reference values obtained from Get are persisted.
func Update[K, V any](c Updatable[K, V], key K, fn func(mv *Mutable[V]) error) (err error) {
	cur, present, err := c.Get(key)
	if err != nil {
		return err
	}
	mv := &Mutable[V]{value: cur, present: present, wasPresent: present}
	defer func() {
		commitErr := commit(c, key, mv)
		err = errors.Join(err, commitErr)
	}()
	return fn(mv)
}

func commit[K, V any](c Updatable[K, V], key K, mv *Mutable[V]) (err error) {
	switch {
	case mv.present:
		_, _, err = c.Put(key, mv.value)
	case mv.wasPresent:
		_, _, err = c.Remove(key)
	}
	return err
}
