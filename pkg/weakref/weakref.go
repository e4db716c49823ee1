// Package weakref provides an untyped weak handle that can be stored alongside
// handles to objects of other types and compared by identity.
package weakref

import (
	"fmt"
	"weak"
)

// Ref holds a relation to an object without extending its lifetime. The zero
// Ref refers to nothing and is never alive.
type Ref struct {
	key   any // weak.Pointer[T]: comparable, equal only for the same object
	deref func() any
}

// Make returns a Ref to the object p points at. A nil p yields the zero Ref.
// The object must live on the heap (anything allocated with new or &T{} that
// escapes).
func Make[T any](p *T) Ref {
	if p == nil {
		return Ref{}
	}

	wp := weak.Make(p)
	return Ref{
		key: wp,
		deref: func() any {
			v := wp.Value()
			if v == nil {
				return nil // avoid handing back a typed nil
			}
			return v
		},
	}
}

// Value returns the referenced object or nil if it has been collected.
func (r Ref) Value() any {
	if r.deref == nil {
		return nil
	}
	return r.deref()
}

// Alive reports whether the referenced object can still be reached.
func (r Ref) Alive() bool {
	return r.Value() != nil
}

// IsZero reports whether r was made from a nil pointer (or never made at all).
func (r Ref) IsZero() bool {
	return r.key == nil
}

// Is reports whether both refs were made from the same object. Two zero refs
// are considered the same.
func (r Ref) Is(other Ref) bool {
	return r.key == other.key
}

// Key returns a comparable identity suitable for map keys. Holding the key does
// not keep the object alive.
func (r Ref) Key() any {
	return r.key
}

// String describes the ref for logging.
func (r Ref) String() string {
	if r.IsZero() {
		return "<none>"
	}

	v := r.Value()
	if v == nil {
		return "<collected>"
	}

	return fmt.Sprintf("%T@%p", v, v)
}
