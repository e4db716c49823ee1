// Package listeners holds the per-source subscription list used by event
// managers: weakly held entries, a use count that makes mutation copy-on-write
// while deliveries are in flight, and the delivery loop itself.
package listeners

import (
	"reflect"
	"slices"

	"github.com/BitPonyLLC/weakevents/pkg/weakref"

	"go.uber.org/atomic"
)

// List is an ordered collection of entries for one source. Mutating methods
// assume exclusive access to the instance they're called on; callers sharing a
// list with in-flight deliveries must go through PrepareForWriting first.
type List struct {
	entries []Entry
	users   atomic.Int32
	frozen  bool
}

// Empty is a shared, immutable list with no entries.
var Empty = &List{frozen: true}

// NewList creates an empty, writable list.
func NewList() *List {
	return &List{}
}

// Count returns the number of entries, dead ones included.
func (l *List) Count() int {
	return len(l.entries)
}

// IsEmpty reports whether the list has no entries.
func (l *List) IsEmpty() bool {
	return len(l.entries) == 0
}

// At returns the entry at index i.
func (l *List) At(i int) (Entry, error) {
	if i < 0 || i >= len(l.entries) {
		return Entry{}, &RangeError{Index: i, Count: len(l.entries)}
	}
	return l.entries[i], nil
}

// Entries returns a copy of the entries in delivery order.
func (l *List) Entries() []Entry {
	return slices.Clone(l.entries)
}

// Add appends a listener entry. Adding the same listener twice produces two
// independent entries.
func (l *List) Add(listener weakref.Ref) {
	l.AddEntry(ListenerEntry(listener))
}

// AddHandler appends a handler entry.
func (l *List) AddHandler(h Handler) {
	l.AddEntry(HandlerEntry(h))
}

// AddEntry appends e.
func (l *List) AddEntry(e Entry) {
	l.mustBeWritable()
	l.entries = append(l.entries, e)
}

// Remove drops the first listener entry referring to the same object as
// listener. A zero ref matches a stored entry with no target. Absent listeners
// are ignored.
func (l *List) Remove(listener weakref.Ref) {
	l.removeFirst(func(e Entry) bool { return e.isListener(listener) })
}

// RemoveHandler drops the first handler entry with the same target and method.
func (l *List) RemoveHandler(h Handler) {
	l.removeFirst(func(e Entry) bool { return e.isHandler(h) })
}

// BeginUse marks the list as being iterated and reports whether someone else
// was already using it. Every call must be paired with EndUse.
func (l *List) BeginUse() bool {
	return l.users.Inc() > 1
}

// EndUse releases a hold taken by BeginUse. Extra calls are ignored.
func (l *List) EndUse() {
	for {
		n := l.users.Load()
		if n <= 0 {
			return
		}
		if l.users.CAS(n, n-1) {
			return
		}
	}
}

// Use takes a hold on the list and returns its release:
//
//	defer list.Use()()
func (l *List) Use() func() {
	l.BeginUse()
	return l.EndUse
}

// InUse reports whether any holder is iterating the list.
func (l *List) InUse() bool {
	return l.users.Load() > 0
}

// Clone returns a writable copy with the same entries and no holders.
func (l *List) Clone() *List {
	return &List{entries: slices.Clone(l.entries)}
}

// CopyTo appends this list's entries onto other. Copying a list into itself
// duplicates every entry once.
func (l *List) CopyTo(other *List) {
	other.mustBeWritable()
	n := len(l.entries)
	for i := 0; i < n; i++ {
		other.entries = append(other.entries, l.entries[i])
	}
}

// Purge drops every entry whose target has been collected (or never existed)
// and reports whether the list ended up empty. It always mutates in place.
func (l *List) Purge() bool {
	if l.frozen {
		return l.IsEmpty()
	}

	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.Alive() {
			kept = append(kept, e)
		}
	}

	clear(l.entries[len(kept):])
	l.entries = kept

	return l.IsEmpty()
}

// HasDead reports whether any entry's target has been collected (or never
// existed), i.e. whether Purge would remove anything.
func (l *List) HasDead() bool {
	return slices.ContainsFunc(l.entries, func(e Entry) bool { return !e.Alive() })
}

// PrepareForWriting returns the list a caller may mutate: l itself when nobody
// is using it, otherwise a fresh clone (reported by the second result) that the
// caller must store in place of l.
func (l *List) PrepareForWriting() (*List, bool) {
	if l.frozen || l.InUse() {
		return l.Clone(), true
	}
	return l, false
}

// Deliver invokes every live entry in insertion order and reports whether it
// came across entries whose targets were collected. Dead entries are skipped,
// not removed. A target that can't receive events aborts the delivery with
// ErrTypeMismatch.
func (l *List) Deliver(source, payload any, managerType reflect.Type) (stale bool, err error) {
	for _, e := range l.entries {
		target := e.target.Value()
		if target == nil {
			stale = true
			continue
		}

		switch e.kind {
		case KindListener:
			listener, ok := target.(Listener)
			if !ok {
				return stale, mismatch("%T does not implement Listener", target)
			}

			// the handled flag is not acted upon
			listener.ReceiveWeakEvent(managerType, source, payload)
		case KindHandler:
			fn, err := e.resolve(target)
			if err != nil {
				return stale, err
			}

			fn(source, payload)
		}
	}

	return stale, nil
}

//--------------------------------------------------------------------------------
// private

func (l *List) mustBeWritable() {
	if l.frozen {
		panic("listeners: the shared Empty list cannot be modified")
	}
}

func (l *List) removeFirst(match func(Entry) bool) {
	for i, e := range l.entries {
		if match(e) {
			l.mustBeWritable()
			l.entries = slices.Delete(l.entries, i, i+1)
			return
		}
	}
}
