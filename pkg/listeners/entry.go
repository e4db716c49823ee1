package listeners

import (
	"fmt"
	"reflect"

	"github.com/BitPonyLLC/weakevents/pkg/weakref"
)

// Listener is the capability an object needs to receive events directly. The
// returned "handled" flag is reported but not acted upon by delivery.
type Listener interface {
	ReceiveWeakEvent(managerType reflect.Type, source, payload any) bool
}

// Handler names a method on a weakly held target. The method is looked up on
// the live target each time an event is delivered and must have the shape
//
//	func(source, payload any)
//
// The target must also implement Listener.
type Handler struct {
	Target weakref.Ref
	Method string
}

// NewHandler creates a Handler for the named method of target.
func NewHandler[T any](target *T, method string) Handler {
	return Handler{Target: weakref.Make(target), Method: method}
}

// IsZero reports whether the handler has no target or no method.
func (h Handler) IsZero() bool {
	return h.Target.IsZero() || h.Method == ""
}

// Is reports whether both handlers name the same method on the same object.
func (h Handler) Is(other Handler) bool {
	return h.Target.Is(other.Target) && h.Method == other.Method
}

func (h Handler) String() string {
	return fmt.Sprintf("%s.%s", h.Target, h.Method)
}

// Kind distinguishes the two entry variants.
type Kind int

const (
	// KindListener entries hold an object implementing Listener.
	KindListener Kind = iota

	// KindHandler entries hold a handler target and method name.
	KindHandler
)

func (k Kind) String() string {
	switch k {
	case KindListener:
		return "listener"
	case KindHandler:
		return "handler"
	default:
		return "unknown"
	}
}

// Entry is a single subscription slot.
type Entry struct {
	kind   Kind
	target weakref.Ref
	method string
}

// ListenerEntry creates a KindListener entry. A zero ref is allowed and
// represents a slot with no target.
func ListenerEntry(listener weakref.Ref) Entry {
	return Entry{kind: KindListener, target: listener}
}

// HandlerEntry creates a KindHandler entry.
func HandlerEntry(h Handler) Entry {
	return Entry{kind: KindHandler, target: h.Target, method: h.Method}
}

// Kind returns the entry variant.
func (e Entry) Kind() Kind {
	return e.kind
}

// Target returns the weakly held listener or handler target.
func (e Entry) Target() weakref.Ref {
	return e.target
}

// Method returns the handler method name (empty for listener entries).
func (e Entry) Method() string {
	return e.method
}

// Alive reports whether the entry's target can still be reached.
func (e Entry) Alive() bool {
	return e.target.Alive()
}

// Listener resolves the entry's target as a Listener.
func (e Entry) Listener() (Listener, error) {
	target := e.target.Value()
	if target == nil {
		return nil, mismatch("%s entry has no live target", e.kind)
	}

	l, ok := target.(Listener)
	if !ok {
		return nil, mismatch("%T does not implement Listener", target)
	}

	return l, nil
}

//--------------------------------------------------------------------------------
// private

var handlerFuncType = reflect.TypeOf((func(any, any))(nil))

func (e Entry) isListener(listener weakref.Ref) bool {
	return e.kind == KindListener && e.target.Is(listener)
}

func (e Entry) isHandler(h Handler) bool {
	return e.kind == KindHandler && e.target.Is(h.Target) && e.method == h.Method
}

// resolve binds the handler method on a live target.
func (e Entry) resolve(target any) (func(any, any), error) {
	if _, ok := target.(Listener); !ok {
		return nil, mismatch("handler target %T does not implement Listener", target)
	}

	method := reflect.ValueOf(target).MethodByName(e.method)
	if !method.IsValid() {
		return nil, mismatch("handler target %T has no method %s", target, e.method)
	}

	if method.Type() != handlerFuncType {
		return nil, mismatch("%T.%s is %s, want %s", target, e.method, method.Type(), handlerFuncType)
	}

	return method.Interface().(func(any, any)), nil
}
