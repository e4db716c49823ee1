package events

import (
	"reflect"
	"sync"

	"github.com/BitPonyLLC/weakevents/pkg/listeners"
	"github.com/BitPonyLLC/weakevents/pkg/weakref"
)

// Event is what a Watcher receives on its channel.
type Event struct {
	ManagerType reflect.Type
	Source      any
	Payload     any
}

// Watcher is a Listener that relays events onto the Ch channel. The manager
// only holds it weakly: keep the Watcher around for as long as events are
// wanted.
type Watcher struct {
	Ch chan Event

	mutex  sync.Mutex
	closed bool
	stop   func(*Watcher) error
}

var _ listeners.Listener = (*Watcher)(nil) // ensures we conform to the Listener interface

// Watch subscribes a new Watcher to source. Events arriving while the channel
// buffer (of the given size) is full are dropped.
func (m *Manager) Watch(source weakref.Ref, size int) (*Watcher, error) {
	watcher := &Watcher{
		Ch: make(chan Event, size),
		stop: func(w *Watcher) error {
			return m.RemoveListener(source, weakref.Make(w))
		},
	}

	err := m.AddListener(source, weakref.Make(watcher))
	if err != nil {
		return nil, err
	}

	return watcher, nil
}

// ReceiveWeakEvent queues the event without blocking and reports whether it fit.
func (w *Watcher) ReceiveWeakEvent(managerType reflect.Type, source, payload any) bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return false
	}

	select {
	case w.Ch <- Event{ManagerType: managerType, Source: source, Payload: payload}:
		return true
	default:
		return false
	}
}

// Stop will unregister a Watcher and close its Ch channel.
func (w *Watcher) Stop() error {
	err := w.stop(w)

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.closed {
		w.closed = true
		close(w.Ch)
	}

	return err
}
