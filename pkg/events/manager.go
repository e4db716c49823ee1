// Package events maps event sources to the listeners subscribed to them
// without keeping either alive. One Manager exists per kind of event; it tells
// its Attacher when a source gains its first subscriber and when it loses the
// last one so the real event can be hooked and unhooked.
package events

import (
	"reflect"

	"github.com/BitPonyLLC/weakevents/pkg/dispatcher"
	"github.com/BitPonyLLC/weakevents/pkg/listeners"
	"github.com/BitPonyLLC/weakevents/pkg/weakref"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Attacher connects a manager to the underlying event. StartListening is called
// once when a source goes from zero to one subscriber and StopListening once
// when it goes back to zero. Both run after the registry lock was released and
// may subscribe to or query any manager. The source is nil for static events
// and for sources that were already collected.
type Attacher interface {
	StartListening(source any)
	StopListening(source any)
}

// Deliverer may be implemented by an Attacher to replace how a source's list is
// delivered to.
type Deliverer interface {
	DeliverEventToList(source, payload any, list *listeners.List) (stale bool, err error)
}

// CleanupRequester is asked for a sweep when delivery runs into dead entries.
type CleanupRequester interface {
	RequestCleanup()
}

// NoSource is the key used for events that are not raised by any object.
var NoSource = weakref.Ref{}

var (
	// ErrNilArgument is returned when a listener, handler, manager type or
	// purge data is missing. Same value as listeners.ErrNilArgument.
	ErrNilArgument = listeners.ErrNilArgument

	// ErrTypeMismatch is returned when a slot doesn't hold a listener list or a
	// subscriber can't receive events. Same value as listeners.ErrTypeMismatch.
	ErrTypeMismatch = listeners.ErrTypeMismatch
)

// Manager is the listener registry for one kind of event.
type Manager struct {
	managerType reflect.Type
	attacher    Attacher
	dispatcher  *dispatcher.Dispatcher
	cleanup     CleanupRequester
	log         *zerolog.Logger

	slots map[any]*slot

	deliveries atomic.Uint64
	clones     atomic.Uint64
	purged     atomic.Uint64
	starts     atomic.Uint64
	stops      atomic.Uint64
}

// Stats is a snapshot of a manager's registry and counters.
type Stats struct {
	Type       string `yaml:"type"`
	Sources    int    `yaml:"sources"`
	Entries    int    `yaml:"entries"`
	Deliveries uint64 `yaml:"deliveries"`
	Clones     uint64 `yaml:"clones"`
	Purged     uint64 `yaml:"purged"`
	Starts     uint64 `yaml:"starts"`
	Stops      uint64 `yaml:"stops"`
}

// NewManager creates a manager for the event kind identified by managerType. A
// nil attacher makes the start/stop hooks no-ops.
func NewManager(managerType reflect.Type, attacher Attacher, opts ...Option) (*Manager, error) {
	if managerType == nil {
		return nil, errors.Wrap(ErrNilArgument, "manager type")
	}

	nop := zerolog.Nop()
	m := &Manager{
		managerType: managerType,
		attacher:    attacher,
		dispatcher:  dispatcher.Current(),
		log:         &nop,
		slots:       map[any]*slot{},
	}

	for _, opt := range opts {
		opt(m)
	}

	mlog := m.log.With().Str("manager", managerType.String()).Logger()
	m.log = &mlog

	return m, nil
}

// Type returns the event kind this manager serves.
func (m *Manager) Type() reflect.Type {
	return m.managerType
}

// Dispatcher returns the execution context the manager is bound to.
func (m *Manager) Dispatcher() *dispatcher.Dispatcher {
	return m.dispatcher
}

// AddListener subscribes listener to events raised by source. The listener must
// implement listeners.Listener and is only weakly held.
func (m *Manager) AddListener(source, listener weakref.Ref) error {
	if listener.IsZero() {
		return errors.Wrap(ErrNilArgument, "listener")
	}

	if v := listener.Value(); v != nil {
		if _, ok := v.(listeners.Listener); !ok {
			return errors.Wrapf(ErrTypeMismatch, "%T does not implement Listener", v)
		}
	}

	return m.add(source, listeners.ListenerEntry(listener))
}

// RemoveListener drops the first subscription of listener to source. Unknown
// sources and listeners are ignored.
func (m *Manager) RemoveListener(source, listener weakref.Ref) error {
	if listener.IsZero() {
		return errors.Wrap(ErrNilArgument, "listener")
	}

	return m.remove(source, func(list *listeners.List) { list.Remove(listener) })
}

// AddHandler subscribes a handler method to events raised by source. The
// handler target is not checked until an event is delivered.
func (m *Manager) AddHandler(source weakref.Ref, h listeners.Handler) error {
	if h.IsZero() {
		return errors.Wrap(ErrNilArgument, "handler")
	}

	return m.add(source, listeners.HandlerEntry(h))
}

// RemoveHandler drops the first subscription of h to source.
func (m *Manager) RemoveHandler(source weakref.Ref, h listeners.Handler) error {
	if h.IsZero() {
		return errors.Wrap(ErrNilArgument, "handler")
	}

	return m.remove(source, func(list *listeners.List) { list.RemoveHandler(h) })
}

// DeliverEvent passes payload to every live subscriber of source, in the order
// they subscribed. The lock is only held to find the list: subscribers may add
// and remove (on any source) while being notified without disturbing the
// delivery in progress.
func (m *Manager) DeliverEvent(source weakref.Ref, payload any) error {
	list, err := m.acquire(source)
	if err != nil {
		return err
	}
	defer list.EndUse()

	m.deliveries.Inc()

	stale, err := m.deliverToList(source.Value(), payload, list)
	if stale && m.cleanup != nil {
		m.cleanup.RequestCleanup()
	}

	return err
}

// Purge is the cleanup primitive. With purgeAll set it only tells the attacher
// to stop listening to source and returns false; the caller tears down the
// mapping and must not hold the registry lock. Otherwise data must be the
// source's list: dead entries are removed in place and the result reports
// whether the list is now empty. The caller owns
// the copy-on-write discipline and the registry lock (Sweep does both).
func (m *Manager) Purge(source weakref.Ref, data any, purgeAll bool) (bool, error) {
	if purgeAll {
		m.stopListening(source)
		return false, nil
	}

	if data == nil {
		return false, errors.Wrap(ErrNilArgument, "purge data")
	}

	list, ok := data.(*listeners.List)
	if !ok {
		return false, errors.Wrapf(ErrTypeMismatch, "purge data is %T, not a listener list", data)
	}

	before := list.Count()
	empty := list.Purge()
	m.purged.Add(uint64(before - list.Count()))

	return empty, nil
}

// Get returns whatever is stored for source, or nil.
func (m *Manager) Get(source weakref.Ref) any {
	defer m.dispatcher.ReadLock()()

	if s, ok := m.slots[source.Key()]; ok {
		return s.data
	}
	return nil
}

// Set stores data for source directly, without calling the attacher. Managers
// may keep bookkeeping other than listener lists this way.
func (m *Manager) Set(source weakref.Ref, data any) {
	defer m.dispatcher.WriteLock()()

	m.slots[source.Key()] = &slot{source: source, data: data}
}

// Delete removes the mapping for source without calling the attacher.
func (m *Manager) Delete(source weakref.Ref) {
	defer m.dispatcher.WriteLock()()

	delete(m.slots, source.Key())
}

// Lookup returns the list currently bound to source, or nil when there is none.
// The list may be shared with deliveries in progress and must not be modified.
func (m *Manager) Lookup(source weakref.Ref) (*listeners.List, error) {
	defer m.dispatcher.ReadLock()()

	s, ok := m.slots[source.Key()]
	if !ok {
		return nil, nil
	}

	return s.list()
}

// Stats returns a snapshot of the registry.
func (m *Manager) Stats() Stats {
	defer m.dispatcher.ReadLock()()

	stats := Stats{
		Type:       m.managerType.String(),
		Sources:    len(m.slots),
		Deliveries: m.deliveries.Load(),
		Clones:     m.clones.Load(),
		Purged:     m.purged.Load(),
		Starts:     m.starts.Load(),
		Stops:      m.stops.Load(),
	}

	for _, s := range m.slots {
		if list, ok := s.data.(*listeners.List); ok {
			stats.Entries += list.Count()
		}
	}

	return stats
}

//--------------------------------------------------------------------------------
// private

type slot struct {
	source weakref.Ref
	data   any
}

func (s *slot) list() (*listeners.List, error) {
	list, ok := s.data.(*listeners.List)
	if !ok {
		return nil, errors.Wrapf(ErrTypeMismatch, "source %s holds %T, not a listener list", s.source, s.data)
	}
	return list, nil
}

// add and remove call the attacher only after the lock is released, so hooks
// may use any manager, this one included.
func (m *Manager) add(source weakref.Ref, e listeners.Entry) error {
	started, err := m.addLocked(source, e)
	if started {
		m.startListening(source)
	}
	return err
}

func (m *Manager) addLocked(source weakref.Ref, e listeners.Entry) (bool, error) {
	defer m.dispatcher.WriteLock()()

	key := source.Key()
	s, exists := m.slots[key]

	list := listeners.Empty
	if exists {
		var err error
		list, err = s.list()
		if err != nil {
			return false, err
		}
	} else {
		s = &slot{source: source}
	}

	list = m.prepareForWriting(list)
	list.AddEntry(e)
	s.data = list

	if !exists {
		m.slots[key] = s
	}

	return !exists, nil
}

func (m *Manager) remove(source weakref.Ref, drop func(*listeners.List)) error {
	stopped, err := m.removeLocked(source, drop)
	if stopped {
		m.stopListening(source)
	}
	return err
}

func (m *Manager) removeLocked(source weakref.Ref, drop func(*listeners.List)) (bool, error) {
	defer m.dispatcher.WriteLock()()

	key := source.Key()
	s, exists := m.slots[key]
	if !exists {
		return false, nil
	}

	list, err := s.list()
	if err != nil {
		return false, err
	}

	list = m.prepareForWriting(list)
	drop(list)

	if list.IsEmpty() {
		delete(m.slots, key)
		return true, nil
	}

	s.data = list
	return false, nil
}

func (m *Manager) prepareForWriting(list *listeners.List) *listeners.List {
	writable, cloned := list.PrepareForWriting()
	if cloned && list != listeners.Empty {
		m.clones.Inc()
	}
	return writable
}

// acquire finds the list for source and takes a use hold on it. Sources without
// subscribers get the shared Empty list.
func (m *Manager) acquire(source weakref.Ref) (*listeners.List, error) {
	defer m.dispatcher.ReadLock()()

	list := listeners.Empty
	if s, ok := m.slots[source.Key()]; ok {
		var err error
		list, err = s.list()
		if err != nil {
			return nil, err
		}
	}

	list.BeginUse()
	return list, nil
}

func (m *Manager) deliverToList(source, payload any, list *listeners.List) (bool, error) {
	if d, ok := m.attacher.(Deliverer); ok {
		return d.DeliverEventToList(source, payload, list)
	}
	return list.Deliver(source, payload, m.managerType)
}

func (m *Manager) startListening(source weakref.Ref) {
	m.starts.Inc()
	m.log.Debug().Stringer("source", source).Msg("start listening")

	if m.attacher != nil {
		m.attacher.StartListening(source.Value())
	}
}

func (m *Manager) stopListening(source weakref.Ref) {
	m.stops.Inc()
	m.log.Debug().Stringer("source", source).Msg("stop listening")

	if m.attacher != nil {
		m.attacher.StopListening(source.Value())
	}
}
