package events_test

import (
	"reflect"
	"sync"

	"github.com/BitPonyLLC/weakevents/pkg/weakref"
)

type clickManager struct{}

var clickType = reflect.TypeFor[clickManager]()

type button struct {
	name  string
	attrs map[string]string
}

func newButton(name string) *button {
	return &button{name: name, attrs: map[string]string{}}
}

type received struct {
	who     string
	mgr     reflect.Type
	source  any
	payload any
}

type journal struct {
	mutex sync.Mutex
	calls []received
}

func (j *journal) add(r received) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.calls = append(j.calls, r)
}

func (j *journal) names() []string {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	names := []string{}
	for _, c := range j.calls {
		names = append(names, c.who)
	}
	return names
}

func (j *journal) reset() {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.calls = nil
}

type listener struct {
	name      string
	j         *journal
	onReceive func()
}

func newListener(name string, j *journal) *listener {
	return &listener{name: name, j: j}
}

func (l *listener) ReceiveWeakEvent(managerType reflect.Type, source, payload any) bool {
	l.j.add(received{who: l.name, mgr: managerType, source: source, payload: payload})
	if l.onReceive != nil {
		l.onReceive()
	}
	return true
}

func (l *listener) OnClick(source, payload any) {
	l.j.add(received{who: l.name + ".OnClick", source: source, payload: payload})
}

// plainTarget can be used as a handler target but can't receive events.
type plainTarget struct {
	name string
	j    *journal
}

func (p *plainTarget) OnClick(source, payload any) {
	p.j.add(received{who: p.name})
}

type attacher struct {
	mutex  sync.Mutex
	starts []any
	stops  []any
}

func (a *attacher) StartListening(source any) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.starts = append(a.starts, source)
}

func (a *attacher) StopListening(source any) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.stops = append(a.stops, source)
}

func (a *attacher) counts() (int, int) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return len(a.starts), len(a.stops)
}

type requester struct {
	mutex    sync.Mutex
	requests int
}

func (r *requester) RequestCleanup() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.requests++
}

func (r *requester) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.requests
}

//go:noinline
func deadListener(j *journal) weakref.Ref {
	return weakref.Make(newListener("dead", j))
}

//go:noinline
func deadButton() weakref.Ref {
	return weakref.Make(newButton("dead"))
}
