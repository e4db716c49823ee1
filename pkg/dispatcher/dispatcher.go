// Package dispatcher provides the execution context that event managers are
// bound to: an identity and the read/write lock pair guarding their registries.
package dispatcher

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Dispatcher identifies an execution context. Every manager created on the
// same dispatcher shares its lock.
type Dispatcher struct {
	Name string

	id uuid.UUID
	mu sync.RWMutex
}

// New creates a dispatcher with a fresh identity.
func New(name string) *Dispatcher {
	return &Dispatcher{Name: name, id: uuid.New()}
}

// Current returns the process-wide default dispatcher.
func Current() *Dispatcher {
	currentOnce.Do(func() {
		current = New("main")
	})
	return current
}

// ID returns the dispatcher identity.
func (d *Dispatcher) ID() uuid.UUID {
	return d.id
}

// ReadLock acquires the shared lock and returns its release. Use it scoped:
//
//	defer d.ReadLock()()
func (d *Dispatcher) ReadLock() func() {
	d.mu.RLock()
	return d.mu.RUnlock
}

// WriteLock acquires the exclusive lock and returns its release.
func (d *Dispatcher) WriteLock() func() {
	d.mu.Lock()
	return d.mu.Unlock
}

func (d *Dispatcher) String() string {
	return fmt.Sprintf("%s(%s)", d.Name, d.id)
}

//--------------------------------------------------------------------------------
// private

var current *Dispatcher
var currentOnce sync.Once
