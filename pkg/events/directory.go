package events

import (
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// GetCurrentManager returns the manager registered for managerType, or nil if
// none has been set. It never creates one.
func GetCurrentManager(managerType reflect.Type) (*Manager, error) {
	if managerType == nil {
		return nil, errors.Wrap(ErrNilArgument, "manager type")
	}

	directory.RLock()
	defer directory.RUnlock()

	return directory.managers[managerType], nil
}

// SetCurrentManager registers m as the manager for managerType. A nil m removes
// the registration; the previous manager is not otherwise disposed of.
func SetCurrentManager(managerType reflect.Type, m *Manager) error {
	if managerType == nil {
		return errors.Wrap(ErrNilArgument, "manager type")
	}

	directory.Lock()
	defer directory.Unlock()

	if m == nil {
		delete(directory.managers, managerType)
		return nil
	}

	if directory.managers == nil {
		directory.managers = map[reflect.Type]*Manager{}
	}

	directory.managers[managerType] = m
	return nil
}

// Managers returns every registered manager, ordered by type name.
func Managers() []*Manager {
	directory.RLock()
	defer directory.RUnlock()

	managers := make([]*Manager, 0, len(directory.managers))
	for _, m := range directory.managers {
		managers = append(managers, m)
	}

	slices.SortFunc(managers, func(a, b *Manager) int {
		return strings.Compare(a.managerType.String(), b.managerType.String())
	})

	return managers
}

//--------------------------------------------------------------------------------
// private

// only one manager per event kind, thus a package global directory
var directory struct {
	sync.RWMutex
	managers map[reflect.Type]*Manager
}
