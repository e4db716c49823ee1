package events

import (
	"github.com/BitPonyLLC/weakevents/pkg/dispatcher"

	"github.com/rs/zerolog"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for start/stop and sweep messages.
func WithLogger(log *zerolog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithDispatcher binds the manager to d instead of the process default.
func WithDispatcher(d *dispatcher.Dispatcher) Option {
	return func(m *Manager) {
		if d != nil {
			m.dispatcher = d
		}
	}
}

// WithCleanupRequester sets who to ask for a sweep when delivery finds dead
// entries.
func WithCleanupRequester(r CleanupRequester) Option {
	return func(m *Manager) {
		m.cleanup = r
	}
}
