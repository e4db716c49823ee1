package events

import (
	"github.com/BitPonyLLC/weakevents/pkg/listeners"
	"github.com/BitPonyLLC/weakevents/pkg/weakref"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// SweepStats summarizes one Sweep.
type SweepStats struct {
	Sources      int `yaml:"sources"`       // slots examined
	DeadSources  int `yaml:"dead_sources"`  // slots dropped because the source was collected
	EmptySources int `yaml:"empty_sources"` // slots dropped because every entry was dead
	Purged       int `yaml:"purged"`        // dead entries removed
	Failed       int `yaml:"failed"`        // slots that could not be purged
}

// Add accumulates other into s.
func (s *SweepStats) Add(other SweepStats) {
	s.Sources += other.Sources
	s.DeadSources += other.DeadSources
	s.EmptySources += other.EmptySources
	s.Purged += other.Purged
	s.Failed += other.Failed
}

// Sweep walks the registry, drops dead entries and sources that no longer have
// any subscriber, and stops listening to them. A slot that can't be purged is
// left alone and reported in the returned error; the rest of the sweep carries
// on. The attacher is told about dropped sources once the registry is unlocked.
func (m *Manager) Sweep() (SweepStats, error) {
	stats, dead, emptied, errs := m.sweepLocked()

	for _, source := range dead {
		// the source itself is gone: nothing can raise this event again
		_, err := m.Purge(source, nil, true)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "unable to stop listening to %s", source))
		}
	}

	for _, source := range emptied {
		m.stopListening(source)
	}

	if stats.Purged > 0 || stats.DeadSources > 0 || stats.Failed > 0 {
		m.log.Debug().
			Int("sources", stats.Sources).
			Int("dead_sources", stats.DeadSources).
			Int("empty_sources", stats.EmptySources).
			Int("purged", stats.Purged).
			Int("failed", stats.Failed).
			Msg("swept")
	}

	return stats, errs
}

//--------------------------------------------------------------------------------
// private

func (m *Manager) sweepLocked() (stats SweepStats, dead, emptied []weakref.Ref, errs error) {
	defer m.dispatcher.WriteLock()()

	for key, s := range m.slots {
		stats.Sources++

		if !s.source.IsZero() && !s.source.Alive() {
			delete(m.slots, key)
			dead = append(dead, s.source)
			stats.DeadSources++
			continue
		}

		data := s.data
		before := 0
		if list, ok := data.(*listeners.List); ok {
			if !list.HasDead() && !list.IsEmpty() {
				continue // nothing to purge, so don't copy a list being delivered to
			}

			list = m.prepareForWriting(list)
			s.data = list
			data = list
			before = list.Count()
		}

		empty, err := m.Purge(s.source, data, false)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "unable to purge %s", s.source))
			stats.Failed++
			continue
		}

		stats.Purged += before - data.(*listeners.List).Count()

		if empty {
			delete(m.slots, key)
			emptied = append(emptied, s.source)
			stats.EmptySources++
		}
	}

	return stats, dead, emptied, errs
}
