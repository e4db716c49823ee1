// Package cleanup runs sweeps over event managers in the background so that
// entries for collected listeners and sources don't accumulate.
package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/BitPonyLLC/weakevents/pkg/events"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// Sweeper is anything that can purge itself of dead entries. *events.Manager
// is one.
type Sweeper interface {
	Sweep() (events.SweepStats, error)
}

// Source provides the sweepers to visit on each pass.
type Source func() []Sweeper

// DirectorySource sweeps every manager currently registered in the events
// directory.
func DirectorySource() Source {
	return func() []Sweeper {
		managers := events.Managers()
		sweepers := make([]Sweeper, len(managers))
		for i, m := range managers {
			sweepers[i] = m
		}
		return sweepers
	}
}

// Static always sweeps the same sweepers.
func Static(sweepers ...Sweeper) Source {
	return func() []Sweeper { return sweepers }
}

// Report describes one pass over all sweepers.
type Report struct {
	Sweepers int               `yaml:"sweepers"`
	Stats    events.SweepStats `yaml:"stats"`
	Took     time.Duration     `yaml:"took"`
	At       time.Time         `yaml:"at"`
}

// Stats are the scheduler's running totals.
type Stats struct {
	Running  bool              `yaml:"running"`
	Delay    time.Duration     `yaml:"delay"`
	Passes   uint64            `yaml:"passes"`
	Requests uint64            `yaml:"requests"`
	Failures uint64            `yaml:"failures"`
	Totals   events.SweepStats `yaml:"totals"`
	Last     Report            `yaml:"last"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for sweep summaries and failures.
func WithLogger(log *zerolog.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// Scheduler sweeps its source periodically and whenever a sweep is requested.
// It satisfies events.CleanupRequester.
type Scheduler struct {
	source Source
	log    *zerolog.Logger

	loopMutex sync.Mutex
	ctx       atomic.Value
	delay     atomic.Duration
	running   atomic.Bool
	kick      chan struct{}

	sweepMutex sync.Mutex
	totals     events.SweepStats
	last       Report

	passes   atomic.Uint64
	requests atomic.Uint64
	failures atomic.Uint64
}

var _ events.CleanupRequester = (*Scheduler)(nil) // ensures we conform to the CleanupRequester interface

// NewScheduler creates a scheduler that sweeps whatever source yields.
func NewScheduler(source Source, opts ...Option) *Scheduler {
	nop := zerolog.Nop()
	s := &Scheduler{
		source: source,
		log:    &nop,
		kick:   make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start begins sweeping every delay until ctx is canceled. A delay of zero or
// less only sweeps on request. Calling Start while already running just updates
// the context and delay used for the next wait.
func (s *Scheduler) Start(ctx context.Context, delay time.Duration) {
	s.ctx.Store(ctx)
	s.delay.Store(delay)

	if s.loopMutex.TryLock() {
		s.running.Store(true)
		go func() {
			defer s.loopMutex.Unlock()
			defer s.running.Store(false)
			s.loop()
		}()
	}
}

// SetDelay changes the period; it takes effect after the current wait.
func (s *Scheduler) SetDelay(delay time.Duration) {
	s.delay.Store(delay)
}

// Running reports whether the background loop is active.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// RequestCleanup asks the background loop for a sweep as soon as possible. It
// never blocks; requests made while one is pending are coalesced.
func (s *Scheduler) RequestCleanup() {
	s.requests.Inc()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// SweepNow runs one pass over every sweeper from the source. A failing sweeper
// doesn't stop the others; all failures are returned together.
func (s *Scheduler) SweepNow() (Report, error) {
	s.sweepMutex.Lock()
	defer s.sweepMutex.Unlock()

	start := time.Now()
	report := Report{At: start}
	var errs error

	if s.source != nil {
		for _, sweeper := range s.source() {
			report.Sweepers++

			stats, err := sweeper.Sweep()
			report.Stats.Add(stats)
			if err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}

	report.Took = time.Since(start)

	s.passes.Inc()
	s.totals.Add(report.Stats)
	s.last = report

	if errs != nil {
		s.failures.Inc()
		s.log.Error().Err(errs).Int("failed", report.Stats.Failed).Msg("sweep")
	}

	s.log.Debug().
		Int("sweepers", report.Sweepers).
		Int("purged", report.Stats.Purged).
		Int("dead_sources", report.Stats.DeadSources).
		Int("empty_sources", report.Stats.EmptySources).
		Dur("took", report.Took).
		Msg("sweep finished")

	return report, errs
}

// Stats returns a snapshot of the scheduler's counters.
func (s *Scheduler) Stats() Stats {
	s.sweepMutex.Lock()
	defer s.sweepMutex.Unlock()

	return Stats{
		Running:  s.running.Load(),
		Delay:    s.delay.Load(),
		Passes:   s.passes.Load(),
		Requests: s.requests.Load(),
		Failures: s.failures.Load(),
		Totals:   s.totals,
		Last:     s.last,
	}
}

//--------------------------------------------------------------------------------
// private

func (s *Scheduler) loop() {
	s.log.Debug().Dur("delay", s.delay.Load()).Msg("starting cleanup scheduler")
	defer s.log.Debug().Msg("cleanup scheduler stopped")

	for {
		ctx := s.ctx.Load().(context.Context)

		var tick <-chan time.Time
		var timer *time.Timer
		if delay := s.delay.Load(); delay > 0 {
			timer = time.NewTimer(delay)
			tick = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.kick:
			if timer != nil {
				timer.Stop()
			}
		case <-tick:
		}

		// failures are already logged and counted
		s.SweepNow()
	}
}
