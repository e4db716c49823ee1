// Package workload drives an event manager with synthetic sources and
// subscribers so the registry and the cleanup scheduler can be observed.
package workload

import (
	"context"
	"fmt"
	"math/rand/v2"
	"reflect"
	"sync"
	"time"

	"github.com/BitPonyLLC/weakevents/pkg/events"
	"github.com/BitPonyLLC/weakevents/pkg/listeners"
	"github.com/BitPonyLLC/weakevents/pkg/weakref"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Clicked identifies the synthetic event kind.
type Clicked struct{}

// ClickType is the manager type the workload registers.
var ClickType = reflect.TypeFor[Clicked]()

// Config sizes a workload.
type Config struct {
	Sources   int           `yaml:"sources"`
	Listeners int           `yaml:"listeners"` // per source; every other one is a handler
	Tick      time.Duration `yaml:"tick"`
	Churn     float64       `yaml:"churn"` // fraction of subscribers replaced per tick
	Seed      uint64        `yaml:"seed"`
}

// Report summarizes what a workload has done so far.
type Report struct {
	Rounds  uint64       `yaml:"rounds"`
	Hits    uint64       `yaml:"hits"`
	Held    int          `yaml:"held"`
	Dropped uint64       `yaml:"dropped"`
	Hooked  int64        `yaml:"hooked"`
	Manager events.Stats `yaml:"manager"`
}

// Workload owns the sources and holds its subscribers strongly until they're
// dropped; after that only the manager's weak references remain.
type Workload struct {
	cfg     Config
	manager *events.Manager
	hooks   *Hooks
	log     *zerolog.Logger

	mutex   sync.Mutex
	sources []*Source
	held    [][]*Counter
	rng     *rand.Rand

	hits    atomic.Uint64
	rounds  atomic.Uint64
	dropped atomic.Uint64
	serial  atomic.Uint64
}

// New creates a workload and registers its manager as the current one for
// ClickType. The requester, if any, is asked to sweep when delivery finds
// dead subscribers.
func New(cfg Config, requester events.CleanupRequester, log *zerolog.Logger) (*Workload, error) {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	if cfg.Sources < 1 {
		return nil, fmt.Errorf("need at least one source: %d", cfg.Sources)
	}

	if cfg.Churn < 0 || cfg.Churn > 1 {
		return nil, fmt.Errorf("churn must be between 0 and 1: %v", cfg.Churn)
	}

	hooks := &Hooks{log: log}

	m, err := events.NewManager(ClickType, hooks,
		events.WithLogger(log),
		events.WithCleanupRequester(requester))
	if err != nil {
		return nil, err
	}

	err = events.SetCurrentManager(ClickType, m)
	if err != nil {
		return nil, err
	}

	w := &Workload{
		cfg:     cfg,
		manager: m,
		hooks:   hooks,
		log:     log,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}

	for i := 0; i < cfg.Sources; i++ {
		w.sources = append(w.sources, &Source{Name: fmt.Sprintf("source-%d", i)})
		w.held = append(w.held, nil)
	}

	return w, nil
}

// Manager returns the manager the workload subscribes through.
func (w *Workload) Manager() *events.Manager {
	return w.manager
}

// Populate tops every source up to the configured number of subscribers.
func (w *Workload) Populate() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	for i := range w.sources {
		for len(w.held[i]) < w.cfg.Listeners {
			err := w.subscribe(i)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// Round raises one event on every source and returns how many subscribers saw
// it.
func (w *Workload) Round() (uint64, error) {
	w.mutex.Lock()
	sources := append([]*Source(nil), w.sources...)
	w.mutex.Unlock()

	round := w.rounds.Inc()
	before := w.hits.Load()

	for _, s := range sources {
		s.clicks.Inc()
		err := w.manager.DeliverEvent(weakref.Make(s), round)
		if err != nil {
			return w.hits.Load() - before, err
		}
	}

	return w.hits.Load() - before, nil
}

// Drop lets go of the given fraction of held subscribers, chosen at random.
// Their entries stay in the manager until a sweep notices they were collected.
func (w *Workload) Drop(fraction float64) int {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	dropped := 0
	for i, held := range w.held {
		kept := held[:0]
		for _, c := range held {
			if w.rng.Float64() < fraction {
				dropped++
				continue
			}
			kept = append(kept, c)
		}
		clear(held[len(kept):])
		w.held[i] = kept
	}

	w.dropped.Add(uint64(dropped))
	return dropped
}

// Run delivers a round, churns subscribers and sleeps for the configured tick
// until ctx is canceled.
func (w *Workload) Run(ctx context.Context) error {
	w.log.Info().
		Int("sources", w.cfg.Sources).
		Int("listeners", w.cfg.Listeners).
		Dur("tick", w.cfg.Tick).
		Msg("workload started")
	defer w.log.Info().Msg("workload stopped")

	err := w.Populate()
	if err != nil {
		return err
	}

	for {
		hits, err := w.Round()
		if err != nil {
			return err
		}

		dropped := w.Drop(w.cfg.Churn)

		err = w.Populate()
		if err != nil {
			return err
		}

		w.log.Trace().Uint64("hits", hits).Int("replaced", dropped).Msg("tick")

		if cancelableSleep(ctx, w.cfg.Tick) {
			return nil
		}
	}
}

// Report returns the workload's counters along with its manager's stats.
func (w *Workload) Report() Report {
	w.mutex.Lock()
	held := 0
	for _, h := range w.held {
		held += len(h)
	}
	w.mutex.Unlock()

	return Report{
		Rounds:  w.rounds.Load(),
		Hits:    w.hits.Load(),
		Held:    held,
		Dropped: w.dropped.Load(),
		Hooked:  w.hooks.attached.Load(),
		Manager: w.manager.Stats(),
	}
}

// Close unregisters the workload's manager from the directory.
func (w *Workload) Close() error {
	current, err := events.GetCurrentManager(ClickType)
	if err != nil || current != w.manager {
		return err
	}

	return events.SetCurrentManager(ClickType, nil)
}

//--------------------------------------------------------------------------------
// private

func (w *Workload) subscribe(i int) error {
	c := &Counter{
		Name: fmt.Sprintf("counter-%d", w.serial.Inc()),
		hits: &w.hits,
	}

	src := weakref.Make(w.sources[i])

	var err error
	if len(w.held[i])%2 == 0 {
		err = w.manager.AddListener(src, weakref.Make(c))
	} else {
		err = w.manager.AddHandler(src, listeners.NewHandler(c, "OnClick"))
	}

	if err != nil {
		return err
	}

	w.held[i] = append(w.held[i], c)
	return nil
}

func cancelableSleep(ctx context.Context, delay time.Duration) bool {
	wake := time.NewTimer(delay)
	select {
	case <-ctx.Done():
		wake.Stop()
		return true
	case <-wake.C:
		return false
	}
}
