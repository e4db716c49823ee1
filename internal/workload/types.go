package workload

import (
	"reflect"

	"github.com/BitPonyLLC/weakevents/pkg/listeners"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Source raises Clicked events.
type Source struct {
	Name   string
	clicks atomic.Uint64
}

// Clicks returns how many events were raised on s.
func (s *Source) Clicks() uint64 {
	return s.clicks.Load()
}

func (s *Source) String() string {
	return s.Name
}

// Counter tallies every event it receives, either as a listener or through its
// OnClick handler method.
type Counter struct {
	Name string
	hits *atomic.Uint64
}

var _ listeners.Listener = (*Counter)(nil) // ensures we conform to the Listener interface

func (c *Counter) ReceiveWeakEvent(_ reflect.Type, _, _ any) bool {
	c.hits.Inc()
	return true
}

func (c *Counter) OnClick(_, _ any) {
	c.hits.Inc()
}

// Hooks tracks how many sources are currently hooked up.
type Hooks struct {
	log      *zerolog.Logger
	attached atomic.Int64
}

func (h *Hooks) StartListening(source any) {
	n := h.attached.Inc()
	h.log.Trace().Interface("source", source).Int64("attached", n).Msg("hooked")
}

func (h *Hooks) StopListening(source any) {
	n := h.attached.Dec()
	h.log.Trace().Interface("source", source).Int64("attached", n).Msg("unhooked")
}
