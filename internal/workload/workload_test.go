package workload

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/BitPonyLLC/weakevents/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type requester struct {
	requests atomic.Int32
}

func (r *requester) RequestCleanup() {
	r.requests.Inc()
}

func newWorkload(t *testing.T, cfg Config, r events.CleanupRequester) *Workload {
	w, err := New(cfg, r, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{Sources: 0}, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Sources: 1, Churn: 1.5}, nil, nil)
	assert.Error(t, err)
}

func TestNewRegistersManager(t *testing.T) {
	w := newWorkload(t, Config{Sources: 1}, nil)

	m, err := events.GetCurrentManager(ClickType)
	require.NoError(t, err)
	assert.Same(t, w.Manager(), m)

	require.NoError(t, w.Close())
	m, err = events.GetCurrentManager(ClickType)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestRoundReachesEverySubscriber(t *testing.T) {
	w := newWorkload(t, Config{Sources: 3, Listeners: 4}, nil)
	require.NoError(t, w.Populate())

	hits, err := w.Round()
	require.NoError(t, err)
	assert.EqualValues(t, 12, hits)

	report := w.Report()
	assert.EqualValues(t, 1, report.Rounds)
	assert.Equal(t, 12, report.Held)
	assert.EqualValues(t, 3, report.Hooked)
	assert.Equal(t, 3, report.Manager.Sources)
	assert.Equal(t, 12, report.Manager.Entries)

	for _, s := range w.sources {
		assert.EqualValues(t, 1, s.Clicks())
	}
}

func TestDroppedSubscribersAreSwept(t *testing.T) {
	r := &requester{}
	w := newWorkload(t, Config{Sources: 2, Listeners: 3}, r)
	require.NoError(t, w.Populate())

	assert.Equal(t, 6, w.Drop(1))
	assert.Zero(t, w.Report().Held)

	runtime.GC()
	runtime.GC()

	hits, err := w.Round()
	require.NoError(t, err)
	assert.Zero(t, hits)
	assert.NotZero(t, r.requests.Load(), "dead subscribers ask for a sweep")

	stats, err := w.Manager().Sweep()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EmptySources)
	assert.Equal(t, 6, stats.Purged)

	report := w.Report()
	assert.Zero(t, report.Hooked)
	assert.Zero(t, report.Manager.Sources)
	assert.EqualValues(t, 6, report.Dropped)
}

func TestDropNothing(t *testing.T) {
	w := newWorkload(t, Config{Sources: 2, Listeners: 3}, nil)
	require.NoError(t, w.Populate())

	assert.Zero(t, w.Drop(0))
	assert.Equal(t, 6, w.Report().Held)
}

func TestRunUntilCanceled(t *testing.T) {
	w := newWorkload(t, Config{Sources: 2, Listeners: 2, Tick: time.Millisecond, Churn: 0.5, Seed: 7}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return w.Report().Rounds >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("workload did not stop")
	}

	assert.Equal(t, 4, w.Report().Held, "churned subscribers are replaced")
}
