package cmd

import (
	"sync"
	"testing"
	"time"

	"github.com/BitPonyLLC/weakevents/pkg/cleanup"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func watchedConfig(t *testing.T, interval time.Duration) {
	level := zerolog.GlobalLevel()
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(level)
		viper.Set(cleanupIntervalLabel, defaultCleanupInterval)
		serving.Store(nil)
	})

	viper.Set(logLevelLabel, "warn")
	viper.Set(cleanupIntervalLabel, interval)
}

func TestConfigChangedUpdatesScheduler(t *testing.T) {
	watchedConfig(t, 5*time.Second)

	// nothing served yet
	configChanged(fsnotify.Event{Name: "test.toml", Op: fsnotify.Write})
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	scheduler := cleanup.NewScheduler(cleanup.Static())
	require.True(t, serving.CompareAndSwap(nil, &server{scheduler: scheduler}))

	configChanged(fsnotify.Event{Name: "test.toml", Op: fsnotify.Write})
	assert.Equal(t, 5*time.Second, scheduler.Stats().Delay)
}

func TestConfigChangedWhileServeStarts(t *testing.T) {
	watchedConfig(t, 2*time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			configChanged(fsnotify.Event{Name: "test.toml", Op: fsnotify.Write})
		}
	}()

	scheduler := cleanup.NewScheduler(cleanup.Static())
	serving.Store(&server{scheduler: scheduler})
	wg.Wait()

	configChanged(fsnotify.Event{Name: "test.toml", Op: fsnotify.Write})
	assert.Equal(t, 2*time.Second, scheduler.Stats().Delay)
}
