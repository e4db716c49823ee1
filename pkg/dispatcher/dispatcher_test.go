package dispatcher_test

import (
	"sync"
	"testing"
	"time"

	"github.com/BitPonyLLC/weakevents/pkg/dispatcher"

	"github.com/stretchr/testify/assert"
)

func TestCurrentIsStable(t *testing.T) {
	assert.Same(t, dispatcher.Current(), dispatcher.Current())
	assert.Equal(t, "main", dispatcher.Current().Name)
}

func TestDistinctIdentity(t *testing.T) {
	a := dispatcher.New("a")
	b := dispatcher.New("b")
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Contains(t, a.String(), a.ID().String())
}

func TestReadersShareWritersExclude(t *testing.T) {
	d := dispatcher.New("locks")

	release1 := d.ReadLock()
	release2 := d.ReadLock() // concurrent readers do not block each other

	acquired := make(chan struct{})
	go func() {
		defer d.WriteLock()()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("writer acquired the lock while readers held it")
	case <-time.After(20 * time.Millisecond):
	}

	release1()
	release2()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("writer never acquired the lock")
	}
}

func TestWriteLockSerializes(t *testing.T) {
	d := dispatcher.New("serial")
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer d.WriteLock()()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}
