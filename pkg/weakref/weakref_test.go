package weakref_test

import (
	"runtime"
	"testing"

	"github.com/BitPonyLLC/weakevents/pkg/weakref"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thing struct {
	name string
	tags []string
}

func TestZeroRef(t *testing.T) {
	var r weakref.Ref
	assert.True(t, r.IsZero())
	assert.False(t, r.Alive())
	assert.Nil(t, r.Value())
	assert.Equal(t, "<none>", r.String())

	assert.True(t, weakref.Make[thing](nil).IsZero())
	assert.True(t, r.Is(weakref.Make[thing](nil)))
}

func TestValueWhileAlive(t *testing.T) {
	obj := &thing{name: "a"}
	r := weakref.Make(obj)

	require.True(t, r.Alive())
	got, ok := r.Value().(*thing)
	require.True(t, ok)
	assert.Same(t, obj, got)

	runtime.KeepAlive(obj)
}

func TestIdentity(t *testing.T) {
	a := &thing{name: "same"}
	b := &thing{name: "same"}

	assert.True(t, weakref.Make(a).Is(weakref.Make(a)))
	assert.False(t, weakref.Make(a).Is(weakref.Make(b)), "equal values are not the same object")
	assert.False(t, weakref.Make(a).Is(weakref.Ref{}))
	assert.Equal(t, weakref.Make(a).Key(), weakref.Make(a).Key())

	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
}

func TestCollected(t *testing.T) {
	r := makeGarbage()
	runtime.GC()
	runtime.GC()

	assert.False(t, r.IsZero())
	assert.False(t, r.Alive())
	assert.Nil(t, r.Value())
	assert.Equal(t, "<collected>", r.String())
}

func TestKeyOutlivesObject(t *testing.T) {
	r := makeGarbage()
	key := r.Key()
	runtime.GC()
	runtime.GC()

	// the identity stays usable after collection
	assert.Equal(t, key, r.Key())
	assert.True(t, r.Is(r))
}

//go:noinline
func makeGarbage() weakref.Ref {
	return weakref.Make(&thing{name: "garbage", tags: []string{"x"}})
}
