package events_test

import (
	"reflect"
	"testing"

	"github.com/BitPonyLLC/weakevents/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alphaManager struct{}
type betaManager struct{}

func TestDirectory(t *testing.T) {
	alpha := reflect.TypeFor[alphaManager]()
	beta := reflect.TypeFor[betaManager]()
	t.Cleanup(func() {
		events.SetCurrentManager(alpha, nil)
		events.SetCurrentManager(beta, nil)
	})

	got, err := events.GetCurrentManager(alpha)
	require.NoError(t, err)
	assert.Nil(t, got, "lookups never create a manager")

	ma, err := events.NewManager(alpha, nil)
	require.NoError(t, err)
	mb, err := events.NewManager(beta, nil)
	require.NoError(t, err)

	require.NoError(t, events.SetCurrentManager(beta, mb))
	require.NoError(t, events.SetCurrentManager(alpha, ma))

	got, err = events.GetCurrentManager(alpha)
	require.NoError(t, err)
	assert.Same(t, ma, got)

	managers := events.Managers()
	require.GreaterOrEqual(t, len(managers), 2)
	ai, bi := -1, -1
	for i, m := range managers {
		switch m {
		case ma:
			ai = i
		case mb:
			bi = i
		}
	}
	assert.Less(t, ai, bi, "managers are ordered by type name")

	require.NoError(t, events.SetCurrentManager(alpha, nil))
	got, err = events.GetCurrentManager(alpha)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDirectoryRequiresType(t *testing.T) {
	_, err := events.GetCurrentManager(nil)
	assert.ErrorIs(t, err, events.ErrNilArgument)
	assert.ErrorIs(t, events.SetCurrentManager(nil, nil), events.ErrNilArgument)
}
