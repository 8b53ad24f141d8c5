package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineTransitions(t *testing.T) {
	var changes []string
	m := NewMachine("VIN", func(vin, from, to string) {
		changes = append(changes, from+"->"+to)
	})

	assert.Equal(t, LinkPending, m.CurrentState())
	assert.False(t, m.Ready())

	m.Observe(false)
	assert.Equal(t, LinkPending, m.CurrentState())

	require.NoError(t, m.Trigger(EventReady))
	assert.True(t, m.Ready())

	m.Observe(false)
	m.Observe(false)
	assert.Equal(t, LinkUnreachable, m.CurrentState())
	assert.Equal(t, 3, m.GetState().Failures)

	m.Observe(true)
	assert.Equal(t, LinkOnline, m.CurrentState())
	assert.Equal(t, 0, m.GetState().Failures)

	assert.Equal(t, []string{"pending->online", "online->unreachable", "unreachable->online"}, changes)
}

func TestMachineRejectsInvalidEvent(t *testing.T) {
	m := NewMachine("VIN", nil)
	assert.False(t, m.CanTransition(EventRecover))
	assert.Error(t, m.Trigger(EventLost))
}
