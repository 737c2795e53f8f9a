package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct{ from, to string }

func TestLiveMachineHappyPath(t *testing.T) {
	var got []transition
	m := NewLiveMachine("trip-1", func(id, from, to string) {
		assert.Equal(t, "trip-1", id)
		got = append(got, transition{from, to})
	})

	assert.Equal(t, StateIdle, m.Current())
	for _, ev := range []string{EventStart, EventEnd, EventCalculate, EventCalculated, EventSave, EventSaved} {
		require.NoError(t, m.Trigger(ev), ev)
	}

	assert.Equal(t, StateCompleted, m.Current())
	assert.Equal(t, []transition{
		{StateIdle, StateTracking},
		{StateTracking, StateEnding},
		{StateEnding, StateCalculating},
		{StateCalculating, StateCalculated},
		{StateCalculated, StateSaving},
		{StateSaving, StateCompleted},
	}, got)
}

func TestLiveMachineFailures(t *testing.T) {
	m := NewLiveMachine("trip-2", nil)

	assert.True(t, m.Fire(EventStart))
	assert.False(t, m.Fire(EventStart))
	assert.True(t, m.Fire(EventEnd))
	assert.True(t, m.Fire(EventCalculate))
	assert.True(t, m.Fire(EventCalculateFailed))
	assert.Equal(t, StateIdle, m.Current())

	assert.True(t, m.Fire(EventCalculate))
	assert.True(t, m.Fire(EventCalculated))
	assert.True(t, m.Fire(EventSave))
	assert.True(t, m.Fire(EventSaveFailed))
	assert.Equal(t, StateCalculated, m.Current())
}

func TestManualMachine(t *testing.T) {
	m := NewManualMachine("trip-3", nil)

	assert.True(t, m.Fire(EventStart))
	assert.Equal(t, StateEditing, m.Current())
	assert.False(t, m.CanTransition(EventEnd))

	assert.True(t, m.Fire(EventCalculate))
	assert.True(t, m.Fire(EventCalculateFailed))
	assert.Equal(t, StateEditing, m.Current())

	assert.True(t, m.Fire(EventCalculate))
	assert.True(t, m.Fire(EventCalculated))
	assert.True(t, m.Fire(EventEdit))
	assert.Equal(t, StateEditing, m.Current())

	// 保存后仍可重新编辑
	assert.True(t, m.Fire(EventCalculate))
	assert.True(t, m.Fire(EventCalculated))
	assert.True(t, m.Fire(EventSave))
	assert.True(t, m.Fire(EventSaved))
	assert.Equal(t, StateCompleted, m.Current())
	assert.True(t, m.Fire(EventEdit))
	assert.Equal(t, StateEditing, m.Current())

	snap := m.Snapshot()
	assert.Equal(t, KindManual, snap.Kind)
	assert.Equal(t, "trip-3", snap.ID)
}

func TestResetFromAnyState(t *testing.T) {
	m := NewLiveMachine("trip-4", nil)

	assert.False(t, m.CanTransition(EventReset))

	m.Fire(EventStart)
	assert.True(t, m.Fire(EventReset))
	assert.Equal(t, StateIdle, m.Current())

	err := m.Trigger(EventSaved)
	assert.Error(t, err)
}
