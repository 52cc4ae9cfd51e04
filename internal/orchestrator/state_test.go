package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/trellis/internal/constants"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// TestIsValidTransition_AllValidTransitions verifies each row of the transition table.
func TestIsValidTransition_AllValidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from constants.ScenarioState
		to   constants.ScenarioState
	}{
		{"pending to setting_up", constants.ScenarioStatePending, constants.ScenarioStateSettingUp},
		{"pending to skipped", constants.ScenarioStatePending, constants.ScenarioStateSkipped},
		{"setting_up to running", constants.ScenarioStateSettingUp, constants.ScenarioStateRunning},
		{"setting_up to tearing_down", constants.ScenarioStateSettingUp, constants.ScenarioStateTearingDown},
		{"running to tearing_down", constants.ScenarioStateRunning, constants.ScenarioStateTearingDown},
		{"tearing_down to passed", constants.ScenarioStateTearingDown, constants.ScenarioStatePassed},
		{"tearing_down to failed", constants.ScenarioStateTearingDown, constants.ScenarioStateFailed},
		{"tearing_down to errored", constants.ScenarioStateTearingDown, constants.ScenarioStateErrored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsValidTransition(tt.from, tt.to), "transition from %s to %s should be valid", tt.from, tt.to)
		})
	}
}

// TestIsValidTransition_InvalidTransitions verifies teardown cannot be skipped.
func TestIsValidTransition_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from constants.ScenarioState
		to   constants.ScenarioState
	}{
		{"running to passed", constants.ScenarioStateRunning, constants.ScenarioStatePassed},
		{"running to failed", constants.ScenarioStateRunning, constants.ScenarioStateFailed},
		{"setting_up to errored", constants.ScenarioStateSettingUp, constants.ScenarioStateErrored},
		{"pending to running", constants.ScenarioStatePending, constants.ScenarioStateRunning},
		{"passed to running", constants.ScenarioStatePassed, constants.ScenarioStateRunning},
		{"skipped to setting_up", constants.ScenarioStateSkipped, constants.ScenarioStateSettingUp},
		{"tearing_down to running", constants.ScenarioStateTearingDown, constants.ScenarioStateRunning},
		{"running to running", constants.ScenarioStateRunning, constants.ScenarioStateRunning},
		{"unknown source", constants.ScenarioState("bogus"), constants.ScenarioStateRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, IsValidTransition(tt.from, tt.to), "transition from %s to %s should be invalid", tt.from, tt.to)
		})
	}
}

func TestIsTerminalState(t *testing.T) {
	for _, s := range []constants.ScenarioState{
		constants.ScenarioStatePassed, constants.ScenarioStateFailed,
		constants.ScenarioStateErrored, constants.ScenarioStateSkipped,
	} {
		assert.True(t, IsTerminalState(s), s)
		assert.Empty(t, GetValidTargetStates(s))
		_, ok := OutcomeOf(s)
		assert.True(t, ok)
	}
	for _, s := range []constants.ScenarioState{
		constants.ScenarioStatePending, constants.ScenarioStateSettingUp,
		constants.ScenarioStateRunning, constants.ScenarioStateTearingDown,
	} {
		assert.False(t, IsTerminalState(s), s)
		_, ok := OutcomeOf(s)
		assert.False(t, ok)
	}
}

func TestGetValidTargetStates_ReturnsCopy(t *testing.T) {
	targets := GetValidTargetStates(constants.ScenarioStatePending)
	require.Len(t, targets, 2)
	targets[0] = constants.ScenarioStatePassed

	assert.Equal(t, constants.ScenarioStateSettingUp, ValidTransitions[constants.ScenarioStatePending][0])
}

// TestValidTransitions_Completeness checks every non-terminal state can reach a terminal state.
func TestValidTransitions_Completeness(t *testing.T) {
	for from := range ValidTransitions {
		seen := map[constants.ScenarioState]bool{}
		queue := []constants.ScenarioState{from}
		reached := false
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if IsTerminalState(cur) {
				reached = true
				break
			}
			for _, next := range ValidTransitions[cur] {
				if !seen[next] {
					seen[next] = true
					queue = append(queue, next)
				}
			}
		}
		assert.True(t, reached, "%s cannot reach a terminal state", from)
	}
}

func TestLifecycle_RecordsTransitions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLifecycle(fixedClock{t: now})
	assert.Equal(t, constants.ScenarioStatePending, l.State())

	require.NoError(t, l.Transition(constants.ScenarioStateSettingUp, ""))
	require.NoError(t, l.Transition(constants.ScenarioStateRunning, ""))
	require.NoError(t, l.Transition(constants.ScenarioStateTearingDown, "step see-project failed"))
	require.NoError(t, l.Transition(constants.ScenarioStateFailed, ""))

	history := l.Transitions()
	require.Len(t, history, 4)
	assert.Equal(t, constants.ScenarioStatePending, history[0].From)
	assert.Equal(t, constants.ScenarioStateFailed, history[3].To)
	assert.Equal(t, "step see-project failed", history[2].Reason)
	assert.Equal(t, now, history[1].Timestamp)
}

func TestLifecycle_RejectsInvalidTransition(t *testing.T) {
	l := NewLifecycle(nil)
	require.NoError(t, l.Transition(constants.ScenarioStateSettingUp, ""))

	err := l.Transition(constants.ScenarioStatePassed, "")
	require.ErrorIs(t, err, trellerrors.ErrInvalidTransition)
	assert.Equal(t, constants.ScenarioStateSettingUp, l.State())
	assert.Len(t, l.Transitions(), 1)
}
