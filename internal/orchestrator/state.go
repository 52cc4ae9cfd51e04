package orchestrator

import (
	"fmt"
	"slices"

	"github.com/mrz1836/trellis/internal/clock"
	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
)

// ValidTransitions defines all allowed state transitions in the scenario lifecycle.
// Format: from_state -> []to_states
//
// The state machine follows this flow:
//
//	Pending → SettingUp, Skipped
//	SettingUp → Running, TearingDown
//	Running → TearingDown
//	TearingDown → Passed, Failed, Errored
//
// Every path out of SettingUp goes through TearingDown, so sessions and
// fixtures are released whichever way the scenario ends.
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTransitions = map[constants.ScenarioState][]constants.ScenarioState{
	constants.ScenarioStatePending:     {constants.ScenarioStateSettingUp, constants.ScenarioStateSkipped},
	constants.ScenarioStateSettingUp:   {constants.ScenarioStateRunning, constants.ScenarioStateTearingDown},
	constants.ScenarioStateRunning:     {constants.ScenarioStateTearingDown},
	constants.ScenarioStateTearingDown: {constants.ScenarioStatePassed, constants.ScenarioStateFailed, constants.ScenarioStateErrored},
}

// terminalStates defines states where no further transitions are allowed.
// MAINTENANCE: When adding new states, update both ValidTransitions and this map.
//
//nolint:gochecknoglobals // Read-only lookup table for terminal state checks
var terminalStates = map[constants.ScenarioState]constants.Outcome{
	constants.ScenarioStatePassed:  constants.OutcomePassed,
	constants.ScenarioStateFailed:  constants.OutcomeFailed,
	constants.ScenarioStateErrored: constants.OutcomeErrored,
	constants.ScenarioStateSkipped: constants.OutcomeSkipped,
}

// IsValidTransition checks if a transition from one state to another is allowed.
// Returns false for transitions from terminal states or to the same state.
func IsValidTransition(from, to constants.ScenarioState) bool {
	if from == to {
		return false
	}
	return slices.Contains(ValidTransitions[from], to)
}

// IsTerminalState returns true for states where no further transitions are allowed.
func IsTerminalState(state constants.ScenarioState) bool {
	_, ok := terminalStates[state]
	return ok
}

// OutcomeOf maps a terminal state to its outcome.
func OutcomeOf(state constants.ScenarioState) (constants.Outcome, bool) {
	o, ok := terminalStates[state]
	return o, ok
}

// GetValidTargetStates returns all valid target states for a given state.
// Returns nil for terminal states or unknown states.
func GetValidTargetStates(from constants.ScenarioState) []constants.ScenarioState {
	targets, exists := ValidTransitions[from]
	if !exists {
		return nil
	}
	return slices.Clone(targets)
}

// Lifecycle tracks the state of one scenario run and records every change.
type Lifecycle struct {
	state       constants.ScenarioState
	transitions []domain.Transition
	clock       clock.Clock
}

// NewLifecycle starts a lifecycle in the pending state.
func NewLifecycle(c clock.Clock) *Lifecycle {
	return &Lifecycle{state: constants.ScenarioStatePending, clock: clock.OrReal(c)}
}

// State returns the current state.
func (l *Lifecycle) State() constants.ScenarioState {
	return l.state
}

// Transitions returns a copy of the recorded history.
func (l *Lifecycle) Transitions() []domain.Transition {
	return slices.Clone(l.transitions)
}

// Transition validates and applies a state change, recording it with a timestamp.
func (l *Lifecycle) Transition(to constants.ScenarioState, reason string) error {
	from := l.state
	if !IsValidTransition(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s", trellerrors.ErrInvalidTransition, from, to)
	}
	l.transitions = append(l.transitions, domain.Transition{
		From:      from,
		To:        to,
		Timestamp: l.clock.Now().UTC(),
		Reason:    reason,
	})
	l.state = to
	return nil
}
