package wait

import (
	"context"
	"fmt"
	"time"

	"github.com/mrz1836/trellis/internal/constants"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
)

// Spec bounds a single wait.
type Spec struct {
	Condition    Condition
	Timeout      time.Duration
	PollInterval time.Duration
}

// Validate checks that the timeout and poll interval are positive, the
// poll interval is shorter than the timeout, and the condition can be evaluated.
func (s Spec) Validate() error {
	if s.Condition.Check == nil {
		return fmt.Errorf("%w: condition %q has no check", trellerrors.ErrInvalidWaitSpec, s.Condition.Description)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", trellerrors.ErrInvalidWaitSpec, s.Timeout)
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %s", trellerrors.ErrInvalidWaitSpec, s.PollInterval)
	}
	if s.PollInterval >= s.Timeout {
		return fmt.Errorf("%w: poll interval %s must be less than timeout %s",
			trellerrors.ErrInvalidWaitSpec, s.PollInterval, s.Timeout)
	}
	return nil
}

// Defaults carries the resolved wait configuration used to build specs.
type Defaults struct {
	Timeout           time.Duration
	PollInterval      time.Duration
	ObservationWindow time.Duration
}

// DefaultDefaults returns the built-in wait timings.
func DefaultDefaults() Defaults {
	return Defaults{
		Timeout:           constants.DefaultWaitTimeout,
		PollInterval:      constants.DefaultPollInterval,
		ObservationWindow: constants.DefaultObservationWindow,
	}
}

// Spec builds a wait spec for cond using the default timeout.
func (d Defaults) Spec(cond Condition) Spec {
	return Spec{Condition: cond, Timeout: d.Timeout, PollInterval: d.PollInterval}
}

// HoldSpec builds an absence spec for cond over the observation window.
func (d Defaults) HoldSpec(cond Condition) Spec {
	return Spec{Condition: cond, Timeout: d.ObservationWindow, PollInterval: d.PollInterval}
}

// Validate checks the defaults produce valid specs.
func (d Defaults) Validate() error {
	noop := NewCondition("noop", func(_ context.Context) (bool, error) { return true, nil })
	if err := d.Spec(noop).Validate(); err != nil {
		return err
	}
	return d.HoldSpec(noop).Validate()
}
