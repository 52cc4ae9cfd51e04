// Package wait implements condition-based synchronization for trellis.
//
// Every state-dependent operation in a scenario goes through an Engine:
// instead of asserting immediately, a Condition is re-evaluated at a poll
// interval until it holds, the timeout elapses, or the scenario is cancelled.
// Hold is the inverse used for tenant isolation: it confirms a condition
// stays false for a whole observation window.
//
// Import rules:
//   - CAN import: internal/constants, internal/errors, std lib
//   - MUST NOT import: internal/driver, internal/orchestrator, internal/cli
package wait

import (
	"context"
	"fmt"
	"strings"
)

// CheckFunc evaluates a condition against current observable state.
// It returns an error only when the state cannot be observed at all
// (for example, the session is closed), never for "not yet".
type CheckFunc func(ctx context.Context) (bool, error)

// Condition is a predicate over observable state plus the description
// used in failure messages.
type Condition struct {
	Description string
	Check       CheckFunc
}

// NewCondition builds a Condition.
func NewCondition(description string, check CheckFunc) Condition {
	return Condition{Description: description, Check: check}
}

// String returns the condition description.
func (c Condition) String() string {
	return c.Description
}

// All holds when every condition holds. Conditions are evaluated in order
// and evaluation stops at the first one that is false or errors.
func All(conds ...Condition) Condition {
	descs := make([]string, 0, len(conds))
	for _, c := range conds {
		descs = append(descs, c.Description)
	}
	return Condition{
		Description: strings.Join(descs, " and "),
		Check: func(ctx context.Context) (bool, error) {
			for _, c := range conds {
				ok, err := c.Check(ctx)
				if err != nil || !ok {
					return false, err
				}
			}
			return true, nil
		},
	}
}

// Not inverts a condition. Errors pass through unchanged.
func Not(c Condition) Condition {
	return Condition{
		Description: "not " + c.Description,
		Check: func(ctx context.Context) (bool, error) {
			ok, err := c.Check(ctx)
			if err != nil {
				return false, err
			}
			return !ok, nil
		},
	}
}

// Stable holds once probe has returned the same value for samples
// consecutive evaluations. It is used for "element count stable" style
// waits where content keeps arriving after the first match.
//
// The returned condition keeps the previous sample, so build a new one per wait.
func Stable[T comparable](description string, probe func(ctx context.Context) (T, error), samples int) Condition {
	if samples < 2 {
		samples = 2
	}
	var (
		last   T
		streak int
	)
	return Condition{
		Description: fmt.Sprintf("%s stable for %d samples", description, samples),
		Check: func(ctx context.Context) (bool, error) {
			v, err := probe(ctx)
			if err != nil {
				streak = 0
				return false, err
			}
			if streak > 0 && v == last {
				streak++
			} else {
				last = v
				streak = 1
			}
			return streak >= samples, nil
		},
	}
}
