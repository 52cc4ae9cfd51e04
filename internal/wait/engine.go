package wait

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/trellis/internal/clock"
)

// Engine evaluates wait specs. It holds no per-wait state and is safe for
// concurrent use by many scenarios.
type Engine struct {
	logger zerolog.Logger
	clock  clock.Clock
}

// New creates an Engine that logs completed waits at debug level. Elapsed
// times are measured with c, or the system clock when c is nil. Deadlines
// and poll intervals always follow real time.
func New(logger zerolog.Logger, c clock.Clock) *Engine {
	return &Engine{logger: logger, clock: clock.OrReal(c)}
}

// Await re-evaluates spec.Condition until it holds, the timeout elapses or
// ctx ends. The condition is checked immediately, then once per poll
// interval, and a final time at the deadline.
func (e *Engine) Await(ctx context.Context, spec Spec) Outcome {
	out := e.poll(ctx, spec, false)
	e.log(out, "await")
	return out
}

// Hold confirms spec.Condition stays false for the whole spec.Timeout.
// It returns StatusViolated as soon as the condition is observed true.
func (e *Engine) Hold(ctx context.Context, spec Spec) Outcome {
	out := e.poll(ctx, spec, true)
	e.log(out, "hold")
	return out
}

// poll runs the shared loop. In absence mode a true condition ends the wait
// with StatusViolated and reaching the deadline is success.
func (e *Engine) poll(ctx context.Context, spec Spec, absence bool) Outcome {
	out := Outcome{Description: spec.Condition.Description}
	if err := spec.Validate(); err != nil {
		out.Status = StatusConditionError
		out.Cause = err
		return out
	}

	start := e.clock.Now()
	deadline := time.Now().Add(spec.Timeout)

	// Checks get one extra poll interval so the evaluation at the deadline
	// can still run, while a hung check cannot outlive the wait by more.
	checkCtx, cancel := context.WithDeadline(ctx, deadline.Add(spec.PollInterval))
	defer cancel()

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if ctx.Err() != nil {
			return e.cancelled(ctx, out, start)
		}

		ok, err := spec.Condition.Check(checkCtx)
		out.Attempts++
		out.Elapsed = clock.Since(e.clock, start)

		if ctx.Err() != nil {
			return e.cancelled(ctx, out, start)
		}
		if err != nil && !absence && checkCtx.Err() != nil {
			// The check hung past the deadline.
			out.Status = StatusTimeout
			return out
		}
		if err != nil {
			out.Status = StatusConditionError
			out.Cause = err
			return out
		}
		if ok {
			if absence {
				out.Status = StatusViolated
			} else {
				out.Status = StatusSatisfied
			}
			return out
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if absence {
				out.Status = StatusSatisfied
			} else {
				out.Status = StatusTimeout
			}
			return out
		}

		timer.Reset(min(spec.PollInterval, remaining))
		select {
		case <-ctx.Done():
			return e.cancelled(ctx, out, start)
		case <-timer.C:
		}
	}
}

func (e *Engine) cancelled(ctx context.Context, out Outcome, start time.Time) Outcome {
	out.Status = StatusCancelled
	out.Cause = context.Cause(ctx)
	out.Elapsed = clock.Since(e.clock, start)
	return out
}

func (e *Engine) log(out Outcome, mode string) {
	e.logger.Debug().
		Str("mode", mode).
		Str("condition", out.Description).
		Str("status", string(out.Status)).
		Dur("elapsed", out.Elapsed).
		Int("attempts", out.Attempts).
		Msg("wait finished")
}
