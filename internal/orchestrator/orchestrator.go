package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/trellis/internal/clock"
	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
	"github.com/mrz1836/trellis/internal/driver"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/fixture"
	"github.com/mrz1836/trellis/internal/tenant"
	"github.com/mrz1836/trellis/internal/wait"
)

// TenantResolver resolves tenant ids. *tenant.Registry implements it.
type TenantResolver interface {
	Resolve(id string) (*tenant.Config, error)
}

// SessionOpener opens platform sessions. *driver.Driver implements it.
type SessionOpener interface {
	Open(ctx context.Context, tn *tenant.Config, capability domain.Capability, opts ...driver.OpenOption) (*driver.Session, error)
}

// Options configures an Orchestrator.
type Options struct {
	Tenants  TenantResolver
	Sessions SessionOpener

	// TeardownTimeout bounds the tearing-down phase of one scenario.
	TeardownTimeout time.Duration

	Logger zerolog.Logger
	Clock  clock.Clock
}

// Orchestrator runs scenarios. It holds no per-scenario state and is safe
// for concurrent use.
type Orchestrator struct {
	tenants         TenantResolver
	sessions        SessionOpener
	teardownTimeout time.Duration
	logger          zerolog.Logger
	clock           clock.Clock
}

// New creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Tenants == nil {
		return nil, fmt.Errorf("%w: tenant resolver", trellerrors.ErrEmptyValue)
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("%w: session opener", trellerrors.ErrEmptyValue)
	}
	if opts.TeardownTimeout <= 0 {
		opts.TeardownTimeout = constants.DefaultTeardownTimeout
	}
	return &Orchestrator{
		tenants:         opts.Tenants,
		sessions:        opts.Sessions,
		teardownTimeout: opts.TeardownTimeout,
		logger:          opts.Logger,
		clock:           clock.OrReal(opts.Clock),
	}, nil
}

// failure is what ended a scenario early.
type failure struct {
	// at is the step, fixture or session that failed.
	at  string
	err error
	// setup marks failures before any step ran; they always classify as errored.
	setup bool
}

// run is the mutable state of one scenario execution.
type run struct {
	plan      *Plan
	env       *Env
	exec      *fixture.Execution[*Env]
	lifecycle *Lifecycle
	result    domain.ScenarioResult
	logger    zerolog.Logger
}

// Run executes one scenario and returns its result. It never returns early
// without tearing down what it opened: sessions and fixtures are released on
// a context detached from ctx, so cancellation still cleans up.
func (o *Orchestrator) Run(ctx context.Context, plan *Plan) domain.ScenarioResult {
	sc := plan.scenario
	r := &run{
		plan:      plan,
		lifecycle: NewLifecycle(o.clock),
		logger:    o.logger.With().Str("scenario_id", sc.ID).Str("tenant_id", sc.TenantID).Logger(),
		result: domain.ScenarioResult{
			ScenarioID:   sc.ID,
			TenantID:     sc.TenantID,
			Capabilities: plan.Capabilities(),
		},
	}
	start := o.clock.Now()
	r.result.StartedAt = start.UTC()

	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		o.transition(r, constants.ScenarioStateSkipped, cause.Error())
		r.result.Message = cause.Error()
		return o.finish(r, start)
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if sc.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeoutCause(runCtx, sc.Timeout,
			fmt.Errorf("%w: scenario exceeded its %s timeout", trellerrors.ErrTimeoutFailure, sc.Timeout))
		defer cancelTimeout()
	}
	runCtx = r.logger.WithContext(runCtx)

	o.transition(r, constants.ScenarioStateSettingUp, "")
	fail := o.setUp(runCtx, r)
	if fail == nil {
		o.transition(r, constants.ScenarioStateRunning, "")
		fail = o.runSteps(runCtx, r)
	}
	// Stop any wait still polling on behalf of this scenario.
	cancel(errScenarioEnded)

	reason := ""
	if fail != nil {
		reason = fmt.Sprintf("%s failed", fail.at)
	}
	o.transition(r, constants.ScenarioStateTearingDown, reason)
	o.tearDown(ctx, r)

	outcome := classify(fail)
	if fail != nil {
		o.record(r, fail)
	}
	o.transition(r, stateFor(outcome), "")
	return o.finish(r, start)
}

var errScenarioEnded = errors.New("scenario ended")

func (o *Orchestrator) transition(r *run, to constants.ScenarioState, reason string) {
	if err := r.lifecycle.Transition(to, reason); err != nil {
		// The transition table is fixed; reaching this is a programming error.
		r.logger.Error().Err(err).Msg("invalid scenario transition")
		return
	}
	r.logger.Debug().Str("state", to.String()).Msg("scenario state changed")
}

// setUp resolves tenants, opens sessions in declaration order and produces fixtures.
func (o *Orchestrator) setUp(ctx context.Context, r *run) *failure {
	sc := r.plan.scenario
	primary, err := o.tenants.Resolve(sc.TenantID)
	if err != nil {
		return &failure{at: "tenant", err: err, setup: true}
	}
	r.env = newEnv(primary)

	for _, req := range sc.Sessions {
		tn := primary
		if req.TenantID != "" && req.TenantID != sc.TenantID {
			if tn, err = o.tenants.Resolve(req.TenantID); err != nil {
				return &failure{at: req.Name, err: err, setup: true}
			}
		}
		s, err := o.sessions.Open(ctx, tn, req.Capability, driver.WithRole(req.Role), driver.WithName(req.Name))
		if err != nil {
			return &failure{at: req.Name, err: err, setup: true}
		}
		r.env.addSession(req.Name, s)
		r.result.Sessions = append(r.result.Sessions, s.Info())
	}

	exec, err := r.plan.graph.Run(ctx, r.env)
	r.exec = exec
	for id, a := range exec.Artifacts() {
		r.env.artifacts[id] = a
	}
	if err != nil {
		at := "fixtures"
		var ff *fixture.FailedFixtureError
		if errors.As(err, &ff) {
			at = ff.ID
		}
		return &failure{at: at, err: err, setup: true}
	}
	return nil
}

func (o *Orchestrator) runSteps(ctx context.Context, r *run) *failure {
	for _, st := range r.plan.scenario.Steps {
		if ctx.Err() != nil {
			return &failure{at: st.ID, err: context.Cause(ctx)}
		}
		logger := r.logger.With().Str("step_id", st.ID).Logger()
		began := o.clock.Now()
		if err := runStep(logger.WithContext(ctx), st, r.env); err != nil {
			logger.Debug().Err(err).Msg("step failed")
			return &failure{at: st.ID, err: err}
		}
		logger.Debug().Dur("elapsed", clock.Since(o.clock, began)).Msg("step passed")
	}
	return nil
}

func runStep(ctx context.Context, st Step, env *Env) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("step %q panicked: %v", st.ID, p)
		}
	}()
	return st.Run(ctx, env)
}

// tearDown releases fixtures in reverse setup order, then sessions in
// reverse open order. Failures are logged and recorded but never change
// the outcome.
func (o *Orchestrator) tearDown(ctx context.Context, r *run) {
	if r.env == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.teardownTimeout)
	defer cancel()
	ctx = r.logger.WithContext(ctx)

	if r.exec != nil {
		if err := r.exec.Teardown(ctx, r.env); err != nil {
			r.result.TeardownErrors = append(r.result.TeardownErrors, splitJoined(err)...)
		}
	}
	sessions := r.env.Sessions()
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		if err := s.Close(ctx); err != nil {
			r.logger.Warn().Err(err).Str("session", s.Name()).Msg("session close failed")
			r.result.TeardownErrors = append(r.result.TeardownErrors, err.Error())
		}
	}
}

func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}

// record copies the failure context a reporter needs onto the result.
func (o *Orchestrator) record(r *run, fail *failure) {
	r.result.FailedStep = fail.at
	r.result.Message = fail.err.Error()
	if f, ok := wait.AsFailure(fail.err); ok {
		r.result.Condition = f.Description
		r.result.WaitElapsedMs = f.Elapsed.Milliseconds()
	}
}

func (o *Orchestrator) finish(r *run, start time.Time) domain.ScenarioResult {
	end := o.clock.Now()
	r.result.CompletedAt = end.UTC()
	r.result.DurationMs = end.Sub(start).Milliseconds()
	r.result.Transitions = r.lifecycle.Transitions()
	if outcome, ok := OutcomeOf(r.lifecycle.State()); ok {
		r.result.Outcome = outcome
	}
	if r.env != nil && len(r.env.artifacts) > 0 {
		r.result.Artifacts = r.env.Artifacts()
	}

	event := r.logger.Info()
	if r.result.Unsuccessful() {
		event = r.logger.Warn()
	}
	event.Str("outcome", r.result.Outcome.String()).
		Int64("duration_ms", r.result.DurationMs).
		Str("failed_step", r.result.FailedStep).
		Msg("scenario finished")
	return r.result
}

// classify maps what ended a scenario to its outcome. Setup problems and
// framework errors are errored; the product misbehaving is failed.
func classify(fail *failure) constants.Outcome {
	switch {
	case fail == nil:
		return constants.OutcomePassed
	case fail.setup:
		return constants.OutcomeErrored
	case errors.Is(fail.err, trellerrors.ErrIsolationViolation),
		errors.Is(fail.err, trellerrors.ErrAssertionFailed),
		errors.Is(fail.err, trellerrors.ErrTimeoutFailure):
		return constants.OutcomeFailed
	default:
		return constants.OutcomeErrored
	}
}

func stateFor(o constants.Outcome) constants.ScenarioState {
	switch o {
	case constants.OutcomePassed:
		return constants.ScenarioStatePassed
	case constants.OutcomeFailed:
		return constants.ScenarioStateFailed
	case constants.OutcomeSkipped:
		return constants.ScenarioStateSkipped
	case constants.OutcomeErrored:
	}
	return constants.ScenarioStateErrored
}
