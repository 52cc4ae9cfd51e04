package domain

import (
	"time"

	"github.com/mrz1836/trellis/internal/constants"
)

// ScenarioResult is the structured record of one scenario run. It is what the
// reporter renders, so it carries enough detail to explain a failure without
// re-running: the failing step, the condition it waited on and for how long.
//
// Example JSON representation:
//
//	{
//	    "scenario_id": "project-visible-in-ui",
//	    "tenant_id": "acme",
//	    "outcome": "failed",
//	    "failed_step": "see-project",
//	    "message": "condition timed out: text \"Test Project Automation\" in .project-name",
//	    "condition": "text \"Test Project Automation\" in .project-name",
//	    "wait_elapsed_ms": 10000,
//	    "duration_ms": 12873,
//	    "artifacts": {"project": {"id": 123}}
//	}
type ScenarioResult struct {
	// ScenarioID identifies the scenario.
	ScenarioID string `json:"scenario_id"`

	// TenantID is the scenario's primary tenant.
	TenantID string `json:"tenant_id"`

	// Capabilities lists the capability names the scenario opened sessions for.
	Capabilities []string `json:"capabilities,omitempty"`

	// Outcome is the final classification.
	Outcome constants.Outcome `json:"outcome"`

	// FailedStep is the id of the step or fixture that ended the run.
	FailedStep string `json:"failed_step,omitempty"`

	// Message is the error message of the failure, if any.
	Message string `json:"message,omitempty"`

	// Condition is the description of the wait condition that failed, if a wait failed.
	Condition string `json:"condition,omitempty"`

	// WaitElapsedMs is how long the failed wait polled.
	WaitElapsedMs int64 `json:"wait_elapsed_ms,omitempty"`

	// DurationMs is the wall time of the whole scenario including teardown.
	DurationMs int64 `json:"duration_ms"`

	// Artifacts holds fixture outputs for debugging.
	Artifacts map[string]any `json:"artifacts,omitempty"`

	// Sessions describes every session the scenario opened.
	Sessions []SessionInfo `json:"sessions,omitempty"`

	// Transitions is the state history of the scenario.
	Transitions []Transition `json:"transitions,omitempty"`

	// TeardownErrors collects best-effort teardown failures. They never
	// change Outcome.
	TeardownErrors []string `json:"teardown_errors,omitempty"`

	// StartedAt is when the scenario left pending.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the scenario reached its final state.
	CompletedAt time.Time `json:"completed_at"`
}

// Duration returns DurationMs as a time.Duration.
func (r ScenarioResult) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// Unsuccessful reports whether the result should make the run exit non-zero.
func (r ScenarioResult) Unsuccessful() bool {
	return r.Outcome == constants.OutcomeFailed || r.Outcome == constants.OutcomeErrored
}

// Transition records a single state change of a scenario.
type Transition struct {
	From      constants.ScenarioState `json:"from"`
	To        constants.ScenarioState `json:"to"`
	Timestamp time.Time               `json:"timestamp"`
	Reason    string                  `json:"reason,omitempty"`
}

// SessionInfo describes a session for reporting. It never carries credentials.
type SessionInfo struct {
	// ID is the unique session identity.
	ID string `json:"id"`

	// Name is the name the scenario gave the session.
	Name string `json:"name"`

	// TenantID is the tenant the session is bound to.
	TenantID string `json:"tenant_id"`

	// Capability is the capability label.
	Capability string `json:"capability"`

	// Kind is the action surface of the session.
	Kind constants.CapabilityKind `json:"kind"`

	// Role is the credential role the session authenticated as.
	Role string `json:"role"`

	// OpenedAt is when the session finished opening.
	OpenedAt time.Time `json:"opened_at"`
}
