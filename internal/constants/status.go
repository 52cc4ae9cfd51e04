package constants

// ScenarioState represents the state of one scenario in the orchestrator state machine.
// State values use snake_case for JSON serialization compatibility.
type ScenarioState string

// Scenario state constants follow the lifecycle:
//
//	Pending → SettingUp, Skipped
//	SettingUp → Running, TearingDown
//	Running → TearingDown
//	TearingDown → Passed, Failed, Errored
const (
	// ScenarioStatePending indicates the scenario is scheduled but not started.
	ScenarioStatePending ScenarioState = "pending"

	// ScenarioStateSettingUp indicates tenants are being resolved, sessions
	// opened and fixtures produced.
	ScenarioStateSettingUp ScenarioState = "setting_up"

	// ScenarioStateRunning indicates scenario steps are executing.
	ScenarioStateRunning ScenarioState = "running"

	// ScenarioStateTearingDown indicates fixtures and sessions are being released.
	// This state is entered regardless of how setup or running ended.
	ScenarioStateTearingDown ScenarioState = "tearing_down"

	// ScenarioStatePassed indicates every step succeeded.
	ScenarioStatePassed ScenarioState = "passed"

	// ScenarioStateFailed indicates an assertion or wait failed: the product misbehaved.
	ScenarioStateFailed ScenarioState = "failed"

	// ScenarioStateErrored indicates the framework could not set up or drive
	// the scenario.
	ScenarioStateErrored ScenarioState = "errored"

	// ScenarioStateSkipped indicates the scenario never started.
	ScenarioStateSkipped ScenarioState = "skipped"
)

// String returns the string representation of the ScenarioState.
func (s ScenarioState) String() string {
	return string(s)
}

// Outcome is the final classification recorded on a ScenarioResult.
type Outcome string

// Outcome constants.
const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeErrored Outcome = "errored"
	OutcomeSkipped Outcome = "skipped"
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	return string(o)
}

// CapabilityKind identifies the execution surface a session drives.
type CapabilityKind string

// Capability kinds form a closed set; sessions dispatch on this tag.
const (
	CapabilityWeb       CapabilityKind = "web"
	CapabilityMobileWeb CapabilityKind = "mobile_web"
	CapabilityAPI       CapabilityKind = "api"
)

// String returns the string representation of the CapabilityKind.
func (k CapabilityKind) String() string {
	return string(k)
}

// IsUI reports whether the kind exposes the browser action surface.
func (k CapabilityKind) IsUI() bool {
	return k == CapabilityWeb || k == CapabilityMobileWeb
}

// BrowserEngine names the browser engine behind a UI capability.
type BrowserEngine string

// Browser engines.
const (
	BrowserChromium BrowserEngine = "chromium"
	BrowserFirefox  BrowserEngine = "firefox"
	BrowserWebKit   BrowserEngine = "webkit"
)

// PartitionKey selects how the scheduler groups scenarios that must not overlap.
type PartitionKey string

// Partition keys.
const (
	// PartitionTenant runs scenarios of the same tenant sequentially.
	PartitionTenant PartitionKey = "tenant"

	// PartitionCapability runs scenarios with the same capability set sequentially.
	PartitionCapability PartitionKey = "capability"

	// PartitionNone gives every scenario its own partition.
	PartitionNone PartitionKey = "none"
)

// String returns the string representation of the PartitionKey.
func (p PartitionKey) String() string {
	return string(p)
}

// ValidPartitionKeys returns every accepted partition key.
func ValidPartitionKeys() []PartitionKey {
	return []PartitionKey{PartitionTenant, PartitionCapability, PartitionNone}
}

// StepKind classifies a scenario step for reporting.
type StepKind string

// Step kinds.
const (
	// StepKindAction changes application state (navigate, fill, click, request).
	StepKindAction StepKind = "action"

	// StepKindAssertion checks observable state.
	StepKindAssertion StepKind = "assertion"

	// StepKindIsolation asserts that data is absent from another tenant's session
	// for the whole observation window.
	StepKindIsolation StepKind = "isolation"
)
