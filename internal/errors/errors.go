// Package errors provides centralized error handling for trellis.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrTimeoutFailure indicates a wait condition never became true before
	// its timeout elapsed. Usually a product regression or an under-tuned timeout.
	ErrTimeoutFailure = errors.New("condition timed out")

	// ErrConditionError indicates the condition check itself failed
	// (for example, the underlying session was closed).
	ErrConditionError = errors.New("condition evaluation failed")

	// ErrWaitCancelled indicates an in-flight wait was abandoned because the
	// enclosing scenario was cancelled.
	ErrWaitCancelled = errors.New("wait cancelled")

	// ErrInvalidWaitSpec indicates a wait specification violates its invariants.
	ErrInvalidWaitSpec = errors.New("invalid wait spec")

	// ErrSessionStartFailure indicates a platform session could not be established.
	ErrSessionStartFailure = errors.New("session start failed")

	// ErrAuthFailed indicates the tenant rejected the session credential.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrSessionClosed indicates an action was attempted on a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrSessionNotFound indicates a step referenced a session the scenario never declared.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnsupportedAction indicates an action is not part of the session's
	// action surface (for example, a click on an API session).
	ErrUnsupportedAction = errors.New("action not supported by session kind")

	// ErrRequestFailed indicates an API request could not be completed.
	ErrRequestFailed = errors.New("api request failed")

	// ErrCyclicDependency indicates a fixture graph contains a cycle.
	ErrCyclicDependency = errors.New("cyclic fixture dependency")

	// ErrUnknownDependency indicates a fixture depends on an undeclared fixture.
	ErrUnknownDependency = errors.New("unknown fixture dependency")

	// ErrDuplicateID indicates two declarations share the same identifier.
	ErrDuplicateID = errors.New("duplicate identifier")

	// ErrFixtureFailed indicates a fixture producer returned an error.
	ErrFixtureFailed = errors.New("fixture setup failed")

	// ErrUnknownTenant indicates a tenant identifier is not registered.
	ErrUnknownTenant = errors.New("unknown tenant")

	// ErrInvalidTenant indicates a tenant configuration is malformed.
	ErrInvalidTenant = errors.New("invalid tenant configuration")

	// ErrInvalidURL indicates a base URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrMissingCredential indicates a tenant has no credential for the requested role.
	ErrMissingCredential = errors.New("missing credential for role")

	// ErrInvalidCapability indicates a capability descriptor is malformed.
	ErrInvalidCapability = errors.New("invalid capability")

	// ErrUnknownCapability indicates a capability name is not configured.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrAssertionFailed indicates an explicit scenario-level check failed.
	ErrAssertionFailed = errors.New("assertion failed")

	// ErrIsolationViolation indicates data from one tenant was observed from
	// another tenant's session.
	ErrIsolationViolation = errors.New("tenant isolation violated")

	// ErrInvalidScenario indicates a scenario declaration is malformed.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrInvalidTransition indicates an attempt to make an invalid state transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidPartition indicates an unknown scheduler partition key.
	ErrInvalidPartition = errors.New("invalid partition key")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidWait indicates an invalid wait configuration value.
	ErrConfigInvalidWait = errors.New("invalid wait configuration")

	// ErrConfigInvalidSchedule indicates an invalid schedule configuration value.
	ErrConfigInvalidSchedule = errors.New("invalid schedule configuration")

	// ErrConfigInvalidAPI indicates an invalid API client configuration value.
	ErrConfigInvalidAPI = errors.New("invalid API configuration")

	// ErrConfigInvalidBrowser indicates an invalid browser configuration value.
	ErrConfigInvalidBrowser = errors.New("invalid browser configuration")

	// ErrConfigNotFound indicates that the configuration file was not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrSuiteLoadFailed indicates a suite file could not be read or parsed.
	ErrSuiteLoadFailed = errors.New("suite load failed")

	// ErrNoScenarios indicates that no scenarios matched the requested filters.
	ErrNoScenarios = errors.New("no scenarios to run")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrScenariosFailed indicates one or more scenarios finished failed or errored.
	ErrScenariosFailed = errors.New("scenarios failed")

	// ErrJSONErrorOutput indicates that an error has already been output as JSON.
	// This ensures a non-zero exit code while preventing duplicate error messages.
	ErrJSONErrorOutput = errors.New("error output as JSON")
)

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}
