package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries is the pre-built mapping of sentinel errors to their user-facing messages.
// Using a slice (not a map) because errors.Is() requires proper error chain traversal.
// Order matters: more specific sentinels come before the ones they may wrap.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	// ===================
	// Synchronization
	// ===================
	{
		err: ErrIsolationViolation,
		info: ErrorInfo{
			Message: "Data created under one tenant was visible from another tenant's session.",
			Action:  "Treat this as a product defect: check tenant scoping on the affected endpoint or view.",
		},
	},
	{
		err: ErrTimeoutFailure,
		info: ErrorInfo{
			Message: "A condition did not become true before its timeout.",
			Action:  "Check the product for a regression, or raise wait.timeout if the environment is slow.",
		},
	},
	{
		err: ErrConditionError,
		info: ErrorInfo{
			Message: "A wait condition could not be evaluated.",
			Action:  "This usually points at the session or the scenario definition, not the product.",
		},
	},
	{
		err: ErrWaitCancelled,
		info: ErrorInfo{
			Message: "A wait was cancelled before it completed.",
			Action:  "",
		},
	},
	{
		err: ErrInvalidWaitSpec,
		info: ErrorInfo{
			Message: "A wait specification is invalid.",
			Action:  "Ensure timeout and poll interval are positive and the poll interval is below the timeout.",
		},
	},

	// ===================
	// Sessions
	// ===================
	{
		err: ErrAuthFailed,
		info: ErrorInfo{
			Message: "The tenant rejected the automation credential.",
			Action:  "Check the username and password for the role in the tenant file.",
		},
	},
	{
		err: ErrSessionStartFailure,
		info: ErrorInfo{
			Message: "Could not start a platform session.",
			Action:  "Check that the tenant URLs are reachable and the automation credentials are valid.",
		},
	},
	{
		err: ErrSessionClosed,
		info: ErrorInfo{
			Message: "An action was attempted on a session that was already closed.",
			Action:  "",
		},
	},
	{
		err: ErrSessionNotFound,
		info: ErrorInfo{
			Message: "A step referenced a session the scenario did not declare.",
			Action:  "Declare the session under the scenario's sessions list.",
		},
	},
	{
		err: ErrUnsupportedAction,
		info: ErrorInfo{
			Message: "The action is not available for this session kind.",
			Action:  "Use UI actions with web or mobile_web sessions and requests with api sessions.",
		},
	},
	{
		err: ErrRequestFailed,
		info: ErrorInfo{
			Message: "An API request could not be completed.",
			Action:  "Check network access to the tenant API base URL.",
		},
	},

	// ===================
	// Fixtures & scenarios
	// ===================
	{
		err: ErrCyclicDependency,
		info: ErrorInfo{
			Message: "Fixture dependencies form a cycle.",
			Action:  "Remove one of the depends_on edges listed in the error.",
		},
	},
	{
		err: ErrUnknownDependency,
		info: ErrorInfo{
			Message: "A fixture depends on a fixture that is not declared.",
			Action:  "Check the depends_on ids for typos.",
		},
	},
	{
		err: ErrDuplicateID,
		info: ErrorInfo{
			Message: "Two declarations share the same id.",
			Action:  "Give every scenario, session, fixture and step a unique id.",
		},
	},
	{
		err: ErrFixtureFailed,
		info: ErrorInfo{
			Message: "A fixture could not be set up.",
			Action:  "Review the fixture error; the scenario was marked errored, not failed.",
		},
	},
	{
		err: ErrAssertionFailed,
		info: ErrorInfo{
			Message: "A scenario assertion failed.",
			Action:  "",
		},
	},
	{
		err: ErrInvalidScenario,
		info: ErrorInfo{
			Message: "A scenario definition is invalid.",
			Action:  "Run 'trellis validate' to see every problem in the suite.",
		},
	},
	{
		err: ErrInvalidTransition,
		info: ErrorInfo{
			Message: "The scenario attempted an invalid state change.",
			Action:  "",
		},
	},

	// ===================
	// Tenants & capabilities
	// ===================
	{
		err: ErrUnknownTenant,
		info: ErrorInfo{
			Message: "The requested tenant is not configured.",
			Action:  "Run 'trellis tenants' to list configured tenants.",
		},
	},
	{
		err: ErrInvalidTenant,
		info: ErrorInfo{
			Message: "A tenant configuration is invalid.",
			Action:  "Check the tenant file for an id, absolute base URLs and at least one credential.",
		},
	},
	{
		err: ErrMissingCredential,
		info: ErrorInfo{
			Message: "The tenant has no credential for the requested role.",
			Action:  "Add the role under credentials in the tenant file.",
		},
	},
	{
		err: ErrUnknownCapability,
		info: ErrorInfo{
			Message: "The requested capability is not configured.",
			Action:  "Add it under capabilities in .trellis/config.yaml.",
		},
	},
	{
		err: ErrInvalidCapability,
		info: ErrorInfo{
			Message: "A capability descriptor is invalid.",
			Action:  "Use kind web, mobile_web or api and a supported browser.",
		},
	},

	// ===================
	// Configuration & CLI
	// ===================
	{
		err: ErrConfigNotFound,
		info: ErrorInfo{
			Message: "Configuration file not found.",
			Action:  "Create .trellis/config.yaml or pass --config.",
		},
	},
	{
		err: ErrConfigInvalidWait,
		info: ErrorInfo{
			Message: "Wait configuration is invalid.",
			Action:  "Check wait.timeout, wait.poll_interval and wait.observation_window.",
		},
	},
	{
		err: ErrConfigInvalidSchedule,
		info: ErrorInfo{
			Message: "Schedule configuration is invalid.",
			Action:  "Check schedule.concurrency and schedule.partition.",
		},
	},
	{
		err: ErrConfigInvalidAPI,
		info: ErrorInfo{
			Message: "API client configuration is invalid.",
			Action:  "Check api.timeout, api.rate_limit and api.burst.",
		},
	},
	{
		err: ErrConfigInvalidBrowser,
		info: ErrorInfo{
			Message: "Browser configuration is invalid.",
			Action:  "Check browser.window_width and browser.window_height.",
		},
	},
	{
		err: ErrInvalidPartition,
		info: ErrorInfo{
			Message: "Unknown partition key.",
			Action:  "Use one of: tenant, capability, none.",
		},
	},
	{
		err: ErrSuiteLoadFailed,
		info: ErrorInfo{
			Message: "A suite file could not be loaded.",
			Action:  "Check the YAML syntax of the suite file named in the error.",
		},
	},
	{
		err: ErrNoScenarios,
		info: ErrorInfo{
			Message: "No scenarios matched the selected suites and filters.",
			Action:  "Relax the --tenant or --capability filters.",
		},
	},
	{
		err: ErrInvalidOutputFormat,
		info: ErrorInfo{
			Message: "Invalid output format.",
			Action:  "Use --output text or --output json.",
		},
	},
	{
		err: ErrScenariosFailed,
		info: ErrorInfo{
			Message: "One or more scenarios failed or errored.",
			Action:  "",
		},
	},
}

// errorInfoMap provides O(1) lookup for direct sentinel error matches.
// Built once from errorInfoEntries during package initialization.
//
//nolint:gochecknoglobals // Pre-built mapping for O(1) lookup performance
var errorInfoMap = buildErrorInfoMap()

// buildErrorInfoMap creates a map from the errorInfoEntries slice.
func buildErrorInfoMap() map[error]ErrorInfo {
	m := make(map[error]ErrorInfo, len(errorInfoEntries))
	for _, entry := range errorInfoEntries {
		m[entry.err] = entry.info
	}
	return m
}

// getErrorInfo looks up the ErrorInfo for a given error.
// It first tries O(1) direct map lookup for unwrapped sentinel errors,
// then falls back to errors.Is() traversal for wrapped errors.
// Returns an ErrorInfo with the original error message if not found.
func getErrorInfo(err error) ErrorInfo {
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}

	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly error message along with a suggested
// action the user can take to resolve or work around the issue.
//
// For errors that have no clear action, the action string will be empty.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}
