// Package constants provides centralized constant values used throughout trellis.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory names and paths used by trellis.
const (
	// TrellisHome is the hidden directory name where trellis stores global data.
	// This directory is created in the user's home directory.
	TrellisHome = ".trellis"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// TenantsDir is the default directory, relative to the project config
	// directory, holding one file per tenant.
	TenantsDir = "tenants"

	// SuitesDir is the default directory, relative to the project config
	// directory, holding scenario suite files.
	SuitesDir = "suites"
)

// Wait defaults. Every state-dependent operation polls instead of sleeping.
const (
	// DefaultWaitTimeout bounds how long any single condition may take to become true.
	DefaultWaitTimeout = 10 * time.Second

	// DefaultPollInterval is the cadence at which conditions are re-evaluated.
	DefaultPollInterval = 250 * time.Millisecond

	// DefaultObservationWindow is how long an absence must hold before an
	// isolation assertion passes.
	DefaultObservationWindow = 5 * time.Second

	// MinPollInterval is the smallest poll interval accepted from configuration.
	MinPollInterval = 10 * time.Millisecond
)

// Scheduler defaults.
const (
	// DefaultConcurrency is the default number of partitions run in parallel.
	DefaultConcurrency = 4

	// MaxConcurrency is the upper bound accepted for schedule.concurrency.
	MaxConcurrency = 64
)

// API client defaults.
const (
	// DefaultAPITimeout is the per-request HTTP timeout for API sessions.
	DefaultAPITimeout = 30 * time.Second

	// DefaultAPIRateLimit is the default requests per second per API session.
	DefaultAPIRateLimit = 10.0

	// DefaultAPIBurst is the default token bucket burst per API session.
	DefaultAPIBurst = 5

	// DefaultTenantHeader carries the tenant id on every API request.
	DefaultTenantHeader = "X-Tenant-ID"
)

// Browser defaults.
const (
	// DefaultWindowWidth is the desktop viewport width for web sessions.
	DefaultWindowWidth = 1920

	// DefaultWindowHeight is the desktop viewport height for web sessions.
	DefaultWindowHeight = 1080
)

// DefaultTeardownTimeout bounds the whole tearing-down phase of one scenario.
const DefaultTeardownTimeout = 2 * time.Minute

// Log rotation settings for the CLI log file.
const (
	// LogMaxSizeMB is the size at which the log file is rotated.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated files kept.
	LogMaxBackups = 3

	// LogMaxAgeDays is how long rotated files are kept.
	LogMaxAgeDays = 28

	// LogCompress gzips rotated files.
	LogCompress = true
)
