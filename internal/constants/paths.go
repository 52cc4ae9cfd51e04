package constants

// Log file names.
const (
	// CLILogFileName is the name of the global CLI log file.
	// This file is located in ~/.trellis/logs/trellis.log
	CLILogFileName = "trellis.log"
)

// Configuration file names.
const (
	// GlobalConfigName is the name of the global trellis configuration file.
	GlobalConfigName = "config.yaml"

	// ProjectConfigDir is the project-level directory holding config, tenants and suites.
	ProjectConfigDir = ".trellis"

	// EnvPrefix is the prefix for environment variable overrides (TRELLIS_WAIT_TIMEOUT, ...).
	EnvPrefix = "TRELLIS"
)
