// Package config provides configuration management for trellis with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (TRELLIS_* prefix)
//  3. Project config (.trellis/config.yaml) or the file named by --config
//  4. Global config (~/.trellis/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
// The recognised keys are exactly the fields below; unknown keys are ignored.
//
// IMPORTANT: This package may import internal/constants, internal/errors and
// internal/domain, but MUST NOT import the engine packages (wait, driver,
// orchestrator, schedule). The CLI turns a Config into their options.
package config

import (
	"maps"
	"slices"
	"time"

	"github.com/mrz1836/trellis/internal/domain"
)

// Config is the root configuration structure for trellis.
type Config struct {
	// Wait holds the default timing of every condition wait.
	Wait WaitConfig `yaml:"wait" mapstructure:"wait"`

	// Schedule controls how scenarios are spread over workers.
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`

	// API configures the HTTP client behind api sessions.
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Browser configures the browser behind web and mobile_web sessions.
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`

	// Capabilities maps capability names used in suites to descriptors.
	// Built-in capabilities (web, mobile, api) are available unless redefined.
	Capabilities map[string]domain.Capability `yaml:"capabilities" mapstructure:"capabilities"`

	// TenantsDir holds one YAML or JSON file per tenant.
	// Default: .trellis/tenants
	TenantsDir string `yaml:"tenants_dir" mapstructure:"tenants_dir"`

	// Suites lists glob patterns of scenario suite files.
	// Default: [.trellis/suites/*.yaml]
	Suites []string `yaml:"suites" mapstructure:"suites"`

	// Report controls result rendering.
	Report ReportConfig `yaml:"report" mapstructure:"report"`
}

// WaitConfig holds condition wait timing.
type WaitConfig struct {
	// Timeout bounds how long a condition may take to become true.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// PollInterval is the re-evaluation cadence. Must be below Timeout.
	// Default: 250ms
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// ObservationWindow is how long an isolation assertion watches for
	// data that must not appear.
	// Default: 5s
	ObservationWindow time.Duration `yaml:"observation_window" mapstructure:"observation_window"`
}

// ScheduleConfig controls the scenario worker pool.
type ScheduleConfig struct {
	// Concurrency is the number of partitions run in parallel.
	// Default: 4, Valid range: 1-64
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`

	// Partition groups scenarios that must not run at the same time.
	// Valid values: "tenant", "capability", "none"
	// Default: "tenant"
	Partition string `yaml:"partition" mapstructure:"partition"`

	// FailFast skips scenarios not yet started once one fails.
	// Default: false
	FailFast bool `yaml:"fail_fast" mapstructure:"fail_fast"`
}

// APIConfig configures api sessions.
type APIConfig struct {
	// Timeout is the per-request HTTP timeout.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// RateLimit caps requests per second per tenant. 0 disables limiting.
	// Default: 10
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Burst is the rate limiter burst size.
	// Default: 5
	Burst int `yaml:"burst" mapstructure:"burst"`

	// AuthCheckPath is requested while opening an api session to verify
	// the credential. Empty skips the check.
	AuthCheckPath string `yaml:"auth_check_path" mapstructure:"auth_check_path"`

	// TenantHeader carries the tenant id on every request.
	// Default: X-Tenant-ID
	TenantHeader string `yaml:"tenant_header" mapstructure:"tenant_header"`
}

// BrowserConfig configures the Chrome instance behind UI sessions.
type BrowserConfig struct {
	// ExecPath is the Chrome binary. Empty searches the usual locations.
	ExecPath string `yaml:"exec_path" mapstructure:"exec_path"`

	// NoSandbox disables the Chrome sandbox, needed in most containers.
	// Default: true
	NoSandbox bool `yaml:"no_sandbox" mapstructure:"no_sandbox"`

	// WindowWidth is the desktop viewport width.
	// Default: 1920
	WindowWidth int `yaml:"window_width" mapstructure:"window_width"`

	// WindowHeight is the desktop viewport height.
	// Default: 1080
	WindowHeight int `yaml:"window_height" mapstructure:"window_height"`
}

// ReportConfig controls result rendering.
type ReportConfig struct {
	// Format is "text" or "json".
	// Default: "text"
	Format string `yaml:"format" mapstructure:"format"`
}

// Capability returns the named capability with its Name set.
func (c *Config) Capability(name string) (domain.Capability, bool) {
	capability, ok := c.Capabilities[name]
	if !ok {
		return domain.Capability{}, false
	}
	capability = capability.Clone()
	capability.Name = name
	return capability, true
}

// CapabilityNames returns the configured capability names, sorted.
func (c *Config) CapabilityNames() []string {
	return slices.Sorted(maps.Keys(c.Capabilities))
}
