package config

import (
	"path/filepath"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
)

// DefaultConfig returns a new Config with the built-in default values.
// These defaults are the base layer that config files, environment
// variables and CLI flags override.
func DefaultConfig() *Config {
	return &Config{
		Wait: WaitConfig{
			Timeout:           constants.DefaultWaitTimeout,
			PollInterval:      constants.DefaultPollInterval,
			ObservationWindow: constants.DefaultObservationWindow,
		},
		Schedule: ScheduleConfig{
			Concurrency: constants.DefaultConcurrency,
			Partition:   constants.PartitionTenant.String(),
		},
		API: APIConfig{
			Timeout:      constants.DefaultAPITimeout,
			RateLimit:    constants.DefaultAPIRateLimit,
			Burst:        constants.DefaultAPIBurst,
			TenantHeader: constants.DefaultTenantHeader,
		},
		Browser: BrowserConfig{
			// Containers rarely allow Chrome's sandbox.
			NoSandbox:    true,
			WindowWidth:  constants.DefaultWindowWidth,
			WindowHeight: constants.DefaultWindowHeight,
		},
		Capabilities: DefaultCapabilities(),
		TenantsDir:   filepath.Join(constants.ProjectConfigDir, constants.TenantsDir),
		Suites:       []string{filepath.Join(constants.ProjectConfigDir, constants.SuitesDir, "*.yaml")},
		Report:       ReportConfig{Format: "text"},
	}
}

// DefaultCapabilities returns the capabilities available without configuration.
func DefaultCapabilities() map[string]domain.Capability {
	return map[string]domain.Capability{
		"web": {
			Kind:     constants.CapabilityWeb,
			Browser:  constants.BrowserChromium,
			Headless: true,
		},
		"mobile": {
			Kind:     constants.CapabilityMobileWeb,
			Browser:  constants.BrowserChromium,
			Headless: true,
			Device: &domain.DeviceProfile{
				Name:      "Pixel 7",
				Width:     412,
				Height:    915,
				Scale:     2.625,
				UserAgent: "Mozilla/5.0 (Linux; Android 14; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36",
				Touch:     true,
			},
		},
		"api": {
			Kind: constants.CapabilityAPI,
		},
	}
}
