package config

import (
	"slices"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/errors"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - wait timeout and observation window must be positive
//   - wait poll interval must be at least 10ms and below both
//   - schedule concurrency must be between 1 and 64
//   - schedule partition must be tenant, capability or none
//   - api timeout must be positive, rate limit not negative, burst at least 1
//   - browser window size must be positive
//   - every capability must be a valid descriptor
//   - report format must be text or json
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateWaitConfig(&cfg.Wait); err != nil {
		return err
	}

	if err := validateScheduleConfig(&cfg.Schedule); err != nil {
		return err
	}

	if err := validateAPIConfig(&cfg.API); err != nil {
		return err
	}

	if err := validateBrowserConfig(&cfg.Browser); err != nil {
		return err
	}

	for _, name := range cfg.CapabilityNames() {
		capability, _ := cfg.Capability(name)
		if err := capability.Validate(); err != nil {
			return errors.Wrapf(err, "capabilities.%s", name)
		}
	}

	if cfg.Report.Format != "text" && cfg.Report.Format != "json" {
		return errors.Wrapf(errors.ErrInvalidOutputFormat,
			"report.format must be text or json, got %q", cfg.Report.Format)
	}

	return nil
}

// validateWaitConfig checks wait timing values.
func validateWaitConfig(cfg *WaitConfig) error {
	if cfg.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidWait,
			"wait.timeout must be positive, got %s", cfg.Timeout)
	}

	if cfg.ObservationWindow <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidWait,
			"wait.observation_window must be positive, got %s", cfg.ObservationWindow)
	}

	if cfg.PollInterval < constants.MinPollInterval {
		return errors.Wrapf(errors.ErrConfigInvalidWait,
			"wait.poll_interval must be at least %s, got %s", constants.MinPollInterval, cfg.PollInterval)
	}

	if cfg.PollInterval >= cfg.Timeout || cfg.PollInterval >= cfg.ObservationWindow {
		return errors.Wrapf(errors.ErrConfigInvalidWait,
			"wait.poll_interval (%s) must be below wait.timeout (%s) and wait.observation_window (%s)",
			cfg.PollInterval, cfg.Timeout, cfg.ObservationWindow)
	}

	return nil
}

// validateScheduleConfig checks worker pool settings.
func validateScheduleConfig(cfg *ScheduleConfig) error {
	if cfg.Concurrency < 1 || cfg.Concurrency > constants.MaxConcurrency {
		return errors.Wrapf(errors.ErrConfigInvalidSchedule,
			"schedule.concurrency must be between 1 and %d, got %d", constants.MaxConcurrency, cfg.Concurrency)
	}

	if !slices.Contains(constants.ValidPartitionKeys(), constants.PartitionKey(cfg.Partition)) {
		return errors.Wrapf(errors.ErrInvalidPartition,
			"schedule.partition %q", cfg.Partition)
	}

	return nil
}

// validateAPIConfig checks API client settings.
func validateAPIConfig(cfg *APIConfig) error {
	if cfg.Timeout <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidAPI,
			"api.timeout must be positive, got %s", cfg.Timeout)
	}

	if cfg.RateLimit < 0 {
		return errors.Wrapf(errors.ErrConfigInvalidAPI,
			"api.rate_limit cannot be negative, got %g", cfg.RateLimit)
	}

	if cfg.Burst < 1 {
		return errors.Wrapf(errors.ErrConfigInvalidAPI,
			"api.burst must be at least 1, got %d", cfg.Burst)
	}

	if cfg.TenantHeader == "" {
		return errors.Wrap(errors.ErrConfigInvalidAPI,
			"api.tenant_header must not be empty")
	}

	return nil
}

// validateBrowserConfig checks browser settings.
func validateBrowserConfig(cfg *BrowserConfig) error {
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalidBrowser,
			"browser window must be positive, got %dx%d", cfg.WindowWidth, cfg.WindowHeight)
	}
	return nil
}
