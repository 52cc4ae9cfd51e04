package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/trellis/internal/config"
	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/driver"
	"github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/orchestrator"
	"github.com/mrz1836/trellis/internal/schedule"
	"github.com/mrz1836/trellis/internal/suite"
	"github.com/mrz1836/trellis/internal/tenant"
	"github.com/mrz1836/trellis/internal/wait"
)

// loadConfig loads layered configuration. Invalid configuration is invalid
// input and exits with code 2.
func loadConfig(ctx context.Context, flags *GlobalFlags, overrides *config.Config) (*config.Config, error) {
	cfg, err := config.LoadWithOverrides(ctx, flags.ConfigPath, overrides)
	if err != nil {
		return nil, errors.NewExitCode2Error(err)
	}
	return cfg, nil
}

// loadTenants reads the tenant directory.
func loadTenants(ctx context.Context, cfg *config.Config) (*tenant.Registry, error) {
	registry, err := suite.LoadTenants(ctx, cfg.TenantsDir)
	if err != nil {
		return nil, errors.NewExitCode2Error(err)
	}
	return registry, nil
}

// loadPlans loads and compiles every suite. Any problem, a fixture cycle
// included, aborts before a single scenario runs.
func loadPlans(ctx context.Context, cfg *config.Config) ([]*orchestrator.Plan, error) {
	plans, err := suite.Load(ctx, cfg.Suites, cfg)
	if err != nil {
		return nil, errors.NewExitCode2Error(err)
	}
	return plans, nil
}

// checkFilter rejects filters naming tenants or capabilities that do not exist.
func checkFilter(cfg *config.Config, registry *tenant.Registry, f suite.Filter) error {
	if _, err := registry.Filter(f.Tenants); err != nil {
		return errors.NewExitCode2Error(err)
	}
	for _, name := range f.Capabilities {
		if _, ok := cfg.Capability(name); !ok {
			return errors.NewExitCode2Error(fmt.Errorf("%w: %q", errors.ErrUnknownCapability, name))
		}
	}
	return nil
}

// driverOptions turns configuration into driver options. UI sessions are
// backed by Chrome.
func driverOptions(cfg *config.Config, logger zerolog.Logger) driver.Options {
	return driver.Options{
		Browser: driver.NewChromeBrowser(driver.ChromeOptions{
			ExecPath:     cfg.Browser.ExecPath,
			NoSandbox:    cfg.Browser.NoSandbox,
			WindowWidth:  cfg.Browser.WindowWidth,
			WindowHeight: cfg.Browser.WindowHeight,
			Logger:       logger,
		}),
		APITimeout: cfg.API.Timeout,
		Wait: wait.Defaults{
			Timeout:           cfg.Wait.Timeout,
			PollInterval:      cfg.Wait.PollInterval,
			ObservationWindow: cfg.Wait.ObservationWindow,
		},
		RateLimit:     cfg.API.RateLimit,
		Burst:         cfg.API.Burst,
		AuthCheckPath: cfg.API.AuthCheckPath,
		TenantHeader:  cfg.API.TenantHeader,
		Logger:        logger,
	}
}

// newRunner wires the driver, orchestrator and scheduler.
func newRunner(cfg *config.Config, registry *tenant.Registry, opts driver.Options, logger zerolog.Logger) (*schedule.Runner, error) {
	d, err := driver.New(opts)
	if err != nil {
		return nil, err
	}
	orch, err := orchestrator.New(orchestrator.Options{
		Tenants:  registry,
		Sessions: d,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return schedule.New(orch, schedule.Options{
		Concurrency: cfg.Schedule.Concurrency,
		Partition:   constants.PartitionKey(cfg.Schedule.Partition),
		FailFast:    cfg.Schedule.FailFast,
		Logger:      logger,
	})
}
