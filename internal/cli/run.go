package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mrz1836/trellis/internal/config"
	"github.com/mrz1836/trellis/internal/driver"
	"github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/report"
	"github.com/mrz1836/trellis/internal/schedule"
	"github.com/mrz1836/trellis/internal/signal"
	"github.com/mrz1836/trellis/internal/suite"
)

// runFlags holds the flags of the run command.
type runFlags struct {
	Suites       []string
	Tenants      []string
	Capabilities []string
	Tags         []string
	Concurrency  int
	Partition    string
	FailFast     bool
	WaitTimeout  time.Duration
}

// AddRunCommand adds the run command to the root command.
func AddRunCommand(parent *cobra.Command, globals *GlobalFlags) {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run scenarios across tenants and platforms",
		Long: `Load the configured suites, select scenarios by tenant, capability and tag,
and run them. Scenarios sharing a tenant never run at the same time unless
--partition none is given.

Exit codes:
  0  every scenario passed or was skipped
  1  a scenario failed or errored
  2  invalid input (bad flags, unknown tenant, a suite that does not compile)

Examples:
  trellis run                                # Run every suite
  trellis run --tenant acme --tenant globex  # Only scenarios of these tenants
  trellis run --capability api --tag smoke   # API smoke scenarios
  trellis run --suite 'e2e/*.yaml' -o json   # Other suites, JSON report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides := &config.Config{
				Suites: flags.Suites,
			}
			overrides.Schedule.Concurrency = flags.Concurrency
			overrides.Schedule.Partition = flags.Partition
			overrides.Wait.Timeout = flags.WaitTimeout

			cfg, err := loadConfig(cmd.Context(), globals, overrides)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("fail-fast") {
				cfg.Schedule.FailFast = flags.FailFast
			}

			filter := suite.Filter{
				Tenants:      flags.Tenants,
				Capabilities: flags.Capabilities,
				Tags:         flags.Tags,
			}
			format := globals.Output
			if !cmd.Flags().Changed("output") && cfg.Report.Format != "" {
				format = cfg.Report.Format
			}

			logger := GetLogger()
			return runScenarios(cmd.Context(), cfg, filter, format, driverOptions(cfg, logger), cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringArrayVar(&flags.Suites, "suite", nil, "suite file, directory or glob (repeatable, replaces configured suites)")
	cmd.Flags().StringArrayVar(&flags.Tenants, "tenant", nil, "only run scenarios of this tenant (repeatable)")
	cmd.Flags().StringArrayVar(&flags.Capabilities, "capability", nil, "only run scenarios using these capabilities (repeatable)")
	cmd.Flags().StringArrayVar(&flags.Tags, "tag", nil, "only run scenarios with one of these tags (repeatable)")
	cmd.Flags().IntVar(&flags.Concurrency, "concurrency", 0, "number of partitions run in parallel")
	cmd.Flags().StringVar(&flags.Partition, "partition", "", "scenario grouping (tenant|capability|none)")
	cmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "skip scenarios not yet started after the first failure")
	cmd.Flags().DurationVar(&flags.WaitTimeout, "wait-timeout", 0, "default condition timeout")

	parent.AddCommand(cmd)
}

// runScenarios loads, filters, runs and reports. Driver options are passed in
// so tests can replace the browser and HTTP client.
func runScenarios(
	ctx context.Context,
	cfg *config.Config,
	filter suite.Filter,
	format string,
	opts driver.Options,
	w io.Writer,
	logger zerolog.Logger,
) error {
	ctx = logger.WithContext(ctx)

	writer, err := report.NewWriter(format, w)
	if err != nil {
		return errors.NewExitCode2Error(err)
	}

	registry, err := loadTenants(ctx, cfg)
	if err != nil {
		return err
	}
	if err := checkFilter(cfg, registry, filter); err != nil {
		return err
	}
	plans, err := loadPlans(ctx, cfg)
	if err != nil {
		return err
	}
	plans = filter.Apply(plans)
	if len(plans) == 0 {
		return errors.NewExitCode2Error(errors.ErrNoScenarios)
	}

	runner, err := newRunner(cfg, registry, opts, logger)
	if err != nil {
		return errors.NewExitCode2Error(err)
	}

	sig := signal.NewHandler(ctx)
	defer sig.Stop()

	logger.Info().
		Int("scenarios", len(plans)).
		Int("tenants", registry.Len()).
		Str("partition", cfg.Schedule.Partition).
		Msg("running scenarios")

	results := runner.Run(sig.Context(), plans)
	if received := sig.Received(); received != nil {
		logger.Warn().Str("signal", received.String()).Msg("run interrupted, remaining scenarios skipped")
	}

	if err := writer.Write(results); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if report.ExitCode(results) != ExitSuccess {
		// The report already names every failure.
		if format == OutputJSON {
			return errors.ErrJSONErrorOutput
		}
		summary := schedule.Summarize(results)
		return fmt.Errorf("%w: %d failed, %d errored", errors.ErrScenariosFailed, summary.Failed, summary.Errored)
	}
	return nil
}
