package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mrz1836/trellis/internal/config"
	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/orchestrator"
	"github.com/mrz1836/trellis/internal/report"
	"github.com/mrz1836/trellis/internal/suite"
)

// planSummary describes one compiled scenario.
type planSummary struct {
	ID           string   `json:"id"`
	Tenants      []string `json:"tenants"`
	Capabilities []string `json:"capabilities"`
	Fixtures     []string `json:"fixtures"`
	Steps        []string `json:"steps"`
	Tags         []string `json:"tags,omitempty"`
}

// validateResult is the JSON output of the validate command.
type validateResult struct {
	Valid     bool          `json:"valid"`
	Scenarios []planSummary `json:"scenarios"`
	Errors    []string      `json:"errors,omitempty"`
}

// AddValidateCommand adds the validate command to the root command.
func AddValidateCommand(parent *cobra.Command, globals *GlobalFlags) {
	var suites []string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check suites and tenants without running anything",
		Long: `Load every suite and tenant file and report all problems at once:
unknown capabilities and sessions, references to artifacts no fixture
produces, fixture dependency cycles, duplicate ids and tenants that are
not configured.

For each valid scenario the fixture setup order is shown.

Exits with code 2 when anything is invalid.

Examples:
  trellis validate
  trellis validate --suite e2e/ -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Context(), globals, &config.Config{Suites: suites})
			if err != nil {
				return err
			}
			return runValidate(cmd.Context(), cfg, globals.Output, cmd.OutOrStdout(), GetLogger())
		},
	}

	cmd.Flags().StringArrayVar(&suites, "suite", nil, "suite file, directory or glob (repeatable, replaces configured suites)")

	parent.AddCommand(cmd)
}

// runValidate loads tenants and suites and prints what it found.
func runValidate(ctx context.Context, cfg *config.Config, format string, w io.Writer, logger zerolog.Logger) error {
	ctx = logger.WithContext(ctx)
	var problems []error

	knownTenant := func(string) bool { return true }
	registry, err := suite.LoadTenants(ctx, cfg.TenantsDir)
	if err != nil {
		problems = append(problems, err)
	} else {
		knownTenant = registry.Has
	}

	plans, loadProblems := suite.LoadAll(ctx, cfg.Suites, cfg)
	problems = append(problems, loadProblems...)

	for _, p := range plans {
		for _, id := range p.TenantIDs() {
			if !knownTenant(id) {
				problems = append(problems, fmt.Errorf("%w: scenario %q uses tenant %q", errors.ErrUnknownTenant, p.ID(), id))
			}
		}
	}

	result := validateResult{
		Valid:     len(problems) == 0,
		Scenarios: make([]planSummary, 0, len(plans)),
	}
	for _, p := range plans {
		result.Scenarios = append(result.Scenarios, summarizePlan(p))
	}
	for _, problem := range problems {
		result.Errors = append(result.Errors, problem.Error())
	}

	if format == OutputJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		if !result.Valid {
			return errors.NewExitCode2Error(errors.ErrJSONErrorOutput)
		}
		return nil
	}

	writeValidateText(w, result)
	if !result.Valid {
		return errors.NewExitCode2Error(fmt.Errorf("%w: %d problem(s) found", errors.ErrInvalidScenario, len(problems)))
	}
	return nil
}

func summarizePlan(p *orchestrator.Plan) planSummary {
	return planSummary{
		ID:           p.ID(),
		Tenants:      p.TenantIDs(),
		Capabilities: p.Capabilities(),
		Fixtures:     p.FixtureOrder(),
		Steps:        p.Steps(),
		Tags:         p.Tags(),
	}
}

func writeValidateText(w io.Writer, result validateResult) {
	styles := report.NewStyles(report.NewRenderer(w))

	for _, s := range result.Scenarios {
		_, _ = fmt.Fprintf(w, "%s %s  %s  %s\n",
			styles.Outcomes[constants.OutcomePassed].Render(report.OutcomeIcon(constants.OutcomePassed)),
			styles.ID.Render(s.ID),
			strings.Join(s.Tenants, ","),
			styles.Dim.Render(strings.Join(s.Capabilities, "+")))
		if len(s.Fixtures) > 0 {
			_, _ = fmt.Fprintf(w, "    fixtures: %s\n", strings.Join(s.Fixtures, " → "))
		}
		_, _ = fmt.Fprintf(w, "    steps:    %d\n", len(s.Steps))
	}
	for _, e := range result.Errors {
		_, _ = fmt.Fprintf(w, "%s %s\n", styles.Outcomes[constants.OutcomeFailed].Render(report.OutcomeIcon(constants.OutcomeFailed)), e)
	}

	heading := fmt.Sprintf("%d scenario(s) valid", len(result.Scenarios))
	if !result.Valid {
		heading += fmt.Sprintf(", %d problem(s)", len(result.Errors))
	}
	_, _ = fmt.Fprintln(w, styles.Heading.Render(heading))
}
