package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mrz1836/trellis/internal/config"
	"github.com/mrz1836/trellis/internal/report"
	"github.com/mrz1836/trellis/internal/tenant"
)

// tenantView is a tenant with its passwords redacted.
type tenantView struct {
	ID          string            `json:"id"`
	BaseURLWeb  string            `json:"base_url_web"`
	BaseURLAPI  string            `json:"base_url_api"`
	Credentials map[string]string `json:"credentials"`
	Features    []string          `json:"features,omitempty"`
}

// AddTenantsCommand adds the tenants command to the root command.
func AddTenantsCommand(parent *cobra.Command, globals *GlobalFlags) {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "List configured tenants",
		Long: `List every tenant in the tenants directory with its base URLs, the roles
it has credentials for and its enabled features. Passwords are never shown.

Examples:
  trellis tenants
  trellis tenants -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Context(), globals, nil)
			if err != nil {
				return err
			}
			return runTenants(cmd.Context(), cfg, globals.Output, cmd.OutOrStdout(), GetLogger())
		},
	}
	parent.AddCommand(cmd)
}

// runTenants loads the tenant directory and prints it.
func runTenants(ctx context.Context, cfg *config.Config, format string, w io.Writer, logger zerolog.Logger) error {
	registry, err := loadTenants(logger.WithContext(ctx), cfg)
	if err != nil {
		return err
	}

	views := make([]tenantView, 0, registry.Len())
	for _, id := range registry.IDs() {
		tn, err := registry.Resolve(id)
		if err != nil {
			return err
		}
		views = append(views, viewTenant(tn))
	}

	if format == OutputJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(views)
	}

	if len(views) == 0 {
		_, _ = fmt.Fprintf(w, "No tenants in %s.\n", cfg.TenantsDir)
		return nil
	}

	styles := report.NewStyles(report.NewRenderer(w))
	for _, v := range views {
		_, _ = fmt.Fprintln(w, styles.ID.Render(v.ID))
		_, _ = fmt.Fprintf(w, "    web:   %s\n", v.BaseURLWeb)
		_, _ = fmt.Fprintf(w, "    api:   %s\n", v.BaseURLAPI)
		for _, role := range slices.Sorted(maps.Keys(v.Credentials)) {
			_, _ = fmt.Fprintf(w, "    %-6s %s\n", role+":", v.Credentials[role])
		}
		if len(v.Features) > 0 {
			_, _ = fmt.Fprintf(w, "    %s\n", styles.Dim.Render("features: "+strings.Join(v.Features, ", ")))
		}
	}
	return nil
}

func viewTenant(tn *tenant.Config) tenantView {
	v := tenantView{
		ID:          tn.ID,
		BaseURLWeb:  tn.BaseURLWeb,
		BaseURLAPI:  tn.BaseURLAPI,
		Credentials: make(map[string]string, len(tn.Credentials)),
	}
	for role, cred := range tn.Credentials {
		v.Credentials[role.String()] = cred.String()
	}
	for name, enabled := range tn.Features {
		if enabled {
			v.Features = append(v.Features, name)
		}
	}
	slices.Sort(v.Features)
	return v
}
