// Package cli provides the command-line interface for trellis.
package cli

import (
	stderrors "errors"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/report"
)

// Exit codes for the CLI.
const (
	// ExitSuccess indicates every scenario passed or was skipped.
	ExitSuccess = 0
	// ExitError indicates a failed or errored scenario, or a runtime error.
	ExitError = 1
	// ExitInvalidInput indicates invalid user input: bad flags, an unknown
	// tenant filter or a suite that does not compile.
	ExitInvalidInput = 2
)

// Output format constants.
const (
	// OutputText is the default human-readable output format.
	OutputText = report.FormatText
	// OutputJSON is the machine-readable JSON output format.
	OutputJSON = report.FormatJSON
)

// GlobalFlags holds flags available to all commands.
type GlobalFlags struct {
	// Output specifies the output format (text or json).
	Output string
	// Verbose enables debug-level logging.
	Verbose bool
	// Quiet suppresses non-essential output (warn level only).
	Quiet bool
	// ConfigPath replaces the project config file.
	ConfigPath string
}

// AddGlobalFlags adds global flags to a command.
// These flags are available to all subcommands via PersistentFlags.
func AddGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	cmd.PersistentFlags().StringVarP(&flags.Output, "output", "o", OutputText, "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress non-essential output")
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "config file (default .trellis/config.yaml)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// BindGlobalFlags binds global flags to Viper for environment variable
// support. The TRELLIS_ prefix is used for environment variables
// (e.g., TRELLIS_OUTPUT, TRELLIS_VERBOSE).
func BindGlobalFlags(v *viper.Viper, cmd *cobra.Command) error {
	// Use Root().PersistentFlags() to find flags defined on the root command,
	// even when called from a subcommand's PersistentPreRunE.
	rootFlags := cmd.Root().PersistentFlags()

	for _, name := range []string{"output", "verbose", "quiet"} {
		if err := v.BindPFlag(name, rootFlags.Lookup(name)); err != nil {
			return err
		}
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.AutomaticEnv()

	return nil
}

// ValidOutputFormats returns the list of valid output format values.
func ValidOutputFormats() []string {
	return report.ValidFormats()
}

// IsValidOutputFormat checks if the given format is valid.
func IsValidOutputFormat(format string) bool {
	return slices.Contains(ValidOutputFormats(), format)
}

// ExitCodeForError maps an error returned by Execute to a process exit code.
func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.IsExitCode2Error(err), stderrors.Is(err, errors.ErrInvalidOutputFormat):
		return ExitInvalidInput
	default:
		return ExitError
	}
}
