package cli

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/trellis/internal/errors"
)

func TestRootCmd_Help(t *testing.T) {
	t.Parallel()

	flags := &GlobalFlags{}
	cmd := newRootCmd(flags, BuildInfo{Version: "test"})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, expected := range []string{"trellis", "run", "validate", "tenants", "--output", "--verbose", "--quiet", "--config", "--version"} {
		assert.Contains(t, output, expected)
	}
}

func TestRootCmd_Version(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		info           BuildInfo
		expectContains []string
	}{
		{
			name:           "full version info",
			info:           BuildInfo{Version: "1.0.0", Commit: "abc1234", Date: "2026-01-01"},
			expectContains: []string{"1.0.0", "abc1234", "2026-01-01"},
		},
		{
			name:           "default dev version",
			info:           BuildInfo{},
			expectContains: []string{"dev", "none", "unknown"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cmd := newRootCmd(&GlobalFlags{}, tc.info)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs([]string{"--version"})

			require.NoError(t, cmd.Execute())
			for _, expected := range tc.expectContains {
				assert.Contains(t, buf.String(), expected)
			}
		})
	}
}

func TestRootCmd_OutputFlag(t *testing.T) {
	t.Setenv("TRELLIS_HOME", t.TempDir())
	t.Cleanup(CloseLogFile)

	tests := []struct {
		name          string
		args          []string
		expectedValue string
		expectError   bool
	}{
		{name: "text output", args: []string{"--output", "text"}, expectedValue: OutputText},
		{name: "shorthand output", args: []string{"-o", "json"}, expectedValue: OutputJSON},
		{name: "invalid output format", args: []string{"--output", "xml"}, expectError: true},
		{name: "empty output format", args: []string{"--output", ""}, expectError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			flags := &GlobalFlags{}
			cmd := newRootCmd(flags, BuildInfo{})
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tc.args)

			err := cmd.Execute()
			if tc.expectError {
				require.ErrorIs(t, err, errors.ErrInvalidOutputFormat)
				assert.Equal(t, ExitInvalidInput, ExitCodeForError(err))
				assert.NotContains(t, buf.String(), "Usage:")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedValue, flags.Output)
		})
	}
}

func TestRootCmd_VerboseQuietMutuallyExclusive(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd(&GlobalFlags{}, BuildInfo{})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--verbose", "--quiet"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verbose")
	assert.Contains(t, err.Error(), "quiet")
}

func TestRootCmd_InitializesLogger(t *testing.T) {
	t.Setenv("TRELLIS_HOME", t.TempDir())
	t.Cleanup(CloseLogFile)

	cmd := newRootCmd(&GlobalFlags{}, BuildInfo{})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--verbose"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Usage:")

	logger := GetLogger()
	assert.True(t, logger.Debug().Enabled())
}

func TestExecute(t *testing.T) {
	t.Setenv("TRELLIS_HOME", t.TempDir())
	t.Cleanup(CloseLogFile)

	args := os.Args
	os.Args = []string{"trellis"}
	t.Cleanup(func() { os.Args = args })

	err := Execute(context.Background(), BuildInfo{Version: "test", Commit: "test123", Date: "today"})
	require.NoError(t, err)
}

func TestFormatVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		info     BuildInfo
		expected string
	}{
		{
			name:     "all fields set",
			info:     BuildInfo{Version: "1.0.0", Commit: "abc123", Date: "2026-01-01"},
			expected: "1.0.0 (commit: abc123, built: 2026-01-01)",
		},
		{
			name:     "empty info uses defaults",
			info:     BuildInfo{},
			expected: "dev (commit: none, built: unknown)",
		},
		{
			name:     "partial info fills defaults",
			info:     BuildInfo{Version: "2.0.0"},
			expected: "2.0.0 (commit: none, built: unknown)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, formatVersion(tc.info))
		})
	}
}
