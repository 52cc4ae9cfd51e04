// Package report renders scenario results for people and machines.
//
// Colors use AdaptiveColor for light and dark terminals. Styled output is
// disabled when NO_COLOR is set (any value, including empty), when
// TERM=dumb, or when the destination is not a terminal.
package report

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/mrz1836/trellis/internal/constants"
)

//nolint:gochecknoglobals // semantic palette shared by every styled writer
var (
	// ColorPrimary is blue, used for headings and identifiers.
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}

	// ColorSuccess is green, used for passed scenarios.
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}

	// ColorWarning is yellow, used for errored scenarios.
	ColorWarning = lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}

	// ColorError is red, used for failed scenarios.
	ColorError = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}

	// ColorMuted is gray, used for skipped scenarios and secondary text.
	ColorMuted = lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}
)

// HasColorSupport returns false if NO_COLOR is set or TERM=dumb.
// This follows the NO_COLOR standard: https://no-color.org/
func HasColorSupport() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// NewRenderer returns a renderer for w. Non-terminal writers are detected by
// lipgloss and get no colors.
func NewRenderer(w io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	if !HasColorSupport() {
		r.SetColorProfile(termenv.Ascii)
	}
	return r
}

// Styles holds the styles of the text writer.
type Styles struct {
	Heading  lipgloss.Style
	ID       lipgloss.Style
	Dim      lipgloss.Style
	Outcomes map[constants.Outcome]lipgloss.Style
}

// NewStyles creates styles bound to r.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Heading: r.NewStyle().Bold(true).Foreground(ColorPrimary),
		ID:      r.NewStyle().Bold(true),
		Dim:     r.NewStyle().Foreground(ColorMuted),
		Outcomes: map[constants.Outcome]lipgloss.Style{
			constants.OutcomePassed:  r.NewStyle().Foreground(ColorSuccess).Bold(true),
			constants.OutcomeFailed:  r.NewStyle().Foreground(ColorError).Bold(true),
			constants.OutcomeErrored: r.NewStyle().Foreground(ColorWarning).Bold(true),
			constants.OutcomeSkipped: r.NewStyle().Foreground(ColorMuted),
		},
	}
}

// OutcomeIcon returns the symbol shown next to an outcome.
func OutcomeIcon(o constants.Outcome) string {
	switch o {
	case constants.OutcomePassed:
		return "✓"
	case constants.OutcomeFailed:
		return "✗"
	case constants.OutcomeErrored:
		return "⚠"
	case constants.OutcomeSkipped:
		return "○"
	default:
		return "?"
	}
}
