package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/schedule"
)

// Output formats.
const (
	// FormatText is the human-readable report.
	FormatText = "text"
	// FormatJSON is the machine-readable report.
	FormatJSON = "json"
)

// ValidFormats returns every accepted output format.
func ValidFormats() []string {
	return []string{FormatText, FormatJSON}
}

// Writer renders a finished run.
type Writer interface {
	Write(results []domain.ScenarioResult) error
}

// NewWriter returns the writer for format.
func NewWriter(format string, w io.Writer) (Writer, error) {
	switch format {
	case FormatText, "":
		return NewTextWriter(w), nil
	case FormatJSON:
		return NewJSONWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %q (use %s)", trellerrors.ErrInvalidOutputFormat, format, strings.Join(ValidFormats(), " or "))
	}
}

// ExitCode is 1 if any scenario failed or errored, 0 otherwise.
func ExitCode(results []domain.ScenarioResult) int {
	for _, r := range results {
		if r.Unsuccessful() {
			return 1
		}
	}
	return 0
}

// TextWriter prints one line per scenario, details under unsuccessful ones,
// and a summary line.
type TextWriter struct {
	w      io.Writer
	styles *Styles
	title  cases.Caser
}

// NewTextWriter creates a TextWriter.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{
		w:      w,
		styles: NewStyles(NewRenderer(w)),
		title:  cases.Title(language.English),
	}
}

// Write renders results.
func (t *TextWriter) Write(results []domain.ScenarioResult) error {
	idWidth, tenantWidth := 0, 0
	for _, r := range results {
		idWidth = max(idWidth, len(r.ScenarioID))
		tenantWidth = max(tenantWidth, len(r.TenantID))
	}

	var b strings.Builder
	for _, r := range results {
		label := fmt.Sprintf("%s %-7s", OutcomeIcon(r.Outcome), r.Outcome)
		fmt.Fprintf(&b, "%s  %s  %s  %s  %s\n",
			t.outcomeStyle(r.Outcome).Render(label),
			t.styles.ID.Render(pad(r.ScenarioID, idWidth)),
			pad(r.TenantID, tenantWidth),
			t.styles.Dim.Render(strings.Join(r.Capabilities, ",")),
			t.styles.Dim.Render(formatDuration(r.Duration())),
		)
		t.writeDetails(&b, r)
	}

	s := schedule.Summarize(results)
	parts := []string{fmt.Sprintf("%d total", s.Total)}
	for _, c := range []struct {
		outcome constants.Outcome
		n       int
	}{
		{constants.OutcomePassed, s.Passed},
		{constants.OutcomeFailed, s.Failed},
		{constants.OutcomeErrored, s.Errored},
		{constants.OutcomeSkipped, s.Skipped},
	} {
		text := fmt.Sprintf("%s %d", t.title.String(c.outcome.String()), c.n)
		if c.n > 0 {
			text = t.outcomeStyle(c.outcome).Render(text)
		}
		parts = append(parts, text)
	}
	fmt.Fprintf(&b, "\n%s %s  %s\n",
		t.styles.Heading.Render("Scenarios:"),
		strings.Join(parts, " · "),
		t.styles.Dim.Render("("+formatDuration(s.Duration())+")"),
	)

	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *TextWriter) writeDetails(b *strings.Builder, r domain.ScenarioResult) {
	if r.Unsuccessful() || r.Outcome == constants.OutcomeSkipped {
		if r.FailedStep != "" {
			fmt.Fprintf(b, "    at %s: %s\n", r.FailedStep, r.Message)
		} else if r.Message != "" {
			fmt.Fprintf(b, "    %s\n", r.Message)
		}
		if r.Condition != "" {
			waited := time.Duration(r.WaitElapsedMs) * time.Millisecond
			fmt.Fprintf(b, "    %s\n", t.styles.Dim.Render(fmt.Sprintf("condition: %s (waited %s)", r.Condition, formatDuration(waited))))
		}
	}
	for _, e := range r.TeardownErrors {
		fmt.Fprintf(b, "    %s\n", t.styles.Dim.Render("teardown: "+e))
	}
}

func (t *TextWriter) outcomeStyle(o constants.Outcome) lipgloss.Style {
	if s, ok := t.styles.Outcomes[o]; ok {
		return s
	}
	return t.styles.Dim
}

// JSONWriter prints results and their summary as one indented document.
type JSONWriter struct {
	w io.Writer
}

// NewJSONWriter creates a JSONWriter.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w}
}

// Document is the JSON report.
type Document struct {
	Results []domain.ScenarioResult `json:"results"`
	Summary schedule.Summary        `json:"summary"`
}

// Write renders results.
func (j *JSONWriter) Write(results []domain.ScenarioResult) error {
	if results == nil {
		results = []domain.ScenarioResult{}
	}
	encoder := json.NewEncoder(j.w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(Document{Results: results, Summary: schedule.Summarize(results)}); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}
