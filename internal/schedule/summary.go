package schedule

import (
	"time"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
)

// Summary counts results by outcome.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`

	// DurationMs is the sum of scenario durations.
	DurationMs int64 `json:"duration_ms"`
}

// Summarize counts results.
func Summarize(results []domain.ScenarioResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case constants.OutcomePassed:
			s.Passed++
		case constants.OutcomeFailed:
			s.Failed++
		case constants.OutcomeErrored:
			s.Errored++
		case constants.OutcomeSkipped:
			s.Skipped++
		}
		s.DurationMs += r.DurationMs
	}
	return s
}

// OK reports whether nothing failed or errored.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Errored == 0
}

// Duration returns DurationMs as a time.Duration.
func (s Summary) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}
