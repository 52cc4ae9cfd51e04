package driver

import (
	"context"

	"github.com/mrz1836/trellis/internal/domain"
)

// Element is a snapshot of one DOM element matched by a selector.
type Element struct {
	Text    string `json:"text"`
	Value   string `json:"value"`
	Visible bool   `json:"visible"`
}

// Page is one isolated browser tab driven by a UI session. Implementations
// perform a single protocol-level operation per call and never wait for
// application state; waiting is the session's job.
type Page interface {
	// Navigate loads url.
	Navigate(ctx context.Context, url string) error

	// Location returns the current URL.
	Location(ctx context.Context) (string, error)

	// Query returns every element currently matching selector. No match is
	// an empty slice, not an error.
	Query(ctx context.Context, selector string) ([]Element, error)

	// SetValue replaces the value of the first element matching selector.
	SetValue(ctx context.Context, selector, value string) error

	// Value returns the value of the first element matching selector.
	Value(ctx context.Context, selector string) (string, error)

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// Close releases the tab and any browser process behind it.
	Close(ctx context.Context) error
}

// Browser creates pages configured for a capability. Every page it returns
// must be isolated from the others: no shared cookies or storage.
type Browser interface {
	NewPage(ctx context.Context, capability domain.Capability) (Page, error)
}
