// Package testutil provides testing utilities for trellis.
//
// This package contains mock errors shared by tests that simulate browser,
// network and API failures. It should only be imported by test files
// (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
var (
	// ErrMockBrowserUnavailable simulates a browser that cannot be launched.
	ErrMockBrowserUnavailable = errors.New("chrome not found")

	// ErrMockTargetCrashed simulates a browser tab that died.
	ErrMockTargetCrashed = errors.New("target crashed")

	// ErrMockNetwork simulates a network failure.
	ErrMockNetwork = errors.New("connection refused")

	// ErrMockAPIError simulates a product API returning a server error.
	ErrMockAPIError = errors.New("api returned 500")

	// ErrMockUnavailable simulates an endpoint that is down.
	ErrMockUnavailable = errors.New("members endpoint unavailable")

	// ErrMockLogin simulates a login flow that never completes.
	ErrMockLogin = errors.New("sso redirect loop")
)
