// Package domain provides shared domain types for trellis.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"fmt"
	"strings"

	"github.com/mrz1836/trellis/internal/constants"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
)

// Capability describes a target execution surface: a desktop browser,
// an emulated mobile browser, or a REST API.
//
// Example YAML representation (under capabilities.<name> in config):
//
//	iphone:
//	  kind: mobile_web
//	  browser: chromium
//	  headless: true
//	  device:
//	    name: iPhone 14
//	    width: 390
//	    height: 844
//	    scale: 3
//	    touch: true
type Capability struct {
	// Name is the configured capability name (e.g., "desktop", "iphone", "api").
	Name string `json:"name" mapstructure:"name" yaml:"name"`

	// Kind selects the action surface of sessions opened for this capability.
	Kind constants.CapabilityKind `json:"kind" mapstructure:"kind" yaml:"kind"`

	// Browser is the engine behind UI capabilities. Empty means chromium.
	Browser constants.BrowserEngine `json:"browser,omitempty" mapstructure:"browser" yaml:"browser,omitempty"`

	// Device is the emulated device for mobile_web capabilities.
	Device *DeviceProfile `json:"device,omitempty" mapstructure:"device" yaml:"device,omitempty"`

	// Headless runs the browser without a visible window.
	Headless bool `json:"headless" mapstructure:"headless" yaml:"headless"`
}

// DeviceProfile describes the screen and input characteristics of an emulated device.
type DeviceProfile struct {
	Name      string  `json:"name" mapstructure:"name" yaml:"name"`
	Width     int64   `json:"width" mapstructure:"width" yaml:"width"`
	Height    int64   `json:"height" mapstructure:"height" yaml:"height"`
	Scale     float64 `json:"scale,omitempty" mapstructure:"scale" yaml:"scale,omitempty"`
	UserAgent string  `json:"user_agent,omitempty" mapstructure:"user_agent" yaml:"user_agent,omitempty"`
	Touch     bool    `json:"touch" mapstructure:"touch" yaml:"touch"`
}

// Validate checks the device dimensions.
func (d *DeviceProfile) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: device %q must have positive width and height", trellerrors.ErrInvalidCapability, d.Name)
	}
	if d.Scale < 0 {
		return fmt.Errorf("%w: device %q scale must not be negative", trellerrors.ErrInvalidCapability, d.Name)
	}
	return nil
}

// Validate checks that the capability is internally consistent.
func (c Capability) Validate() error {
	switch c.Kind {
	case constants.CapabilityAPI:
		if c.Device != nil {
			return fmt.Errorf("%w: api capability %q cannot declare a device", trellerrors.ErrInvalidCapability, c.Name)
		}
		return nil
	case constants.CapabilityWeb, constants.CapabilityMobileWeb:
	default:
		return fmt.Errorf("%w: capability %q has unknown kind %q", trellerrors.ErrInvalidCapability, c.Name, c.Kind)
	}

	switch c.BrowserEngine() {
	case constants.BrowserChromium, constants.BrowserFirefox, constants.BrowserWebKit:
	default:
		return fmt.Errorf("%w: capability %q has unknown browser %q", trellerrors.ErrInvalidCapability, c.Name, c.Browser)
	}

	if c.Kind == constants.CapabilityMobileWeb && c.Device == nil {
		return fmt.Errorf("%w: mobile_web capability %q requires a device", trellerrors.ErrInvalidCapability, c.Name)
	}
	if c.Device != nil {
		return c.Device.Validate()
	}
	return nil
}

// BrowserEngine returns the configured browser, defaulting to chromium.
func (c Capability) BrowserEngine() constants.BrowserEngine {
	if c.Browser == "" {
		return constants.BrowserChromium
	}
	return c.Browser
}

// Label returns the capability name, or a description derived from its fields.
func (c Capability) Label() string {
	if c.Name != "" {
		return c.Name
	}
	parts := []string{c.Kind.String()}
	if c.Kind.IsUI() {
		parts = append(parts, string(c.BrowserEngine()))
	}
	if c.Device != nil && c.Device.Name != "" {
		parts = append(parts, c.Device.Name)
	}
	return strings.Join(parts, "/")
}

// Clone returns a copy that shares no pointers with c.
func (c Capability) Clone() Capability {
	if c.Device != nil {
		d := *c.Device
		c.Device = &d
	}
	return c
}
