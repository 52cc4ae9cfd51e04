// Package tenant resolves tenant identifiers to their execution context:
// base URLs, per-role credentials and feature flags.
//
// Configs handed out by a Registry are deep copies, so a scenario can never
// observe another scenario's changes to a shared tenant.
package tenant

import (
	"fmt"
	"maps"
	"net/url"
	"strings"

	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/logging"
)

// Role is the permission level an automation account acts with.
type Role string

// Roles every tenant may provide credentials for.
const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// ValidRoles returns every known role.
func ValidRoles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleEmployee}
}

// Credential is the username and password of one automation account.
type Credential struct {
	Username string `json:"username" mapstructure:"username" yaml:"username"`
	Password string `json:"password" mapstructure:"password" yaml:"password"` //nolint:gosec // credential field, redacted on output
}

// String hides the password.
func (c Credential) String() string {
	return c.Username + ":" + logging.RedactedValue
}

// Config is the execution context of one tenant.
//
// Example YAML representation (one file per tenant in tenants_dir):
//
//	id: acme
//	base_url_web: https://acme.example.com
//	base_url_api: https://api.example.com/acme
//	credentials:
//	  admin:
//	    username: qa-admin@acme.test
//	    password: ${ACME_ADMIN_PASSWORD}
//	features:
//	  projects_v2: true
type Config struct {
	ID          string              `json:"id" mapstructure:"id" yaml:"id"`
	BaseURLWeb  string              `json:"base_url_web" mapstructure:"base_url_web" yaml:"base_url_web"`
	BaseURLAPI  string              `json:"base_url_api" mapstructure:"base_url_api" yaml:"base_url_api"`
	Credentials map[Role]Credential `json:"credentials" mapstructure:"credentials" yaml:"credentials"`
	Features    map[string]bool     `json:"features,omitempty" mapstructure:"features" yaml:"features,omitempty"`
}

// Validate checks the tenant has an id, absolute http(s) base URLs and at
// least one known-role credential.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: id: %w", trellerrors.ErrInvalidTenant, trellerrors.ErrEmptyValue)
	}
	if err := validateBaseURL(c.BaseURLWeb); err != nil {
		return fmt.Errorf("%w: tenant %q base_url_web: %w", trellerrors.ErrInvalidTenant, c.ID, err)
	}
	if err := validateBaseURL(c.BaseURLAPI); err != nil {
		return fmt.Errorf("%w: tenant %q base_url_api: %w", trellerrors.ErrInvalidTenant, c.ID, err)
	}
	if len(c.Credentials) == 0 {
		return fmt.Errorf("%w: tenant %q has no credentials", trellerrors.ErrInvalidTenant, c.ID)
	}
	for role, cred := range c.Credentials {
		if !isKnownRole(role) {
			return fmt.Errorf("%w: tenant %q has unknown role %q", trellerrors.ErrInvalidTenant, c.ID, role)
		}
		if cred.Username == "" {
			return fmt.Errorf("%w: tenant %q role %s username: %w", trellerrors.ErrInvalidTenant, c.ID, role, trellerrors.ErrEmptyValue)
		}
	}
	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return trellerrors.ErrEmptyValue
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute http(s) URL", trellerrors.ErrInvalidURL, raw)
	}
	return nil
}

func isKnownRole(r Role) bool {
	for _, known := range ValidRoles() {
		if r == known {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Credentials = maps.Clone(c.Credentials)
	out.Features = maps.Clone(c.Features)
	return &out
}

// Credential returns the credential for role.
func (c *Config) Credential(role Role) (Credential, error) {
	cred, ok := c.Credentials[role]
	if !ok {
		return Credential{}, fmt.Errorf("%w: tenant %q role %s", trellerrors.ErrMissingCredential, c.ID, role)
	}
	return cred, nil
}

// Feature reports whether the named feature flag is enabled.
func (c *Config) Feature(name string) bool {
	return c.Features[name]
}

// WebURL resolves path against the tenant's web base URL.
func (c *Config) WebURL(path string) string {
	return joinURL(c.BaseURLWeb, path)
}

// APIURL resolves path against the tenant's API base URL.
func (c *Config) APIURL(path string) string {
	return joinURL(c.BaseURLAPI, path)
}

// joinURL appends path to base keeping base's own path prefix.
// Absolute URLs in path are returned unchanged.
func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
