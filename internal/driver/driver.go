// Package driver opens and drives platform sessions for trellis scenarios.
//
// A Session is bound to exactly one tenant and one capability. Its action
// surface is selected by the capability kind: web and mobile_web sessions
// drive a browser Page, api sessions issue authenticated HTTP requests.
// Every action that changes state waits for the state it causes through
// the wait.Engine, so callers never need fixed delays.
package driver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mrz1836/trellis/internal/clock"
	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/logging"
	"github.com/mrz1836/trellis/internal/tenant"
	"github.com/mrz1836/trellis/internal/wait"
)

// LoginFunc signs a freshly opened UI session in. It runs after the session
// has navigated to the tenant's web base URL.
type LoginFunc func(ctx context.Context, s *Session, cred tenant.Credential) error

// Options configures a Driver.
type Options struct {
	// Browser backs web and mobile_web sessions. Nil disables UI sessions.
	Browser Browser

	// HTTPClient backs api sessions. Nil uses a client with APITimeout.
	HTTPClient *http.Client

	// APITimeout is used when HTTPClient is nil.
	APITimeout time.Duration

	// Wait holds the default timeout, poll interval and observation window.
	Wait wait.Defaults

	// RateLimit caps API requests per second per tenant. Zero disables limiting.
	RateLimit float64

	// Burst is the API rate limiter burst size.
	Burst int

	// AuthCheckPath, when set, is fetched with the session credential
	// while opening an api session. A non-2xx status fails the open.
	AuthCheckPath string

	// TenantHeader carries the tenant id on every API request.
	TenantHeader string

	// Login runs after a UI session reaches the tenant base URL.
	Login LoginFunc

	Logger zerolog.Logger
	Clock  clock.Clock
}

// Driver opens sessions. It is safe for concurrent use.
type Driver struct {
	opts   Options
	engine *wait.Engine
	logger zerolog.Logger
	clock  clock.Clock
	http   *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Driver, filling unset options with defaults.
func New(opts Options) (*Driver, error) {
	if opts.Wait == (wait.Defaults{}) {
		opts.Wait = wait.DefaultDefaults()
	}
	if err := opts.Wait.Validate(); err != nil {
		return nil, err
	}
	if opts.APITimeout <= 0 {
		opts.APITimeout = constants.DefaultAPITimeout
	}
	if opts.TenantHeader == "" {
		opts.TenantHeader = constants.DefaultTenantHeader
	}
	if opts.Burst <= 0 {
		opts.Burst = constants.DefaultAPIBurst
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.APITimeout}
	}

	return &Driver{
		opts:     opts,
		engine:   wait.New(opts.Logger, opts.Clock),
		logger:   opts.Logger,
		clock:    clock.OrReal(opts.Clock),
		http:     httpClient,
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

// Engine returns the wait engine sessions use.
func (d *Driver) Engine() *wait.Engine {
	return d.engine
}

// WaitDefaults returns the configured wait timings.
func (d *Driver) WaitDefaults() wait.Defaults {
	return d.opts.Wait
}

// limiter returns the shared request limiter for a tenant.
func (d *Driver) limiter(tenantID string) *rate.Limiter {
	if d.opts.RateLimit <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(d.opts.RateLimit), d.opts.Burst)
		d.limiters[tenantID] = l
	}
	return l
}

type openConfig struct {
	role tenant.Role
	name string
}

// OpenOption customizes Open.
type OpenOption func(*openConfig)

// WithRole selects the credential role. The default is admin.
func WithRole(role tenant.Role) OpenOption {
	return func(c *openConfig) {
		if role != "" {
			c.role = role
		}
	}
}

// WithName sets the session name used in logs and reports.
func WithName(name string) OpenOption {
	return func(c *openConfig) { c.name = name }
}

// Open establishes a session for tn on capability. Every failure wraps
// ErrSessionStartFailure, and resources acquired before the failure are released.
func (d *Driver) Open(ctx context.Context, tn *tenant.Config, capability domain.Capability, opts ...OpenOption) (*Session, error) {
	cfg := openConfig{role: tenant.RoleAdmin}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.name == "" {
		cfg.name = capability.Label()
	}
	if tn == nil {
		return nil, fmt.Errorf("%w: %w: nil tenant", trellerrors.ErrSessionStartFailure, trellerrors.ErrInvalidTenant)
	}
	if err := capability.Validate(); err != nil {
		return nil, startFailure(cfg.name, tn.ID, err)
	}
	cred, err := tn.Credential(cfg.role)
	if err != nil {
		return nil, startFailure(cfg.name, tn.ID, err)
	}

	s := &Session{
		id:         uuid.NewString(),
		name:       cfg.name,
		tenant:     tn.Clone(),
		capability: capability.Clone(),
		role:       cfg.role,
		cred:       cred,
		driver:     d,
	}
	s.logger = d.logger.With().
		Str("session_id", s.id).
		Str("session", s.name).
		Str("tenant_id", tn.ID).
		Str("capability", capability.Label()).
		Logger()

	if capability.Kind.IsUI() {
		err = d.openUI(ctx, s)
	} else {
		err = d.openAPI(ctx, s)
	}
	if err != nil {
		return nil, startFailure(cfg.name, tn.ID, err)
	}

	s.openedAt = d.clock.Now()
	s.logger.Debug().Str("role", cfg.role.String()).Msg("session opened")
	return s, nil
}

func startFailure(name, tenantID string, err error) error {
	return fmt.Errorf("%w: session %q for tenant %q: %w", trellerrors.ErrSessionStartFailure, name, tenantID, err)
}

func (d *Driver) openUI(ctx context.Context, s *Session) error {
	if d.opts.Browser == nil {
		return fmt.Errorf("%w: no browser configured for %s sessions", trellerrors.ErrInvalidCapability, s.capability.Kind)
	}
	page, err := d.opts.Browser.NewPage(ctx, s.capability)
	if err != nil {
		return err
	}
	s.page = page

	fail := func(err error) error {
		if closeErr := page.Close(context.WithoutCancel(ctx)); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close page after start failure")
		}
		return err
	}

	if err := s.Navigate(ctx, "", s.OnTenantSite()); err != nil {
		return fail(err)
	}
	if d.opts.Login != nil {
		if err := d.opts.Login(ctx, s, s.cred); err != nil {
			return fail(fmt.Errorf("login as %s: %w", s.role, err))
		}
	}
	return nil
}

func (d *Driver) openAPI(ctx context.Context, s *Session) error {
	s.api = &apiClient{
		http:    d.http,
		limiter: d.limiter(s.tenant.ID),
		header:  d.opts.TenantHeader,
	}
	if d.opts.AuthCheckPath == "" {
		return nil
	}

	resp, err := s.Request(ctx, Request{Method: http.MethodGet, Path: d.opts.AuthCheckPath})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: auth check %s returned %d: %s", trellerrors.ErrAuthFailed,
			logging.SafeValue("url", s.tenant.APIURL(d.opts.AuthCheckPath)), resp.StatusCode, strings.TrimSpace(resp.snippet()))
	}
	return nil
}
