package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/tenant"
	"github.com/mrz1836/trellis/internal/wait"
)

// Session is a live, exclusively owned connection to one platform under one
// tenant. It is created by Driver.Open and must be closed with Close.
//
// The action surface is selected by Kind: UI actions on an api session, and
// Request on a UI session, return ErrUnsupportedAction.
type Session struct {
	id         string
	name       string
	tenant     *tenant.Config
	capability domain.Capability
	role       tenant.Role
	cred       tenant.Credential
	openedAt   time.Time

	driver *Driver
	logger zerolog.Logger

	page Page
	api  *apiClient

	mu     sync.Mutex
	closed bool
}

// ID returns the unique session identity.
func (s *Session) ID() string { return s.id }

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Kind returns the capability kind that selects the action surface.
func (s *Session) Kind() constants.CapabilityKind { return s.capability.Kind }

// TenantID returns the id of the tenant the session is bound to.
func (s *Session) TenantID() string { return s.tenant.ID }

// Tenant returns a copy of the tenant config.
func (s *Session) Tenant() *tenant.Config { return s.tenant.Clone() }

// Capability returns the session capability.
func (s *Session) Capability() domain.Capability { return s.capability.Clone() }

// Role returns the credential role the session uses.
func (s *Session) Role() tenant.Role { return s.role }

// Info describes the session for reports.
func (s *Session) Info() domain.SessionInfo {
	return domain.SessionInfo{
		ID:         s.id,
		Name:       s.name,
		TenantID:   s.tenant.ID,
		Capability: s.capability.Label(),
		Kind:       s.capability.Kind,
		Role:       s.role.String(),
		OpenedAt:   s.openedAt,
	}
}

// Close releases the session's resources. Calling it again is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.page != nil {
		if err := s.page.Close(ctx); err != nil {
			return fmt.Errorf("close session %q: %w", s.name, err)
		}
	}
	s.logger.Debug().Msg("session closed")
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) ensureOpen() error {
	if s.Closed() {
		return fmt.Errorf("%w: %q", trellerrors.ErrSessionClosed, s.name)
	}
	return nil
}

func (s *Session) requireUI(action string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if !s.capability.Kind.IsUI() {
		return fmt.Errorf("%w: %s on %s session %q", trellerrors.ErrUnsupportedAction, action, s.capability.Kind, s.name)
	}
	return nil
}

func (s *Session) requireAPI(action string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if s.capability.Kind != constants.CapabilityAPI {
		return fmt.Errorf("%w: %s on %s session %q", trellerrors.ErrUnsupportedAction, action, s.capability.Kind, s.name)
	}
	return nil
}

// Await waits for cond with the driver's default timing.
func (s *Session) Await(ctx context.Context, cond wait.Condition) error {
	return s.driver.engine.Await(ctx, s.driver.opts.Wait.Spec(cond)).Err()
}

// Hold confirms cond stays false for the driver's observation window.
func (s *Session) Hold(ctx context.Context, cond wait.Condition) error {
	return s.driver.engine.Hold(ctx, s.driver.opts.Wait.HoldSpec(cond)).Err()
}
