// Package orchestrator runs one scenario at a time: it resolves tenants,
// opens the sessions the scenario declares, produces its fixtures, runs its
// steps in order and always tears everything down again.
package orchestrator

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
	"github.com/mrz1836/trellis/internal/driver"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/fixture"
	"github.com/mrz1836/trellis/internal/tenant"
)

// Scenario is one end-to-end test case.
type Scenario struct {
	// ID uniquely identifies the scenario within a run.
	ID string

	Description string

	// TenantID is the primary tenant. Sessions use it unless they name another.
	TenantID string

	// Sessions are opened in declaration order during setup.
	Sessions []SessionRequest

	// Fixtures produce the artifacts the steps act on.
	Fixtures []Fixture

	// Steps run in declaration order; the first failure ends the scenario.
	Steps []Step

	// Timeout bounds setup and steps together. Zero means no bound.
	Timeout time.Duration

	Tags []string
}

// SessionRequest declares one session a scenario needs.
type SessionRequest struct {
	// Name is how steps refer to the session. Defaults to the capability label.
	Name string

	Capability domain.Capability

	// Role selects the tenant credential. Defaults to admin.
	Role tenant.Role

	// TenantID overrides the scenario tenant, for isolation checks that look
	// at one tenant's data from another tenant's session.
	TenantID string
}

// Fixture is a setup node whose producer can use the scenario's sessions.
type Fixture = fixture.Node[*Env]

// StepFunc performs one step.
type StepFunc func(ctx context.Context, env *Env) error

// Step is one ordered action or assertion of a scenario.
type Step struct {
	ID          string
	Description string
	Kind        constants.StepKind
	Run         StepFunc
}

// Env is what fixtures and steps of one scenario run see: the scenario
// tenant, the scenario's own sessions by name, and the artifacts produced
// so far. An Env is never shared between scenarios.
type Env struct {
	tenant    *tenant.Config
	sessions  map[string]*driver.Session
	order     []string
	artifacts fixture.Artifacts
}

func newEnv(tn *tenant.Config) *Env {
	return &Env{
		tenant:    tn,
		sessions:  make(map[string]*driver.Session),
		artifacts: make(fixture.Artifacts),
	}
}

// Tenant returns a copy of the scenario's primary tenant.
func (e *Env) Tenant() *tenant.Config {
	return e.tenant.Clone()
}

// Session returns the session declared under name.
func (e *Env) Session(name string) (*driver.Session, error) {
	s, ok := e.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", trellerrors.ErrSessionNotFound, name)
	}
	return s, nil
}

// Sessions returns the open sessions in the order they were opened.
func (e *Env) Sessions() []*driver.Session {
	out := make([]*driver.Session, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.sessions[name])
	}
	return out
}

// Artifact returns a fixture or step artifact.
func (e *Env) Artifact(id string) (fixture.Artifact, bool) {
	a, ok := e.artifacts[id]
	return a, ok
}

// Artifacts returns a copy of every artifact produced so far.
func (e *Env) Artifacts() fixture.Artifacts {
	return maps.Clone(e.artifacts)
}

// Put records a value produced by a step so later steps can refer to it.
// Fixture artifacts cannot be replaced.
func (e *Env) Put(id string, value fixture.Artifact) error {
	if _, ok := e.artifacts[id]; ok {
		return fmt.Errorf("%w: artifact %q", trellerrors.ErrDuplicateID, id)
	}
	e.artifacts[id] = value
	return nil
}

func (e *Env) addSession(name string, s *driver.Session) {
	e.sessions[name] = s
	e.order = append(e.order, name)
}
