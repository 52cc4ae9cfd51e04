package orchestrator

import (
	"fmt"
	"slices"
	"strings"

	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/fixture"
	"github.com/mrz1836/trellis/internal/tenant"
)

// Plan is a validated scenario with its fixture graph built. Plans are
// compiled when suites load, so structural errors such as a fixture cycle
// stop the run before any scenario executes.
type Plan struct {
	scenario Scenario
	graph    *fixture.Graph[*Env]
}

// Compile validates sc and builds its fixture graph.
func Compile(sc Scenario) (*Plan, error) {
	if sc.ID == "" {
		return nil, fmt.Errorf("%w: scenario id: %w", trellerrors.ErrInvalidScenario, trellerrors.ErrEmptyValue)
	}
	if sc.TenantID == "" {
		return nil, fmt.Errorf("%w: scenario %q: tenant: %w", trellerrors.ErrInvalidScenario, sc.ID, trellerrors.ErrEmptyValue)
	}
	if len(sc.Sessions) == 0 {
		return nil, fmt.Errorf("%w: scenario %q declares no sessions", trellerrors.ErrInvalidScenario, sc.ID)
	}
	if sc.Timeout < 0 {
		return nil, fmt.Errorf("%w: scenario %q: negative timeout %s", trellerrors.ErrInvalidScenario, sc.ID, sc.Timeout)
	}

	sc.Sessions = slices.Clone(sc.Sessions)
	names := make(map[string]bool, len(sc.Sessions))
	for i := range sc.Sessions {
		req := &sc.Sessions[i]
		if err := req.Capability.Validate(); err != nil {
			return nil, trellerrors.Wrapf(err, "scenario %q session %d", sc.ID, i)
		}
		if req.Name == "" {
			req.Name = req.Capability.Label()
		}
		if req.Role == "" {
			req.Role = tenant.RoleAdmin
		}
		if !slices.Contains(tenant.ValidRoles(), req.Role) {
			return nil, fmt.Errorf("%w: scenario %q session %q: unknown role %q", trellerrors.ErrInvalidScenario, sc.ID, req.Name, req.Role)
		}
		if names[req.Name] {
			return nil, fmt.Errorf("%w: scenario %q session %q", trellerrors.ErrDuplicateID, sc.ID, req.Name)
		}
		names[req.Name] = true
	}

	steps := make(map[string]bool, len(sc.Steps))
	for i, st := range sc.Steps {
		if st.ID == "" {
			return nil, fmt.Errorf("%w: scenario %q step %d: id: %w", trellerrors.ErrInvalidScenario, sc.ID, i, trellerrors.ErrEmptyValue)
		}
		if st.Run == nil {
			return nil, fmt.Errorf("%w: scenario %q step %q has no action", trellerrors.ErrInvalidScenario, sc.ID, st.ID)
		}
		if steps[st.ID] {
			return nil, fmt.Errorf("%w: scenario %q step %q", trellerrors.ErrDuplicateID, sc.ID, st.ID)
		}
		steps[st.ID] = true
	}

	graph, err := fixture.Build(sc.Fixtures...)
	if err != nil {
		return nil, trellerrors.Wrapf(err, "scenario %q", sc.ID)
	}

	sc.Steps = slices.Clone(sc.Steps)
	sc.Tags = slices.Clone(sc.Tags)
	return &Plan{scenario: sc, graph: graph}, nil
}

// MustCompile is like Compile but panics on error. It is meant for
// scenarios declared in Go code.
func MustCompile(sc Scenario) *Plan {
	p, err := Compile(sc)
	if err != nil {
		panic(err)
	}
	return p
}

// ID returns the scenario id.
func (p *Plan) ID() string {
	return p.scenario.ID
}

// TenantID returns the scenario's primary tenant.
func (p *Plan) TenantID() string {
	return p.scenario.TenantID
}

// Description returns the scenario description.
func (p *Plan) Description() string {
	return p.scenario.Description
}

// Tags returns the scenario tags.
func (p *Plan) Tags() []string {
	return slices.Clone(p.scenario.Tags)
}

// Sessions returns the session requests with defaults applied.
func (p *Plan) Sessions() []SessionRequest {
	return slices.Clone(p.scenario.Sessions)
}

// Steps returns the step ids in order.
func (p *Plan) Steps() []string {
	ids := make([]string, len(p.scenario.Steps))
	for i, st := range p.scenario.Steps {
		ids[i] = st.ID
	}
	return ids
}

// FixtureOrder returns the fixture setup order.
func (p *Plan) FixtureOrder() []string {
	return p.graph.Order()
}

// TenantIDs returns every tenant the scenario opens sessions for, sorted.
func (p *Plan) TenantIDs() []string {
	ids := []string{p.scenario.TenantID}
	for _, req := range p.scenario.Sessions {
		if req.TenantID != "" {
			ids = append(ids, req.TenantID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Capabilities returns the capability labels of the scenario's sessions in
// declaration order, without duplicates.
func (p *Plan) Capabilities() []string {
	var labels []string
	for _, req := range p.scenario.Sessions {
		label := req.Capability.Label()
		if !slices.Contains(labels, label) {
			labels = append(labels, label)
		}
	}
	return labels
}

// CapabilityKey identifies the scenario's capability set independent of
// declaration order.
func (p *Plan) CapabilityKey() string {
	labels := p.Capabilities()
	slices.Sort(labels)
	return strings.Join(labels, "+")
}
