package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/fixture"
	"github.com/mrz1836/trellis/internal/orchestrator"
	"github.com/mrz1836/trellis/internal/tenant"
)

func noop(context.Context, *orchestrator.Env) error { return nil }

func produce(context.Context, *orchestrator.Env, fixture.Artifacts) (fixture.Artifact, error) {
	return "ok", nil
}

func validScenario() orchestrator.Scenario {
	return orchestrator.Scenario{
		ID:       "s1",
		TenantID: "acme",
		Sessions: []orchestrator.SessionRequest{{Capability: webCap}, {Capability: apiCap, TenantID: "globex"}},
		Steps:    []orchestrator.Step{orchestrator.Custom("one", "", noop)},
	}
}

func TestCompile_AppliesSessionDefaults(t *testing.T) {
	plan, err := orchestrator.Compile(validScenario())
	require.NoError(t, err)

	sessions := plan.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "desktop", sessions[0].Name)
	assert.Equal(t, tenant.RoleAdmin, sessions[0].Role)
	assert.Equal(t, []string{"acme", "globex"}, plan.TenantIDs())
	assert.Equal(t, []string{"one"}, plan.Steps())
	assert.Equal(t, "s1", plan.ID())
}

func TestCompile_DoesNotAliasCallerSlices(t *testing.T) {
	sc := validScenario()
	plan, err := orchestrator.Compile(sc)
	require.NoError(t, err)

	sc.Sessions[0].Name = "changed"
	sc.Steps[0].ID = "changed"

	assert.Equal(t, "desktop", plan.Sessions()[0].Name)
	assert.Equal(t, []string{"one"}, plan.Steps())
}

func TestCompile_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*orchestrator.Scenario)
		want   error
	}{
		{"empty id", func(s *orchestrator.Scenario) { s.ID = "" }, trellerrors.ErrInvalidScenario},
		{"empty tenant", func(s *orchestrator.Scenario) { s.TenantID = "" }, trellerrors.ErrInvalidScenario},
		{"no sessions", func(s *orchestrator.Scenario) { s.Sessions = nil }, trellerrors.ErrInvalidScenario},
		{"negative timeout", func(s *orchestrator.Scenario) { s.Timeout = -1 }, trellerrors.ErrInvalidScenario},
		{"invalid capability", func(s *orchestrator.Scenario) {
			s.Sessions[0].Capability = domain.Capability{Kind: "desktop-app"}
		}, trellerrors.ErrInvalidCapability},
		{"unknown role", func(s *orchestrator.Scenario) { s.Sessions[0].Role = "owner" }, trellerrors.ErrInvalidScenario},
		{"duplicate session", func(s *orchestrator.Scenario) {
			s.Sessions = append(s.Sessions, orchestrator.SessionRequest{Capability: webCap})
		}, trellerrors.ErrDuplicateID},
		{"empty step id", func(s *orchestrator.Scenario) { s.Steps[0].ID = "" }, trellerrors.ErrInvalidScenario},
		{"step without action", func(s *orchestrator.Scenario) { s.Steps[0].Run = nil }, trellerrors.ErrInvalidScenario},
		{"duplicate step", func(s *orchestrator.Scenario) {
			s.Steps = append(s.Steps, orchestrator.Custom("one", "", noop))
		}, trellerrors.ErrDuplicateID},
		{"fixture cycle", func(s *orchestrator.Scenario) {
			s.Fixtures = []orchestrator.Fixture{
				{ID: "a", DependsOn: []string{"b"}, Produce: produce},
				{ID: "b", DependsOn: []string{"a"}, Produce: produce},
			}
		}, trellerrors.ErrCyclicDependency},
		{"unknown fixture dependency", func(s *orchestrator.Scenario) {
			s.Fixtures = []orchestrator.Fixture{{ID: "a", DependsOn: []string{"ghost"}, Produce: produce}}
		}, trellerrors.ErrUnknownDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := validScenario()
			tt.mutate(&sc)
			_, err := orchestrator.Compile(sc)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() { orchestrator.MustCompile(orchestrator.Scenario{}) })
}

func TestPlan_CapabilityKeyIgnoresOrder(t *testing.T) {
	a := orchestrator.MustCompile(orchestrator.Scenario{
		ID: "a", TenantID: "acme",
		Sessions: []orchestrator.SessionRequest{{Capability: webCap}, {Capability: apiCap}},
	})
	b := orchestrator.MustCompile(orchestrator.Scenario{
		ID: "b", TenantID: "acme",
		Sessions: []orchestrator.SessionRequest{{Capability: apiCap}, {Capability: webCap}, {Name: "second-web", Capability: webCap}},
	})

	assert.Equal(t, "api+desktop", a.CapabilityKey())
	assert.Equal(t, a.CapabilityKey(), b.CapabilityKey())
	assert.Equal(t, []string{"api", "desktop"}, b.Capabilities())
}

func TestPlan_FixtureOrder(t *testing.T) {
	sc := validScenario()
	sc.Fixtures = []orchestrator.Fixture{
		{ID: "membership", DependsOn: []string{"project"}, Produce: produce},
		{ID: "project", Produce: produce},
	}
	plan, err := orchestrator.Compile(sc)
	require.NoError(t, err)
	assert.Equal(t, []string{"project", "membership"}, plan.FixtureOrder())
}

func TestBuiltinSteps_Kinds(t *testing.T) {
	assert.Equal(t, constants.StepKindIsolation, orchestrator.AssertNotVisible("x", "web", ".p", orchestrator.Literal("p")).Kind)
	assert.Equal(t, constants.StepKindAssertion, orchestrator.AssertVisible("x", "web", ".p").Kind)
	assert.Equal(t, constants.StepKindAction, orchestrator.Navigate("x", "web", orchestrator.Literal("/")).Kind)
}
