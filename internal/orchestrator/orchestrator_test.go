package orchestrator_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/driver/drivertest"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/fixture"
	"github.com/mrz1836/trellis/internal/orchestrator"
	"github.com/mrz1836/trellis/internal/tenant"
	"github.com/mrz1836/trellis/internal/testutil"
)

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := orchestrator.New(orchestrator.Options{})
	require.ErrorIs(t, err, trellerrors.ErrEmptyValue)
}

func TestRun_ProjectCreatedViaAPIIsVisibleInUI(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	plan := orchestrator.MustCompile(orchestrator.Scenario{
		ID:       "project-visible-in-ui",
		TenantID: "acme",
		Sessions: []orchestrator.SessionRequest{
			{Name: "api", Capability: apiCap},
			{Name: "web", Capability: webCap},
		},
		Fixtures: []orchestrator.Fixture{projectFixture()},
		Steps: []orchestrator.Step{
			orchestrator.AssertText("see-project", "web", ".project-name", orchestrator.ArtifactField("project", "data.name")),
		},
	})

	result := h.orch.Run(context.Background(), plan)

	assert.Equal(t, constants.OutcomePassed, result.Outcome, result.Message)
	assert.Empty(t, result.FailedStep)
	assert.Equal(t, []constants.ScenarioState{
		constants.ScenarioStateSettingUp,
		constants.ScenarioStateRunning,
		constants.ScenarioStateTearingDown,
		constants.ScenarioStatePassed,
	}, states(result))
	require.Contains(t, result.Artifacts, "project")
	assert.Len(t, result.Sessions, 2)
	assert.Equal(t, []string{"api", "desktop"}, result.Capabilities)
	assert.Equal(t, int32(1), h.creates.Load())
	assert.Equal(t, int32(1), h.deletes.Load(), "fixture teardown must delete the project")
	assert.Zero(t, h.browser.OpenPages(), "sessions must be closed")
	assert.Empty(t, result.TeardownErrors)
	assert.False(t, result.CompletedAt.Before(result.StartedAt))
}

func isolationPlan() *orchestrator.Plan {
	return orchestrator.MustCompile(orchestrator.Scenario{
		ID:       "project-isolated-from-globex",
		TenantID: "acme",
		Sessions: []orchestrator.SessionRequest{
			{Name: "api", Capability: apiCap},
			{Name: "web", Capability: webCap},
			{Name: "globex-web", Capability: webCap, TenantID: "globex"},
		},
		Fixtures: []orchestrator.Fixture{projectFixture()},
		Steps: []orchestrator.Step{
			orchestrator.AssertText("see-project", "web", ".project-name", orchestrator.Literal(projectName)),
			orchestrator.AssertNotVisible("isolation", "globex-web", ".project-name", orchestrator.Template("${project.data.name}")),
		},
	})
}

func TestRun_IsolationHoldsForOtherTenant(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	result := h.orch.Run(context.Background(), isolationPlan())

	assert.Equal(t, constants.OutcomePassed, result.Outcome, result.Message)
	require.Len(t, result.Sessions, 3)
	assert.Equal(t, "globex", result.Sessions[2].TenantID)
	assert.Equal(t, int32(1), h.deletes.Load())
}

func TestRun_IsolationViolationFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "globex.example.com")

	result := h.orch.Run(context.Background(), isolationPlan())

	assert.Equal(t, constants.OutcomeFailed, result.Outcome)
	assert.Equal(t, "isolation", result.FailedStep)
	assert.Contains(t, result.Message, trellerrors.ErrIsolationViolation.Error())
	assert.Contains(t, result.Condition, projectName)
	assert.Equal(t, int32(1), h.deletes.Load(), "teardown must run after a failed assertion")
	assert.Zero(t, h.browser.OpenPages())
}

func TestRun_SessionsAreNeverShared(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.browser.Site("acme.example.com").Show("#dashboard", "Dashboard", 0)

	scenario := func(id string, capability orchestrator.SessionRequest) *orchestrator.Plan {
		return orchestrator.MustCompile(orchestrator.Scenario{
			ID:       id,
			TenantID: "acme",
			Sessions: []orchestrator.SessionRequest{capability},
			Steps:    []orchestrator.Step{orchestrator.AssertVisible("dashboard", capability.Name, "#dashboard")},
		})
	}
	web := h.orch.Run(context.Background(), scenario("dashboard-web", orchestrator.SessionRequest{Name: "ui", Capability: webCap}))
	mobile := h.orch.Run(context.Background(), scenario("dashboard-mobile", orchestrator.SessionRequest{Name: "ui", Capability: mobileCap}))

	require.Equal(t, constants.OutcomePassed, web.Outcome, web.Message)
	require.Equal(t, constants.OutcomePassed, mobile.Outcome, mobile.Message)
	require.Len(t, web.Sessions, 1)
	require.Len(t, mobile.Sessions, 1)
	assert.NotEqual(t, web.Sessions[0].ID, mobile.Sessions[0].ID)
	assert.Equal(t, constants.CapabilityMobileWeb, mobile.Sessions[0].Kind)
	assert.Len(t, h.browser.Pages(), 2)
}

func TestRun_SessionStartFailureIsErroredAndClosesOpenedSessions(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	var ran atomic.Bool

	plan := orchestrator.MustCompile(orchestrator.Scenario{
		ID:       "manager-api",
		TenantID: "acme",
		Sessions: []orchestrator.SessionRequest{
			{Name: "web", Capability: webCap},
			{Name: "api-manager", Capability: apiCap, Role: tenant.RoleManager},
		},
		Steps: []orchestrator.Step{
			orchestrator.Custom("never", "must not run", func(context.Context, *orchestrator.Env) error {
				ran.Store(true)
				return nil
			}),
		},
	})

	result := h.orch.Run(context.Background(), plan)

	assert.Equal(t, constants.OutcomeErrored, result.Outcome)
	assert.Equal(t, "api-manager", result.FailedStep)
	assert.Contains(t, result.Message, trellerrors.ErrSessionStartFailure.Error())
	assert.False(t, ran.Load())
	require.Len(t, h.browser.Pages(), 1)
	assert.True(t, h.browser.Pages()[0].Closed(), "partially opened session must be closed")
	assert.Equal(t, []constants.ScenarioState{
		constants.ScenarioStateSettingUp,
		constants.ScenarioStateTearingDown,
		constants.ScenarioStateErrored,
	}, states(result))
}

func TestRun_UnknownTenantIsErrored(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	result := h.orch.Run(context.Background(), orchestrator.MustCompile(orchestrator.Scenario{
		ID:       "nobody",
		TenantID: "initech",
		Sessions: []orchestrator.SessionRequest{{Capability: apiCap}},
	}))

	assert.Equal(t, constants.OutcomeErrored, result.Outcome)
	assert.Contains(t, result.Message, trellerrors.ErrUnknownTenant.Error())
	assert.Empty(t, h.browser.Pages())
}

func TestRun_FixtureFailureIsErroredAndTearsDownCompletedFixtures(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	broken := orchestrator.Fixture{
		ID:        "membership",
		DependsOn: []string{"project"},
		Produce: func(context.Context, *orchestrator.Env, fixture.Artifacts) (fixture.Artifact, error) {
			return nil, testutil.ErrMockUnavailable
		},
	}
	result := h.orch.Run(context.Background(), orchestrator.MustCompile(orchestrator.Scenario{
		ID:       "membership",
		TenantID: "acme",
		Sessions: []orchestrator.SessionRequest{{Name: "api", Capability: apiCap}},
		Fixtures: []orchestrator.Fixture{broken, projectFixture()},
	}))

	assert.Equal(t, constants.OutcomeErrored, result.Outcome)
	assert.Equal(t, "membership", result.FailedStep)
	assert.Contains(t, result.Message, "members endpoint unavailable")
	assert.Contains(t, result.Artifacts, "project")
	assert.Equal(t, int32(1), h.deletes.Load())
}

func TestRun_TimeoutFailsAndShortCircuits(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	var ran atomic.Bool

	result := h.orch.Run(context.Background(), orchestrator.MustCompile(orchestrator.Scenario{
		ID:       "missing-banner",
		TenantID: "acme",
		Sessions: []orchestrator.SessionRequest{{Name: "web", Capability: webCap}},
		Steps: []orchestrator.Step{
			orchestrator.AssertVisible("banner", "web", ".banner"),
			orchestrator.Custom("after", "must not run", func(context.Context, *orchestrator.Env) error {
				ran.Store(true)
				return nil
			}),
		},
	}))

	assert.Equal(t, constants.OutcomeFailed, result.Outcome)
	assert.Equal(t, "banner", result.FailedStep)
	assert.Contains(t, result.Condition, ".banner")
	assert.GreaterOrEqual(t, result.WaitElapsedMs, int64(400))
	assert.False(t, ran.Load())
	assert.Zero(t, h.browser.OpenPages())
}

func TestRun_FrameworkErrorsAreErrored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		step orchestrator.Step
	}{
		{
			name: "plain error",
			step: orchestrator.Custom("boom", "", func(context.Context, *orchestrator.Env) error {
				return errors.New("boom")
			}),
		},
		{
			name: "panic",
			step: orchestrator.Custom("boom", "", func(context.Context, *orchestrator.Env) error {
				panic("nil map")
			}),
		},
		{
			name: "unsupported action",
			step: orchestrator.Click("boom", "api", "#save"),
		},
		{
			name: "unknown session",
			step: orchestrator.AssertVisible("boom", "mobile", "#save"),
		},
		{
			name: "unknown artifact",
			step: orchestrator.AssertText("boom", "api", "#name", orchestrator.Template("${missing.name}")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, "")
			result := h.orch.Run(context.Background(), orchestrator.MustCompile(orchestrator.Scenario{
				ID:       "errored",
				TenantID: "acme",
				Sessions: []orchestrator.SessionRequest{{Name: "api", Capability: apiCap}},
				Steps:    []orchestrator.Step{tt.step},
			}))
			assert.Equal(t, constants.OutcomeErrored, result.Outcome, result.Message)
			assert.Equal(t, "boom", result.FailedStep)
		})
	}
}

func TestRun_AssertionFailureFromRequestStep(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	result := h.orch.Run(context.Background(), orchestrator.MustCompile(orchestrator.Scenario{
		ID:       "missing-project",
		TenantID: "acme",
		Sessions: []orchestrator.SessionRequest{{Name: "api", Capability: apiCap}},
		Steps: []orchestrator.Step{
			orchestrator.Request("get", "api", orchestrator.RequestSpec{Path: orchestrator.Literal("/projects/999")}),
		},
	}))

	assert.Equal(t, constants.OutcomeFailed, result.Outcome)
	assert.Contains(t, result.Message, "404")
}

func TestRun_RequestStepSavesArtifact(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	var seen string

	result := h.orch.Run(context.Background(), orchestrator.MustCompile(orchestrator.Scenario{
		ID:       "read-project",
		TenantID: "acme",
		Sessions: []orchestrator.SessionRequest{{Name: "api", Capability: apiCap}},
		Steps: []orchestrator.Step{
			orchestrator.Request("get", "api", orchestrator.RequestSpec{
				Path:         orchestrator.Literal("/projects/123"),
				ExpectStatus: http.StatusOK,
				SaveAs:       "fetched",
			}),
			orchestrator.Custom("check", "", func(_ context.Context, env *orchestrator.Env) error {
				var err error
				seen, err = orchestrator.ArtifactField("fetched", "id").Resolve(env.Artifacts())
				return err
			}),
		},
	}))

	require.Equal(t, constants.OutcomePassed, result.Outcome, result.Message)
	assert.Equal(t, "123", seen)
	assert.Contains(t, result.Artifacts, "fetched")
}

func TestRun_SkippedWhenContextAlreadyDone(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := h.orch.Run(ctx, isolationPlan())

	assert.Equal(t, constants.OutcomeSkipped, result.Outcome)
	assert.Equal(t, []constants.ScenarioState{constants.ScenarioStateSkipped}, states(result))
	assert.Empty(t, h.browser.Pages())
	assert.Zero(t, h.creates.Load())
}

func TestRun_CancellationDuringWaitTearsDown(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	plan := orchestrator.MustCompile(orchestrator.Scenario{
		ID:       "interrupted",
		TenantID: "acme",
		Sessions: []orchestrator.SessionRequest{
			{Name: "api", Capability: apiCap},
			{Name: "web", Capability: webCap},
		},
		Fixtures: []orchestrator.Fixture{projectFixture()},
		Steps: []orchestrator.Step{
			orchestrator.Custom("interrupt", "", func(context.Context, *orchestrator.Env) error {
				time.AfterFunc(20*time.Millisecond, cancel)
				return nil
			}),
			orchestrator.AssertVisible("never-rendered", "web", ".banner"),
		},
	})

	start := time.Now()
	result := h.orch.Run(ctx, plan)

	assert.Less(t, time.Since(start), 400*time.Millisecond, "wait must stop when the scenario is cancelled")
	assert.Equal(t, constants.OutcomeErrored, result.Outcome)
	assert.Equal(t, "never-rendered", result.FailedStep)
	assert.Contains(t, result.Message, trellerrors.ErrWaitCancelled.Error())
	assert.Equal(t, int32(1), h.deletes.Load(), "teardown runs on a detached context")
	assert.Zero(t, h.browser.OpenPages())
}

func TestRun_ScenarioTimeoutFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	result := h.orch.Run(context.Background(), orchestrator.MustCompile(orchestrator.Scenario{
		ID:       "slow",
		TenantID: "acme",
		Timeout:  50 * time.Millisecond,
		Sessions: []orchestrator.SessionRequest{{Name: "web", Capability: webCap}},
		Steps:    []orchestrator.Step{orchestrator.AssertVisible("banner", "web", ".banner")},
	}))

	assert.Equal(t, constants.OutcomeFailed, result.Outcome)
	assert.Contains(t, result.Message, "scenario exceeded")
	assert.Less(t, result.DurationMs, int64(400))
}

func TestRun_TeardownErrorsDoNotChangeOutcome(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.browser.Site("acme.example.com").Show("#dashboard", "Dashboard", 0)
	h.browser.FailClose(testutil.ErrMockTargetCrashed)

	result := h.orch.Run(context.Background(), orchestrator.MustCompile(orchestrator.Scenario{
		ID:       "dashboard",
		TenantID: "acme",
		Sessions: []orchestrator.SessionRequest{{Name: "web", Capability: webCap}},
		Steps:    []orchestrator.Step{orchestrator.AssertVisible("dashboard", "web", "#dashboard")},
	}))

	assert.Equal(t, constants.OutcomePassed, result.Outcome)
	require.Len(t, result.TeardownErrors, 1)
	assert.Contains(t, result.TeardownErrors[0], "target crashed")
}

func TestRun_UIFlowFillAndClick(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	site := h.browser.Site("acme.example.com")
	site.Show("#name", "", 0).Show("#save", "Save", 0)
	site.OnClick("#save", func(s *drivertest.Site) string {
		s.Show(".toast", "Saved "+s.Value("#name"), 10*time.Millisecond)
		return ""
	})

	result := h.orch.Run(context.Background(), orchestrator.MustCompile(orchestrator.Scenario{
		ID:       "rename",
		TenantID: "acme",
		Sessions: []orchestrator.SessionRequest{{Name: "web", Capability: webCap}},
		Steps: []orchestrator.Step{
			orchestrator.Navigate("open-settings", "web", orchestrator.Literal("/settings")),
			orchestrator.Fill("type-name", "web", "#name", orchestrator.Literal("Renamed")),
			orchestrator.Click("save", "web", "#save", ".toast"),
			orchestrator.AssertText("toast", "web", ".toast", orchestrator.Literal("Saved Renamed")),
		},
	}))

	assert.Equal(t, constants.OutcomePassed, result.Outcome, result.Message)
}
