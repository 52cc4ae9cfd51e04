package orchestrator_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
	"github.com/mrz1836/trellis/internal/driver"
	"github.com/mrz1836/trellis/internal/driver/drivertest"
	"github.com/mrz1836/trellis/internal/orchestrator"
	"github.com/mrz1836/trellis/internal/tenant"
	"github.com/mrz1836/trellis/internal/wait"
)

const projectName = "Test Project Automation"

var (
	webCap    = domain.Capability{Name: "desktop", Kind: constants.CapabilityWeb, Headless: true}
	mobileCap = domain.Capability{
		Name: "iphone", Kind: constants.CapabilityMobileWeb, Headless: true,
		Device: &domain.DeviceProfile{Name: "iPhone 14", Width: 390, Height: 844, Scale: 3, Touch: true},
	}
	apiCap = domain.Capability{Name: "api", Kind: constants.CapabilityAPI}
)

// harness wires an orchestrator to an in-memory browser and a project API.
// Creating a project through the API renders it on the tenant's web site
// after a short delay, the way a real dashboard catches up asynchronously.
type harness struct {
	browser *drivertest.Browser
	server  *httptest.Server
	orch    *orchestrator.Orchestrator

	creates atomic.Int32
	deletes atomic.Int32

	// leakTo, when set, also renders created projects on that host.
	leakTo string
}

func newHarness(t *testing.T, leakTo string) *harness {
	t.Helper()
	h := &harness{browser: drivertest.NewBrowser(), leakTo: leakTo}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /acme/projects", func(w http.ResponseWriter, r *http.Request) {
		h.creates.Add(1)
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		name, _ := body["name"].(string)
		h.browser.Site("acme.example.com").Show(".project-name", name, 30*time.Millisecond)
		if h.leakTo != "" {
			h.browser.Site(h.leakTo).Show(".project-name", name, 40*time.Millisecond)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": 123, "name": name}})
	})
	mux.HandleFunc("DELETE /acme/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "123" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.deletes.Add(1)
		h.browser.Site("acme.example.com").Remove(".project-name")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /acme/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "123" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":123,"name":"` + projectName + `"}`))
	})
	h.server = httptest.NewServer(mux)
	t.Cleanup(h.server.Close)

	registry, err := tenant.NewRegistry(
		newTenant("acme", h.server.URL),
		newTenant("globex", h.server.URL),
	)
	require.NoError(t, err)

	d, err := driver.New(driver.Options{
		Browser:    h.browser,
		HTTPClient: h.server.Client(),
		Wait:       wait.Defaults{Timeout: 500 * time.Millisecond, PollInterval: 5 * time.Millisecond, ObservationWindow: 150 * time.Millisecond},
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	h.orch, err = orchestrator.New(orchestrator.Options{
		Tenants:         registry,
		Sessions:        d,
		TeardownTimeout: 2 * time.Second,
		Logger:          zerolog.Nop(),
	})
	require.NoError(t, err)
	return h
}

func newTenant(id, apiServer string) *tenant.Config {
	return &tenant.Config{
		ID:         id,
		BaseURLWeb: "https://" + id + ".example.com",
		BaseURLAPI: apiServer + "/" + id,
		Credentials: map[tenant.Role]tenant.Credential{
			tenant.RoleAdmin:    {Username: id + "-admin", Password: id + "-admin-pw"},
			tenant.RoleEmployee: {Username: id + "-employee", Password: id + "-employee-pw"},
		},
	}
}

// projectFixture creates the project over the API and deletes it on teardown.
func projectFixture() orchestrator.Fixture {
	return orchestrator.RequestFixture("project", "api",
		orchestrator.RequestSpec{
			Method:       http.MethodPost,
			Path:         orchestrator.Literal("/projects"),
			Body:         map[string]any{"name": projectName},
			ExpectStatus: http.StatusCreated,
		},
		&orchestrator.RequestSpec{
			Method:       http.MethodDelete,
			Path:         orchestrator.Template("/projects/${project.data.id}"),
			ExpectStatus: http.StatusNoContent,
		},
	)
}

func states(result domain.ScenarioResult) []constants.ScenarioState {
	out := make([]constants.ScenarioState, 0, len(result.Transitions))
	for _, tr := range result.Transitions {
		out = append(out, tr.To)
	}
	return out
}
