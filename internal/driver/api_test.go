package driver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/trellis/internal/driver"
	"github.com/mrz1836/trellis/internal/driver/drivertest"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/tenant"
)

// projectAPI is a minimal tenant-scoped API: POST /acme/projects creates a
// project, GET /acme/projects/{id} reads it, GET /acme/me checks auth.
func projectAPI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /acme/me", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "acme-admin" || pass != "acme-admin-pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"user":"acme-admin"}`))
	})
	mux.HandleFunc("POST /acme/projects", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("X-Tenant-ID") != "acme" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": 123, "name": body["name"]}})
	})
	mux.HandleFunc("GET /acme/jobs/7", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"state":"running"}`))
			return
		}
		_, _ = w.Write([]byte(`{"state":"done"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func openAPI(t *testing.T, srv *httptest.Server, opts driver.Options, openOpts ...driver.OpenOption) (*driver.Session, error) {
	t.Helper()
	opts.HTTPClient = srv.Client()
	d := newDriver(t, opts)
	return d.Open(context.Background(), newTenant("acme", srv.URL+"/acme"), apiCap, openOpts...)
}

func TestRequest_SendsCredentialTenantHeaderAndJSON(t *testing.T) {
	t.Parallel()

	srv, _ := projectAPI(t)
	s, err := openAPI(t, srv, driver.Options{})
	require.NoError(t, err)

	resp, err := s.Request(context.Background(), driver.Request{
		Method: http.MethodPost,
		Path:   "/projects",
		Body:   map[string]string{"name": "Test Project Automation"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, resp.OK())

	id, err := resp.Field("data.id")
	require.NoError(t, err)
	assert.Equal(t, json.Number("123"), id)

	var decoded struct {
		Data struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, resp.JSON(&decoded))
	assert.Equal(t, "Test Project Automation", decoded.Data.Name)

	_, err = resp.Field("data.missing")
	require.Error(t, err)
}

func TestOpen_APIAuthCheck(t *testing.T) {
	t.Parallel()

	srv, _ := projectAPI(t)

	s, err := openAPI(t, srv, driver.Options{AuthCheckPath: "/me"})
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))

	_, err = openAPI(t, srv, driver.Options{AuthCheckPath: "/me"}, driver.WithRole(tenant.RoleEmployee))
	require.ErrorIs(t, err, trellerrors.ErrSessionStartFailure)
	require.ErrorIs(t, err, trellerrors.ErrAuthFailed)
	assert.Contains(t, err.Error(), "401")
	assert.NotContains(t, err.Error(), "acme-employee-pw")
}

func TestOpen_APIUnreachable(t *testing.T) {
	t.Parallel()

	srv, _ := projectAPI(t)
	srv.Close()

	_, err := openAPI(t, srv, driver.Options{AuthCheckPath: "/me"})
	require.ErrorIs(t, err, trellerrors.ErrSessionStartFailure)
	require.ErrorIs(t, err, trellerrors.ErrRequestFailed)
}

func TestRequestUntil(t *testing.T) {
	t.Parallel()

	srv, calls := projectAPI(t)
	s, err := openAPI(t, srv, driver.Options{})
	require.NoError(t, err)

	done := func(r *driver.Response) bool {
		state, err := r.Field("state")
		return err == nil && state == "done"
	}
	resp, err := s.RequestUntil(context.Background(), driver.Request{Path: "/jobs/7"}, "job 7 done", done)
	require.NoError(t, err)
	assert.True(t, done(resp))
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestRequestUntil_TimesOutWithLastResponse(t *testing.T) {
	t.Parallel()

	srv, _ := projectAPI(t)
	s, err := openAPI(t, srv, driver.Options{})
	require.NoError(t, err)

	resp, err := s.RequestUntil(context.Background(), driver.Request{Path: "/me"}, "status 204", driver.StatusIs(http.StatusNoContent))
	require.ErrorIs(t, err, trellerrors.ErrTimeoutFailure)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequest_RateLimitedPerTenant(t *testing.T) {
	t.Parallel()

	srv, _ := projectAPI(t)
	s, err := openAPI(t, srv, driver.Options{RateLimit: 20, Burst: 1})
	require.NoError(t, err)

	start := time.Now()
	for range 4 {
		_, err := s.Request(context.Background(), driver.Request{Path: "/me"})
		require.NoError(t, err)
	}
	// One request is free from the burst; the other three wait 50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestRequest_UnsupportedOnUISessionAndClosed(t *testing.T) {
	t.Parallel()

	s := openWeb(t, drivertest.NewBrowser(), "acme")
	_, err := s.Request(context.Background(), driver.Request{Path: "/me"})
	require.ErrorIs(t, err, trellerrors.ErrUnsupportedAction)

	srv, _ := projectAPI(t)
	api, err := openAPI(t, srv, driver.Options{})
	require.NoError(t, err)
	require.NoError(t, api.Close(context.Background()))
	_, err = api.Request(context.Background(), driver.Request{Path: "/me"})
	require.ErrorIs(t, err, trellerrors.ErrSessionClosed)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	doc := map[string]any{"items": []any{map[string]any{"id": "a"}, map[string]any{"id": "b"}}}

	v, err := driver.Lookup(doc, "items.1.id")
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	_, err = driver.Lookup(doc, "items.5.id")
	require.ErrorIs(t, err, trellerrors.ErrValueOutOfRange)

	_, err = driver.Lookup(doc, "items.0.id.x")
	require.ErrorIs(t, err, trellerrors.ErrValueOutOfRange)

	whole, err := driver.Lookup(doc, "")
	require.NoError(t, err)
	assert.Equal(t, doc, whole)
}
