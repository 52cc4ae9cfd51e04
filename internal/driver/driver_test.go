package driver_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
	"github.com/mrz1836/trellis/internal/driver"
	"github.com/mrz1836/trellis/internal/driver/drivertest"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/tenant"
	"github.com/mrz1836/trellis/internal/testutil"
	"github.com/mrz1836/trellis/internal/wait"
)

var (
	webCap    = domain.Capability{Name: "desktop", Kind: constants.CapabilityWeb, Headless: true}
	mobileCap = domain.Capability{
		Name: "iphone", Kind: constants.CapabilityMobileWeb, Headless: true,
		Device: &domain.DeviceProfile{Name: "iPhone 14", Width: 390, Height: 844, Scale: 3, Touch: true},
	}
	apiCap = domain.Capability{Name: "api", Kind: constants.CapabilityAPI}
)

func fastWait() wait.Defaults {
	return wait.Defaults{Timeout: 500 * time.Millisecond, PollInterval: 5 * time.Millisecond, ObservationWindow: 100 * time.Millisecond}
}

func newTenant(id, apiBase string) *tenant.Config {
	if apiBase == "" {
		apiBase = "https://api.example.com/" + id
	}
	return &tenant.Config{
		ID:         id,
		BaseURLWeb: "https://" + id + ".example.com",
		BaseURLAPI: apiBase,
		Credentials: map[tenant.Role]tenant.Credential{
			tenant.RoleAdmin:    {Username: id + "-admin", Password: id + "-admin-pw"},
			tenant.RoleEmployee: {Username: id + "-employee", Password: id + "-employee-pw"},
		},
	}
}

func newDriver(t *testing.T, opts driver.Options) *driver.Driver {
	t.Helper()
	if opts.Wait == (wait.Defaults{}) {
		opts.Wait = fastWait()
	}
	opts.Logger = zerolog.Nop()
	d, err := driver.New(opts)
	require.NoError(t, err)
	return d
}

func TestNew_RejectsInvalidWaitDefaults(t *testing.T) {
	t.Parallel()

	_, err := driver.New(driver.Options{Wait: wait.Defaults{Timeout: time.Second, PollInterval: 2 * time.Second, ObservationWindow: time.Second}})
	require.ErrorIs(t, err, trellerrors.ErrInvalidWaitSpec)
}

func TestOpen_WebSessionNavigatesToTenantBaseURL(t *testing.T) {
	t.Parallel()

	browser := drivertest.NewBrowser()
	browser.Site("acme.example.com").NavigateDelay(20 * time.Millisecond)
	d := newDriver(t, driver.Options{Browser: browser})
	ctx := context.Background()

	s, err := d.Open(ctx, newTenant("acme", ""), webCap, driver.WithName("admin-web"))
	require.NoError(t, err)
	defer func() { _ = s.Close(ctx) }()

	loc, err := s.Location(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://acme.example.com", loc)
	assert.Equal(t, constants.CapabilityWeb, s.Kind())
	assert.Equal(t, "acme", s.TenantID())
	assert.Equal(t, tenant.RoleAdmin, s.Role())
	assert.NotEmpty(t, s.ID())

	info := s.Info()
	assert.Equal(t, "admin-web", info.Name)
	assert.Equal(t, "desktop", info.Capability)
	assert.False(t, info.OpenedAt.IsZero())
}

func TestOpen_SessionsAreDistinctPerCapability(t *testing.T) {
	t.Parallel()

	browser := drivertest.NewBrowser()
	d := newDriver(t, driver.Options{Browser: browser})
	ctx := context.Background()
	acme := newTenant("acme", "")

	web, err := d.Open(ctx, acme, webCap)
	require.NoError(t, err)
	mobile, err := d.Open(ctx, acme, mobileCap)
	require.NoError(t, err)

	assert.NotEqual(t, web.ID(), mobile.ID())
	pages := browser.Pages()
	require.Len(t, pages, 2)
	assert.NotEqual(t, pages[0].ID(), pages[1].ID())
	assert.Equal(t, constants.CapabilityMobileWeb, pages[1].Capability().Kind)

	require.NoError(t, web.Close(ctx))
	require.NoError(t, mobile.Close(ctx))
	assert.Zero(t, browser.OpenPages())
}

func TestOpen_Failures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("browser cannot create page", func(t *testing.T) {
		t.Parallel()
		browser := drivertest.NewBrowser()
		browser.FailNewPage(testutil.ErrMockBrowserUnavailable)
		d := newDriver(t, driver.Options{Browser: browser})

		_, err := d.Open(ctx, newTenant("acme", ""), webCap)
		require.ErrorIs(t, err, trellerrors.ErrSessionStartFailure)
		assert.Contains(t, err.Error(), "chrome not found")
	})

	t.Run("navigation failure closes the page", func(t *testing.T) {
		t.Parallel()
		browser := drivertest.NewBrowser()
		browser.Site("acme.example.com").FailNavigation(testutil.ErrMockNetwork)
		d := newDriver(t, driver.Options{Browser: browser})

		_, err := d.Open(ctx, newTenant("acme", ""), webCap)
		require.ErrorIs(t, err, trellerrors.ErrSessionStartFailure)
		require.Len(t, browser.Pages(), 1)
		assert.True(t, browser.Pages()[0].Closed())
	})

	t.Run("missing role credential", func(t *testing.T) {
		t.Parallel()
		d := newDriver(t, driver.Options{Browser: drivertest.NewBrowser()})

		_, err := d.Open(ctx, newTenant("acme", ""), webCap, driver.WithRole(tenant.RoleManager))
		require.ErrorIs(t, err, trellerrors.ErrSessionStartFailure)
		require.ErrorIs(t, err, trellerrors.ErrMissingCredential)
	})

	t.Run("invalid capability", func(t *testing.T) {
		t.Parallel()
		d := newDriver(t, driver.Options{Browser: drivertest.NewBrowser()})

		_, err := d.Open(ctx, newTenant("acme", ""), domain.Capability{Kind: constants.CapabilityMobileWeb})
		require.ErrorIs(t, err, trellerrors.ErrSessionStartFailure)
		require.ErrorIs(t, err, trellerrors.ErrInvalidCapability)
	})

	t.Run("no browser configured", func(t *testing.T) {
		t.Parallel()
		d := newDriver(t, driver.Options{})

		_, err := d.Open(ctx, newTenant("acme", ""), webCap)
		require.ErrorIs(t, err, trellerrors.ErrSessionStartFailure)
	})

	t.Run("login hook failure closes the page", func(t *testing.T) {
		t.Parallel()
		browser := drivertest.NewBrowser()
		d := newDriver(t, driver.Options{
			Browser: browser,
			Login: func(_ context.Context, _ *driver.Session, _ tenant.Credential) error {
				return testutil.ErrMockLogin
			},
		})

		_, err := d.Open(ctx, newTenant("acme", ""), webCap)
		require.ErrorIs(t, err, trellerrors.ErrSessionStartFailure)
		assert.Zero(t, browser.OpenPages())
	})
}

func TestOpen_LoginHookReceivesRoleCredential(t *testing.T) {
	t.Parallel()

	browser := drivertest.NewBrowser()
	browser.Site("acme.example.com").Show("#email", "", 0)

	var got tenant.Credential
	d := newDriver(t, driver.Options{
		Browser: browser,
		Login: func(ctx context.Context, s *driver.Session, cred tenant.Credential) error {
			got = cred
			return s.Fill(ctx, "#email", cred.Username)
		},
	})

	s, err := d.Open(context.Background(), newTenant("acme", ""), webCap, driver.WithRole(tenant.RoleEmployee))
	require.NoError(t, err)
	assert.Equal(t, "acme-employee", got.Username)
	assert.Equal(t, "acme-employee", browser.Site("acme.example.com").Value("#email"))
	require.NoError(t, s.Close(context.Background()))
}

func TestSession_CloseIsIdempotentAndBlocksActions(t *testing.T) {
	t.Parallel()

	browser := drivertest.NewBrowser()
	d := newDriver(t, driver.Options{Browser: browser})
	ctx := context.Background()

	s, err := d.Open(ctx, newTenant("acme", ""), webCap)
	require.NoError(t, err)

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
	assert.True(t, s.Closed())

	require.ErrorIs(t, s.Navigate(ctx, "/projects"), trellerrors.ErrSessionClosed)

	err = s.AssertVisible(ctx, ".anything")
	require.ErrorIs(t, err, trellerrors.ErrSessionClosed)
}

func TestSession_ConditionOnClosedSessionIsConditionError(t *testing.T) {
	t.Parallel()

	browser := drivertest.NewBrowser()
	d := newDriver(t, driver.Options{Browser: browser})
	ctx := context.Background()

	s, err := d.Open(ctx, newTenant("acme", ""), webCap)
	require.NoError(t, err)
	loc := s.Locate(".row")
	require.NoError(t, s.Close(ctx))

	err = s.Await(ctx, loc.Visible())
	require.ErrorIs(t, err, trellerrors.ErrConditionError)
	require.ErrorIs(t, err, trellerrors.ErrSessionClosed)
	assert.NotErrorIs(t, err, trellerrors.ErrTimeoutFailure)
}
