package routeguard_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	auth "github.com/flexmon/console-auth"
	"github.com/flexmon/console-auth/middleware/routeguard"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	state auth.State
	ready chan struct{}
}

func newSource(state auth.State) *staticSource {
	ready := make(chan struct{})
	close(ready)
	return &staticSource{state: state, ready: ready}
}

func (s *staticSource) State() auth.State       { return s.state }
func (s *staticSource) Ready() <-chan struct{} { return s.ready }

func signedIn(role auth.Role) auth.State {
	return auth.State{
		Token:           "tok",
		IsAuthenticated: true,
		User:            &auth.UserProfile{ID: 1, Username: "jane_doe", Role: role},
	}
}

func newApp(cfg routeguard.Config) *fiber.App {
	app := fiber.New()
	app.All("/page", routeguard.New(cfg), func(c *fiber.Ctx) error {
		user, ok := auth.FromContext(c.UserContext())
		if !ok {
			return c.SendString("no user")
		}
		local, _ := c.Locals("user").(*auth.UserProfile)
		if local == nil || local.Username != user.Username {
			return c.SendString("locals mismatch")
		}
		return c.SendString("hello " + user.Username)
	})
	return app
}

func body(t *testing.T, res *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}

func TestRouteGuard_RedirectsAnonymous(t *testing.T) {
	app := newApp(routeguard.Config{Source: newSource(auth.State{})})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/page", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "/login", res.Header.Get("Location"))

	res, err = app.Test(httptest.NewRequest(http.MethodPost, "/page", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
}

func TestRouteGuard_RendersForAnyUser(t *testing.T) {
	app := newApp(routeguard.Config{Source: newSource(signedIn(auth.RoleTenantReporter))})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/page", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "hello jane_doe", body(t, res))
}

func TestRouteGuard_ForbidsMissingRole(t *testing.T) {
	app := newApp(routeguard.Config{
		Source:        newSource(signedIn(auth.RoleTenantReporter)),
		RequiredRoles: []auth.Role{auth.RolePlatformAdmin, auth.RoleTenantAdmin},
	})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/page", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	text := body(t, res)
	assert.Contains(t, text, "Access Denied")
	assert.Contains(t, text, "platform_admin, tenant_admin")
}

func TestRouteGuard_CustomForbidden(t *testing.T) {
	app := newApp(routeguard.Config{
		Source:        newSource(signedIn(auth.RoleTenantReporter)),
		RequiredRoles: []auth.Role{auth.RoleTenantAdmin},
		Forbidden: func(c *fiber.Ctx, state auth.State, required []auth.Role) error {
			return c.Status(fiber.StatusForbidden).SendString(state.User.Username + " denied")
		},
	})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/page", nil))
	require.NoError(t, err)
	assert.Equal(t, "jane_doe denied", body(t, res))
}

func TestRouteGuard_AllowsRole(t *testing.T) {
	app := newApp(routeguard.Config{
		Source:        newSource(signedIn(auth.RoleTenantAdmin)),
		RequiredRoles: []auth.Role{auth.RolePlatformAdmin, auth.RoleTenantAdmin},
		LoginPath:     "/auth/login",
	})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/page", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRouteGuard_Filter(t *testing.T) {
	app := newApp(routeguard.Config{
		Source: newSource(auth.State{}),
		Filter: func(c *fiber.Ctx) bool { return c.Get("X-Health") != "" },
	})

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.Header.Set("X-Health", "1")
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "no user", body(t, res))
}

func TestRouteGuard_WaitsForBootstrap(t *testing.T) {
	src := &staticSource{state: auth.State{}, ready: make(chan struct{})}
	app := newApp(routeguard.Config{Source: src, ReadyTimeout: 20 * time.Millisecond})

	res, err := app.Test(httptest.NewRequest(http.MethodGet, "/page", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestRouteGuard_RequiresSource(t *testing.T) {
	assert.Panics(t, func() {
		routeguard.New(routeguard.Config{})
	})
}

func TestForbiddenMessage(t *testing.T) {
	assert.NotContains(t, routeguard.ForbiddenMessage(nil), "Required role")
	assert.Contains(t, routeguard.ForbiddenMessage([]auth.Role{auth.RoleTenantAdmin}), "Required role: tenant_admin")
}
