package console

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"time"

	auth "github.com/flexmon/console-auth"
	"github.com/flexmon/console-auth/middleware/csrf"
	"github.com/flexmon/console-auth/middleware/routeguard"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/template/django/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed views/*.html
var viewsFS embed.FS

const shutdownTimeout = 5 * time.Second

// page is a protected console surface
type page struct {
	Path  string
	Title string
	Roles []auth.Role
}

var adminRoles = []auth.Role{auth.RolePlatformAdmin, auth.RoleTenantAdmin}

var pages = []page{
	{Path: "/", Title: "Dashboard"},
	{Path: "/servers", Title: "Servers"},
	{Path: "/logs", Title: "Logs"},
	{Path: "/alarms", Title: "Alarms"},
	{Path: "/reports", Title: "Reports"},
	{Path: "/users", Title: "Users", Roles: adminRoles},
	{Path: "/settings", Title: "Settings", Roles: adminRoles},
}

// Serve bootstraps the session and runs the web console until ctx is done.
func Serve(ctx context.Context, app *App, addr string) error {
	srv, err := NewServer(app)
	if err != nil {
		return err
	}

	go app.Store().Bootstrap(ctx)

	errc := make(chan error, 1)
	go func() {
		app.logger.Info("console listening on %s", addr)
		errc <- srv.Listen(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.ShutdownWithContext(shutdownCtx)
	}
}

// NewServer builds the fiber app serving the console views.
func NewServer(app *App) (*fiber.App, error) {
	views, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return nil, err
	}

	srv := fiber.New(fiber.Config{
		Views:                 django.NewFileSystem(http.FS(views), ".html"),
		DisableStartupMessage: true,
	})

	h := &handlers{app: app, loginPath: app.opts.GetLoginPath()}

	srv.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})))
	protect := csrf.New()
	srv.Get(h.loginPath, protect, h.loginForm)
	srv.Post(h.loginPath, protect, h.loginSubmit)
	srv.All("/logout", protect, h.logout)

	for _, p := range pages {
		guard := routeguard.New(routeguard.Config{
			Source:        app.store,
			RequiredRoles: p.Roles,
			LoginPath:     h.loginPath,
			Forbidden:     h.forbidden,
		})
		srv.Get(p.Path, guard, h.render(p))
	}

	return srv, nil
}

type handlers struct {
	app       *App
	loginPath string
}

func (h *handlers) loginForm(c *fiber.Ctx) error {
	if h.app.store.IsAuthenticated() {
		return c.Redirect("/", fiber.StatusFound)
	}
	return c.Render("login", h.loginData(c, fiber.Map{}))
}

func (h *handlers) loginSubmit(c *fiber.Ctx) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	if err := h.app.store.Login(c.UserContext(), username, password); err != nil {
		status := fiber.StatusUnauthorized
		if auth.IsInvalidLoginInput(err) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).Render("login", h.loginData(c, fiber.Map{
			"username": username,
			"error":    auth.ErrorMessage(err),
		}))
	}

	return c.Redirect("/", fiber.StatusSeeOther)
}

func (h *handlers) loginData(c *fiber.Ctx, data fiber.Map) fiber.Map {
	data["loginPath"] = h.loginPath
	data["csrfField"] = csrf.FieldName(c)
	data["csrfToken"] = csrf.Token(c)
	return data
}

func (h *handlers) logout(c *fiber.Ctx) error {
	h.app.store.Logout(c.UserContext())
	return c.Redirect(h.loginPath, fiber.StatusSeeOther)
}

func (h *handlers) forbidden(c *fiber.Ctx, state auth.State, required []auth.Role) error {
	return c.Status(fiber.StatusForbidden).Render("forbidden", h.layout(c, state, fiber.Map{
		"message": routeguard.ForbiddenMessage(required),
	}))
}

func (h *handlers) render(p page) fiber.Handler {
	return func(c *fiber.Ctx) error {
		state, _ := auth.StateFromContext(c.UserContext())

		// the dashboard confirms the profile on every visit
		if p.Path == "/" {
			_, err := h.app.store.FetchCurrentUser(c.UserContext())
			state = h.app.store.State()
			if err != nil || !state.IsAuthenticated {
				return c.Redirect(h.loginPath, fiber.StatusSeeOther)
			}
		}

		return c.Render("page", h.layout(c, state, fiber.Map{
			"title": p.Title,
			"path":  p.Path,
		}))
	}
}

// layout adds the header data shared by every authenticated view
func (h *handlers) layout(c *fiber.Ctx, state auth.State, data fiber.Map) fiber.Map {
	data["nav"] = navigation(state, c.Path())
	data["tenant"] = state.TenantID()

	if scoped := h.app.binder.Tenant(); scoped != "" {
		data["tenant"] = scoped
	}

	if user := state.User; user != nil {
		data["username"] = user.Username
		data["initials"] = user.Initials()
		data["role"] = user.DisplayRole()
	}

	return data
}

type navItem struct {
	Path   string
	Title  string
	Active bool
}

// navigation lists the pages the session may open
func navigation(state auth.State, current string) []navItem {
	items := make([]navItem, 0, len(pages))
	for _, p := range pages {
		if auth.Authorize(state, p.Roles...) != auth.DecisionRender {
			continue
		}
		items = append(items, navItem{Path: p.Path, Title: p.Title, Active: p.Path == current})
	}
	return items
}
