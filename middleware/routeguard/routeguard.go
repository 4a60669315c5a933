// Package routeguard applies the session route guard to fiber handlers.
package routeguard

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	auth "github.com/flexmon/console-auth"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultContextKey   = "user"
	defaultLoginPath    = "/login"
	defaultReadyTimeout = 10 * time.Second
)

// StateSource is the part of the session store the guard reads.
type StateSource interface {
	State() auth.State
	Ready() <-chan struct{}
}

// ForbiddenHandler renders the access denied outcome.
type ForbiddenHandler func(c *fiber.Ctx, state auth.State, required []auth.Role) error

type Config struct {
	// Filter skips the guard when it returns true
	Filter func(*fiber.Ctx) bool
	// Source is the session, required
	Source StateSource
	// RequiredRoles restricts the route, empty means any logged in user
	RequiredRoles []auth.Role
	// LoginPath is where unauthenticated requests go
	LoginPath string
	// ContextKey is the Locals key the profile is stored under
	ContextKey string
	// ReadyTimeout bounds how long a request waits for bootstrap
	ReadyTimeout time.Duration
	// Forbidden renders the access denied view
	Forbidden ForbiddenHandler
}

func (cfg Config) withDefaults() Config {
	if cfg.LoginPath == "" {
		cfg.LoginPath = defaultLoginPath
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = defaultContextKey
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.Forbidden == nil {
		cfg.Forbidden = DefaultForbidden
	}
	return cfg
}

// New returns the guard middleware. Requests wait for the session to finish
// bootstrapping so protected content never renders from a half restored
// session.
func New(config Config) fiber.Handler {
	cfg := config.withDefaults()
	if cfg.Source == nil {
		panic("routeguard: Source is required")
	}

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		timer := time.NewTimer(cfg.ReadyTimeout)
		defer timer.Stop()

		select {
		case <-cfg.Source.Ready():
		case <-timer.C:
			return fiber.NewError(fiber.StatusServiceUnavailable, "session is still being restored")
		}

		state := cfg.Source.State()

		switch auth.Authorize(state, cfg.RequiredRoles...) {
		case auth.DecisionRedirectLogin:
			status := http.StatusSeeOther
			if c.Method() == fiber.MethodGet {
				status = http.StatusFound
			}
			return c.Redirect(cfg.LoginPath, status)
		case auth.DecisionForbidden:
			return cfg.Forbidden(c, state, cfg.RequiredRoles)
		}

		c.Locals(cfg.ContextKey, state.User)
		ctx := auth.WithContext(c.UserContext(), state.User)
		c.SetUserContext(auth.WithStateContext(ctx, state))

		return c.Next()
	}
}

// Require is a shortcut for New with only a source and roles.
func Require(source StateSource, roles ...auth.Role) fiber.Handler {
	return New(Config{Source: source, RequiredRoles: roles})
}

// DefaultForbidden answers 403 with a plain text explanation.
func DefaultForbidden(c *fiber.Ctx, _ auth.State, required []auth.Role) error {
	return c.Status(fiber.StatusForbidden).SendString(ForbiddenMessage(required))
}

// ForbiddenMessage is the access denied text, listing required roles.
func ForbiddenMessage(required []auth.Role) string {
	msg := "Access Denied: you don't have the required permissions to access this page."
	if len(required) == 0 {
		return msg
	}

	names := make([]string, 0, len(required))
	for _, r := range required {
		names = append(names, string(r))
	}
	return fmt.Sprintf("%s Required role: %s", msg, strings.Join(names, ", "))
}
