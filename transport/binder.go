// Package transport stamps outgoing console requests with the session
// credential and reacts to authentication failures.
package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	auth "github.com/flexmon/console-auth"
	"github.com/flexmon/console-auth/credentials"
)

const (
	// HeaderAuthorization carries the bearer token
	HeaderAuthorization = "Authorization"
	// DefaultTenantHeader carries the tenant scope
	DefaultTenantHeader = "X-Tenant-Id"
	// DefaultLoginPath is the login surface of the console
	DefaultLoginPath = "/login"

	bearerScheme = "Bearer"
)

type contextKey struct {
	name string
}

var skipEvictionKey = &contextKey{"skip_eviction"}

// WithoutEviction marks a request whose 401 is an expected answer (for
// example a rejected login) and must not tear the session down.
func WithoutEviction(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipEvictionKey, true)
}

func evictionSkipped(ctx context.Context) bool {
	skip, _ := ctx.Value(skipEvictionKey).(bool)
	return skip
}

// Option customizes a Binder
type Option func(*Binder)

// WithBase sets the wrapped round tripper, http.DefaultTransport by default.
func WithBase(rt http.RoundTripper) Option {
	return func(b *Binder) {
		if rt != nil {
			b.base = rt
		}
	}
}

// WithTokenKey sets the persistence key, it must match the session store.
func WithTokenKey(key string) Option {
	return func(b *Binder) {
		if key != "" {
			b.tokenKey = key
		}
	}
}

// WithTenantHeader overrides the tenant scope header name
func WithTenantHeader(header string) Option {
	return func(b *Binder) {
		if header != "" {
			b.tenantHeader = header
		}
	}
}

// WithTenant sets the initial tenant scope
func WithTenant(tenantID string) Option {
	return func(b *Binder) {
		b.tenant = tenantID
	}
}

// EvictionHook is called after a 401 with the token the rejected request
// carried. It reports whether the session ended.
type EvictionHook func(ctx context.Context, token string) bool

// WithEvictionHook sets the function called after a 401 cleared the
// credential, usually (*auth.Store).EvictToken.
func WithEvictionHook(evict EvictionHook) Option {
	return func(b *Binder) {
		b.evict = evict
	}
}

// WithNavigator enables the redirect to loginPath after a 401.
func WithNavigator(nav auth.Navigator, loginPath string) Option {
	return func(b *Binder) {
		b.navigator = nav
		if loginPath != "" {
			b.loginPath = loginPath
		}
	}
}

// WithLogger overrides the logger
func WithLogger(logger auth.Logger) Option {
	return func(b *Binder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Binder is an http.RoundTripper that attaches the persisted bearer token and
// tenant scope to every request, and clears the credential when the API
// answers 401. It owns no session state of its own.
type Binder struct {
	base         http.RoundTripper
	credentials  credentials.Store
	tokenKey     string
	tenantHeader string
	loginPath    string
	evict        EvictionHook
	navigator    auth.Navigator
	logger       auth.Logger

	mu     sync.RWMutex
	tenant string
}

var _ http.RoundTripper = (*Binder)(nil)

// NewBinder wraps the default transport with credential handling.
func NewBinder(creds credentials.Store, opts ...Option) *Binder {
	b := &Binder{
		base:         http.DefaultTransport,
		credentials:  creds,
		tokenKey:     credentials.DefaultTokenKey,
		tenantHeader: DefaultTenantHeader,
		loginPath:    DefaultLoginPath,
		logger:       auth.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	return b
}

// SetTenant sets the tenant scope, an empty id removes it.
func (b *Binder) SetTenant(tenantID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tenant = tenantID
}

// Tenant returns the current tenant scope
func (b *Binder) Tenant() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tenant
}

// Client returns an http.Client using the binder with a uniform timeout.
func (b *Binder) Client(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: b,
		Timeout:   timeout,
	}
}

// RoundTrip sends req with the persisted bearer token and tenant scope. A 401
// answer clears the credential the request carried, unless the context was
// marked WithoutEviction.
func (b *Binder) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)

	token := b.persistedToken(ctx)
	if token != "" {
		out.Header.Set(HeaderAuthorization, bearerScheme+" "+token)
	}

	if tenant := b.Tenant(); tenant != "" {
		out.Header.Set(b.tenantHeader, tenant)
	}

	res, err := b.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == http.StatusUnauthorized && !evictionSkipped(ctx) {
		b.unauthorized(context.WithoutCancel(ctx), token, req.URL.Path)
	}

	return res, nil
}

func (b *Binder) unauthorized(ctx context.Context, sent, path string) {
	removed, err := b.credentials.RemoveIf(ctx, b.tokenKey, sent)
	switch {
	case err != nil:
		b.logger.Error("unable to remove credential: %v", err)
	case !removed:
		// a newer login replaced the token this request carried, leave it alone
		if current := b.persistedToken(ctx); current != "" && current != sent {
			b.logger.Debug("ignoring 401 for a superseded credential on %s", path)
			return
		}
	}

	b.logger.Info("authentication rejected on %s, credential cleared", path)

	ended := true
	if b.evict != nil {
		ended = b.evict(ctx, sent)
	}
	if !ended {
		return
	}

	if b.navigator != nil && !auth.IsLoginPath(b.navigator.CurrentPath(), b.loginPath) {
		b.navigator.RedirectTo(b.loginPath)
	}
}

func (b *Binder) persistedToken(ctx context.Context) string {
	token, err := b.credentials.Get(ctx, b.tokenKey)
	if err != nil {
		if !credentials.IsNotFound(err) {
			b.logger.Error("unable to read credential: %v", err)
		}
		return ""
	}
	return token
}
