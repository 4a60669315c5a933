// Package console wires the session store, the platform API client and the
// credential storage into the flexmon-console CLI and web shell.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"

	auth "github.com/flexmon/console-auth"
	"github.com/flexmon/console-auth/activitymap"
	"github.com/flexmon/console-auth/client"
	"github.com/flexmon/console-auth/credentials"
	"github.com/flexmon/console-auth/metrics"
	"github.com/flexmon/console-auth/transport"
	goerrors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
)

// App holds the wired console services
type App struct {
	opts     *auth.Options
	logger   auth.Logger
	db       *bun.DB
	creds    *credentials.BunStore
	binder   *transport.Binder
	api      *client.API
	store    *auth.Store
	metrics  *metrics.Sink
	registry *prometheus.Registry

	closeOnce sync.Once
	unbind    func()
}

// NewApp opens the credential database and builds the session stack. nav
// receives the redirect to the login surface whenever the session ends.
func NewApp(ctx context.Context, opts *auth.Options, nav auth.Navigator, logger auth.Logger) (*App, error) {
	if logger == nil {
		logger = auth.DefaultLogger()
	}

	db, err := credentials.OpenSQLite(opts.GetCredentialsDSN())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to open credential storage")
	}

	creds := credentials.NewBunStore(db)
	if err := creds.Migrate(ctx); err != nil {
		db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to migrate credential storage")
	}

	registry := prometheus.NewRegistry()
	sink, err := metrics.NewSink(registry)
	if err != nil {
		db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to register session metrics")
	}

	a := &App{
		opts:     opts,
		logger:   logger,
		db:       db,
		creds:    creds,
		metrics:  sink,
		registry: registry,
	}

	a.binder = transport.NewBinder(creds,
		transport.WithTokenKey(opts.GetTokenKey()),
		transport.WithTenantHeader(opts.GetTenantHeader()),
		transport.WithTenant(opts.GetTenantID()),
		transport.WithEvictionHook(a.evict),
		transport.WithLogger(logger),
	)

	a.api = client.New(opts.GetBaseURL(),
		client.WithHTTPClient(a.binder.Client(opts.GetRequestTimeout())),
		client.WithLogger(logger),
	)

	a.store = auth.NewStore(creds, a.api,
		auth.WithTokenKey(opts.GetTokenKey()),
		auth.WithStoreLogger(logger),
		auth.WithStoreActivitySink(auth.MultiActivitySink(sink, activitymap.NewLogSink(logger))),
	)

	a.unbind = auth.BindNavigator(a.store, nav, opts.GetLoginPath())

	return a, nil
}

func (a *App) evict(ctx context.Context, token string) bool {
	if a.store == nil {
		return true
	}
	return a.store.EvictToken(ctx, token)
}

// Store is the session store
func (a *App) Store() *auth.Store {
	return a.store
}

// Binder is the credential binding transport
func (a *App) Binder() *transport.Binder {
	return a.binder
}

// Options returns the loaded configuration
func (a *App) Options() *auth.Options {
	return a.opts
}

// Registry is the Prometheus registry holding the session metrics
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Close releases the store and the credential database
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.unbind != nil {
			a.unbind()
		}
		a.store.Close()
		err = a.db.Close()
	})
	return err
}

// terminalNavigator tells a CLI user to sign in again once the session ends
type terminalNavigator struct {
	out  io.Writer
	path string
}

func (n *terminalNavigator) CurrentPath() string {
	return n.path
}

func (n *terminalNavigator) RedirectTo(path string) {
	fmt.Fprintf(n.out, "Session ended. Run `flexmon-console login` to sign in again (%s).\n", path)
}

// logNavigator reports the end of a session served by the web shell, the
// route guard takes care of the actual redirect.
type logNavigator struct {
	logger auth.Logger
}

func (n logNavigator) CurrentPath() string {
	return ""
}

func (n logNavigator) RedirectTo(path string) {
	n.logger.Info("console session ended, pages now redirect to %s", path)
}

// leveledLogger only lets warnings and errors through unless verbose is set
type leveledLogger struct {
	auth.Logger
	verbose bool
}

func (l leveledLogger) Debug(format string, args ...any) {
	if l.verbose {
		l.Logger.Debug(format, args...)
	}
}

func (l leveledLogger) Info(format string, args ...any) {
	if l.verbose {
		l.Logger.Info(format, args...)
	}
}
