package auth_test

import (
	"context"
	"sync"

	auth "github.com/flexmon/console-auth"
	"github.com/stretchr/testify/mock"
)

// MockAuthenticator implements auth.Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, username, password string) (string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthenticator) CurrentUser(ctx context.Context) (*auth.UserProfile, error) {
	args := m.Called(ctx)
	user, _ := args.Get(0).(*auth.UserProfile)
	return user, args.Error(1)
}

// MockNavigator records redirects
type MockNavigator struct {
	mu        sync.Mutex
	path      string
	redirects []string
}

func (m *MockNavigator) CurrentPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

func (m *MockNavigator) RedirectTo(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redirects = append(m.redirects, path)
	m.path = path
}

func (m *MockNavigator) Redirects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.redirects...)
}

// stateRecorder collects every snapshot a store publishes
type stateRecorder struct {
	mu     sync.Mutex
	states []auth.State
}

func (r *stateRecorder) record(s auth.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) all() []auth.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auth.State(nil), r.states...)
}

// activityRecorder collects activity events
type activityRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func adminProfile() *auth.UserProfile {
	return &auth.UserProfile{
		ID:       1,
		Username: "admin",
		Email:    "admin@example.com",
		Role:     auth.RolePlatformAdmin,
		Enabled:  true,
	}
}

func reporterProfile() *auth.UserProfile {
	return &auth.UserProfile{
		ID:       7,
		Username: "jane_doe",
		Role:     auth.RoleTenantReporter,
		TenantID: "acme",
		Enabled:  true,
	}
}
