package console_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	auth "github.com/flexmon/console-auth"
)

// fakePlatform is a minimal platform API with two accounts
type fakePlatform struct {
	*httptest.Server

	mu      sync.Mutex
	revoked map[string]bool
	tenants []string
}

var platformUsers = map[string]struct {
	password string
	token    string
	profile  auth.UserProfile
}{
	"admin": {
		password: "secret",
		token:    "tok-admin",
		profile:  auth.UserProfile{ID: 1, Username: "admin", Role: auth.RolePlatformAdmin, Enabled: true},
	},
	"jane_doe": {
		password: "secret",
		token:    "tok-jane",
		profile:  auth.UserProfile{ID: 7, Username: "jane_doe", Role: auth.RoleTenantReporter, TenantID: "acme", Enabled: true},
	},
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()

	p := &fakePlatform{revoked: map[string]bool{}}
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		u, ok := platformUsers[body.Username]
		if !ok || u.password != body.Password {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": u.token,
			"token_type":   "bearer",
			"expires_in":   1800,
		})
	})

	mux.HandleFunc("/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.tenants = append(p.tenants, r.Header.Get("X-Tenant-Id"))
		p.mu.Unlock()

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		for _, u := range platformUsers {
			if u.token == token && !p.isRevoked(token) {
				profile := u.profile
				now := time.Now().UTC()
				profile.LastLogin = &now
				_ = json.NewEncoder(w).Encode(profile)
				return
			}
		}

		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	})

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

func (p *fakePlatform) revoke(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked[token] = true
}

func (p *fakePlatform) isRevoked(token string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revoked[token]
}

func (p *fakePlatform) seenTenants() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.tenants...)
}
