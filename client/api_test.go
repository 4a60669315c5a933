package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	auth "github.com/flexmon/console-auth"
	"github.com/flexmon/console-auth/client"
	"github.com/flexmon/console-auth/credentials"
	"github.com/flexmon/console-auth/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlatform(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch {
		case body.Username == "admin" && body.Password == "secret":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok-1",
				"token_type":   "bearer",
				"expires_in":   1800,
			})
		case body.Username == "broken":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"detail":[{"loc":["body","password"],"msg":"field required"}]}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
		}
	})
	mux.HandleFunc("/api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 1,
			"username": "admin",
			"email": "admin@example.com",
			"role": "platform_admin",
			"tenant_id": null,
			"enabled": true,
			"created_at": "2024-01-02T03:04:05Z",
			"last_login": null
		}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPI_Login(t *testing.T) {
	srv := newPlatform(t)
	api := client.New(srv.URL+"/api/", client.WithLogger(auth.NopLogger{}))

	token, err := api.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestAPI_LoginRejected(t *testing.T) {
	srv := newPlatform(t)
	api := client.New(srv.URL+"/api", client.WithLogger(auth.NopLogger{}))

	_, err := api.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Incorrect username or password", auth.RemoteDetail(err))
	assert.Equal(t, http.StatusUnauthorized, auth.RemoteStatus(err))
}

func TestAPI_StructuredDetailIsDropped(t *testing.T) {
	srv := newPlatform(t)
	api := client.New(srv.URL+"/api", client.WithLogger(auth.NopLogger{}))

	_, err := api.Login(context.Background(), "broken", "x")
	require.Error(t, err)
	assert.Empty(t, auth.RemoteDetail(err))
	assert.Equal(t, http.StatusUnprocessableEntity, auth.RemoteStatus(err))
}

func TestAPI_Unreachable(t *testing.T) {
	api := client.New("http://127.0.0.1:1", client.WithLogger(auth.NopLogger{}))

	_, err := api.Login(context.Background(), "admin", "secret")
	require.Error(t, err)
	assert.Empty(t, auth.RemoteDetail(err))
	assert.Zero(t, auth.RemoteStatus(err))
}

func TestAPI_CurrentUserThroughBinder(t *testing.T) {
	srv := newPlatform(t)
	creds := credentials.NewMemoryStore()
	binder := transport.NewBinder(creds, transport.WithLogger(auth.NopLogger{}))
	api := client.New(srv.URL+"/api",
		client.WithHTTPClient(binder.Client(time.Second)),
		client.WithLogger(auth.NopLogger{}),
	)

	_, err := api.CurrentUser(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Could not validate credentials", auth.RemoteDetail(err))

	require.NoError(t, creds.Set(context.Background(), credentials.DefaultTokenKey, "tok-1"))

	user, err := api.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, auth.RolePlatformAdmin, user.Role)
	assert.Empty(t, user.TenantID)
	require.NotNil(t, user.CreatedAt)
	assert.Nil(t, user.LastLogin)
}

func TestAPI_StoreRoundTrip(t *testing.T) {
	srv := newPlatform(t)
	creds := credentials.NewMemoryStore()
	var store *auth.Store

	binder := transport.NewBinder(creds,
		transport.WithEvictionHook(func(ctx context.Context, token string) bool {
			return store.EvictToken(ctx, token)
		}),
		transport.WithLogger(auth.NopLogger{}),
	)
	api := client.New(srv.URL+"/api",
		client.WithHTTPClient(binder.Client(time.Second)),
		client.WithLogger(auth.NopLogger{}),
	)
	store = auth.NewStore(creds, api, auth.WithStoreLogger(auth.NopLogger{}))
	defer store.Close()

	store.Bootstrap(context.Background())

	err := store.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Incorrect username or password", auth.ErrorMessage(err))

	require.NoError(t, store.Login(context.Background(), "admin", "secret"))
	assert.True(t, store.HasRole(auth.RolePlatformAdmin))

	token, err := creds.Get(context.Background(), credentials.DefaultTokenKey)
	require.NoError(t, err)
	assert.Equal(t, store.Token(), token)
}
