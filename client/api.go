// Package client talks to the FlexMON platform API on behalf of the session
// store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	auth "github.com/flexmon/console-auth"
	"github.com/flexmon/console-auth/transport"
)

const (
	// LoginPath is the credential submission endpoint
	LoginPath = "/v1/auth/login"
	// CurrentUserPath is the profile endpoint
	CurrentUserPath = "/v1/auth/me"

	// DefaultTimeout applies to every call unless a client is injected
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 64 << 10
)

var _ auth.Authenticator = (*API)(nil)

// TokenResponse is the login answer of the platform API
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Option customizes the API client
type Option func(*API)

// WithHTTPClient sets the http.Client, typically one built by
// transport.Binder.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *API) {
		if c != nil {
			a.http = c
		}
	}
}

// WithLogger overrides the logger
func WithLogger(logger auth.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// API implements auth.Authenticator over the platform REST API.
type API struct {
	baseURL string
	http    *http.Client
	logger  auth.Logger
}

// New creates an API client rooted at baseURL.
func New(baseURL string, opts ...Option) *API {
	a := &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  auth.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// Login submits credentials and returns the access token
func (a *API) Login(ctx context.Context, username, password string) (string, error) {
	var out TokenResponse
	payload := loginRequest{Username: username, Password: password}

	// a rejected login answers 401, that must not evict a live session
	if err := a.do(transport.WithoutEviction(ctx), http.MethodPost, LoginPath, payload, &out); err != nil {
		return "", err
	}

	return out.AccessToken, nil
}

// CurrentUser fetches the profile behind the current token
func (a *API) CurrentUser(ctx context.Context) (*auth.UserProfile, error) {
	out := &auth.UserProfile{}
	if err := a.do(ctx, http.MethodGet, CurrentUserPath, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return auth.NewRemoteError(0, "", fmt.Errorf("encode %s payload: %w", path, err))
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return auth.NewRemoteError(0, "", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := a.http.Do(req)
	if err != nil {
		a.logger.Error("%s %s failed: %v", method, path, err)
		return auth.NewRemoteError(0, "", err)
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		detail := decodeDetail(res.Body)
		a.logger.Debug("%s %s answered %d: %s", method, path, res.StatusCode, detail)
		return auth.NewRemoteError(
			res.StatusCode,
			detail,
			fmt.Errorf("%s %s: %s", method, path, res.Status),
		)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return auth.NewRemoteError(res.StatusCode, "", fmt.Errorf("decode %s response: %w", path, err))
	}

	return nil
}

// decodeDetail extracts the "detail" message of an error body. Structured
// details (validation error lists) are not meant for humans and are dropped.
func decodeDetail(r io.Reader) string {
	var payload errorResponse
	if err := json.NewDecoder(io.LimitReader(r, maxErrorBody)).Decode(&payload); err != nil {
		return ""
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err != nil {
		return ""
	}
	return strings.TrimSpace(detail)
}
