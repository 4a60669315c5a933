package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flexmon/console-auth/credentials"
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

// LogoutReason tells listeners why a session ended
type LogoutReason string

const (
	// LogoutReasonUser is an explicit logout
	LogoutReasonUser LogoutReason = "user"
	// LogoutReasonUnauthorized is a 401 seen by the transport
	LogoutReasonUnauthorized LogoutReason = "unauthorized"
	// LogoutReasonInvalidSession is a failed profile resolution
	LogoutReasonInvalidSession LogoutReason = "invalid_session"
	// LogoutReasonCredentialCleared means the persisted token vanished or changed
	LogoutReasonCredentialCleared LogoutReason = "credential_cleared"
)

// UnauthenticatedEvent is emitted every time the store lands in the logged
// out state. UI adapters react to it by navigating to the login surface.
type UnauthenticatedEvent struct {
	Reason   LogoutReason
	Previous *UserProfile
	At       time.Time
}

// StoreOption customizes store construction.
type StoreOption func(*Store)

// WithStoreLogger overrides the logger
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreActivitySink sets the ActivitySink used to publish session events.
func WithStoreActivitySink(sink ActivitySink) StoreOption {
	return func(s *Store) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithTokenKey overrides the persistence key. The transport binder must be
// configured with the same key.
func WithTokenKey(key string) StoreOption {
	return func(s *Store) {
		if key != "" {
			s.tokenKey = key
		}
	}
}

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// Store is the authoritative client side session.
//
// A Store is safe for concurrent use. Persistence reads and writes happen
// under the state lock so memory and storage never disagree once a mutation
// completes; remote calls happen outside of it. Every token change bumps a
// generation counter and asynchronous results are only applied if the
// generation they started from is still current.
type Store struct {
	mu         sync.Mutex
	state      State
	generation uint64
	closed     bool

	credentials credentials.Store
	remote      Authenticator
	tokenKey    string
	logger      Logger
	activity    ActivitySink
	now         func() time.Time

	changes         *broadcaster[State]
	unauthenticated *broadcaster[UnauthenticatedEvent]

	bootstrapOnce sync.Once
	readyOnce     sync.Once
	ready         chan struct{}
}

// NewStore creates the session store. The store starts empty and
// bootstrapping; call Bootstrap once to restore a persisted session.
func NewStore(creds credentials.Store, remote Authenticator, opts ...StoreOption) *Store {
	if creds == nil {
		creds = credentials.NewMemoryStore()
	}

	s := &Store{
		state:       State{IsBootstrapping: true},
		credentials: creds,
		remote:      remote,
		tokenKey:    credentials.DefaultTokenKey,
		logger:      defLogger{},
		activity:    noopActivitySink{},
		now:         time.Now,
		ready:       make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	onPanic := func(r any) {
		s.logger.Error("session listener panic: %v", r)
	}
	s.changes = newBroadcaster[State](onPanic)
	s.unauthenticated = newBroadcaster[UnauthenticatedEvent](onPanic)

	return s
}

// TokenKey is the persistence key holding the bearer token
func (s *Store) TokenKey() string {
	return s.tokenKey
}

// Bootstrap restores the persisted session. Only the first call does any
// work; it returns once the restoration settled.
func (s *Store) Bootstrap(ctx context.Context) {
	s.bootstrapOnce.Do(func() {
		s.bootstrap(ctx)
	})
}

// Ready is closed once bootstrap settled
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

func (s *Store) bootstrap(ctx context.Context) {
	defer s.readyOnce.Do(func() { close(s.ready) })

	s.mu.Lock()
	token := s.readPersistedLocked(ctx)
	if token == "" {
		s.state = State{}
		s.commitLocked()
		s.mu.Unlock()
		s.flush()

		s.logger.Debug("bootstrap: no persisted credential")
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventBootstrapCompleted,
			Metadata:  map[string]any{"authenticated": false},
		})
		return
	}

	s.generation++
	gen := s.generation
	s.state = State{
		Token:           token,
		IsAuthenticated: true,
		IsBootstrapping: true,
	}
	s.commitLocked()
	s.mu.Unlock()
	s.flush()

	user, err := s.currentUser(ctx)

	invalidated := false

	s.mu.Lock()
	switch {
	case s.generation != gen:
		// a logout, eviction or login won the race, only settle the flag
		s.state.IsBootstrapping = false
		s.commitLocked()
	case err != nil:
		prev := s.clearLocked(ctx, true)
		s.state.IsBootstrapping = false
		s.commitLocked()
		s.enqueueUnauthenticatedLocked(LogoutReasonInvalidSession, prev)
		invalidated = true
	default:
		s.state.User = user.Clone()
		s.state.IsBootstrapping = false
		s.commitLocked()
	}
	authenticated := s.state.IsAuthenticated
	s.mu.Unlock()
	s.flush()

	if invalidated {
		s.logger.Info("bootstrap: persisted session rejected: %v", err)
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventSessionInvalidated,
			Reason:    LogoutReasonInvalidSession,
			Metadata:  map[string]any{"error": err.Error()},
		})
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventBootstrapCompleted,
		Metadata:  map[string]any{"authenticated": authenticated},
	})
}

// Login submits credentials. On success the token is persisted and the
// profile resolved before subscribers are notified. On failure the session
// is left untouched and the error carries a message fit for the login form,
// see ErrorMessage.
func (s *Store) Login(ctx context.Context, username, password string) error {
	if err := validateLogin(username, password); err != nil {
		return err
	}

	token, err := s.remote.Login(ctx, username, password)
	if err == nil && token == "" {
		err = NewRemoteError(0, "", fmt.Errorf("empty access token"))
	}
	if err != nil {
		s.logger.Error("login failed for %q: %v", username, err)
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Username:  username,
			Metadata:  map[string]any{"error": err.Error()},
		})
		return loginError(err)
	}

	s.mu.Lock()
	if err := s.credentials.Set(ctx, s.tokenKey, token); err != nil {
		s.mu.Unlock()
		s.logger.Error("login could not persist credential: %v", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to persist credential")
	}
	s.generation++
	gen := s.generation
	s.state.Token = token
	s.state.IsAuthenticated = true
	s.state.User = nil
	s.mu.Unlock()

	user, err := s.resolveProfile(ctx, gen)
	if err == nil && user == nil {
		// the session ended or was replaced while the profile was in flight
		err = ErrSessionInvalidated
	}
	if err != nil {
		s.logger.Error("login for %q did not yield a session: %v", username, err)
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Username:  username,
			Metadata:  map[string]any{"error": err.Error()},
		})
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Source != nil {
			return loginError(richErr.Source)
		}
		return loginError(err)
	}

	s.emit(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Username:  user.Username,
		UserID:    user.ID,
	})

	return nil
}

// FetchCurrentUser refreshes the profile behind the current token. It
// returns nil without a token. Any failure, including a persisted token that
// was removed or replaced behind the store's back, logs the session out and
// returns ErrSessionInvalidated.
func (s *Store) FetchCurrentUser(ctx context.Context) (*UserProfile, error) {
	s.mu.Lock()
	if s.state.Token == "" {
		s.mu.Unlock()
		return nil, nil
	}

	persisted := s.readPersistedLocked(ctx)
	if persisted != s.state.Token {
		// only drop storage we own, a different token belongs to someone else
		prev := s.clearLocked(ctx, persisted == "")
		s.commitLocked()
		s.enqueueUnauthenticatedLocked(LogoutReasonCredentialCleared, prev)
		s.mu.Unlock()
		s.flush()

		s.logger.Info("persisted credential changed, session dropped")
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventSessionInvalidated,
			Reason:    LogoutReasonCredentialCleared,
		})
		return nil, ErrSessionInvalidated
	}
	gen := s.generation
	s.mu.Unlock()

	return s.resolveProfile(ctx, gen)
}

// resolveProfile fetches the profile and applies it if the session that
// requested it is still current. A stale profile is dropped and reported as
// (nil, nil), a stale failure is still returned as ErrSessionInvalidated.
func (s *Store) resolveProfile(ctx context.Context, gen uint64) (*UserProfile, error) {
	user, err := s.currentUser(ctx)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		if err != nil {
			// the transport may already have evicted the session for this failure
			s.logger.Debug("profile request of a superseded session failed: %v", err)
			return nil, invalidatedError(err)
		}
		s.logger.Debug("discarding profile result of a superseded session")
		return nil, nil
	}

	if err != nil {
		prev := s.clearLocked(ctx, true)
		s.commitLocked()
		s.enqueueUnauthenticatedLocked(LogoutReasonInvalidSession, prev)
		s.mu.Unlock()
		s.flush()

		s.logger.Info("profile resolution failed, session dropped: %v", err)
		s.emit(ctx, ActivityEvent{
			EventType: ActivityEventSessionInvalidated,
			Reason:    LogoutReasonInvalidSession,
			Metadata:  map[string]any{"error": err.Error()},
		})
		return nil, invalidatedError(err)
	}

	s.state.User = user.Clone()
	s.commitLocked()
	s.mu.Unlock()
	s.flush()

	s.logger.Debug("profile resolved: %s", print.MaybePrettyJSON(user))
	return user.Clone(), nil
}

// Logout clears the session and the persisted token, notifies subscribers
// and emits an UnauthenticatedEvent. Calling it while logged out only
// repeats the notifications.
func (s *Store) Logout(ctx context.Context) {
	s.logout(ctx, LogoutReasonUser)
}

// Evict ends the session after an authentication failure.
func (s *Store) Evict(ctx context.Context) {
	s.logout(ctx, LogoutReasonUnauthorized)
}

// EvictToken is the hook the transport calls after the API rejected token.
// The session ends only while it still holds token, or holds none; a
// rejection of a token a newer login replaced is ignored. It reports whether
// the session was ended.
func (s *Store) EvictToken(ctx context.Context, token string) bool {
	return s.end(ctx, LogoutReasonUnauthorized, func() bool {
		return s.state.Token == "" || s.state.Token == token
	})
}

func (s *Store) logout(ctx context.Context, reason LogoutReason) {
	s.end(ctx, reason, nil)
}

// end clears the session. A non-nil applies runs under the lock and can veto it.
func (s *Store) end(ctx context.Context, reason LogoutReason, applies func() bool) bool {
	s.mu.Lock()
	if applies != nil && !applies() {
		s.mu.Unlock()
		s.logger.Debug("session kept, %s does not apply to it", reason)
		return false
	}
	prev := s.clearLocked(ctx, true)
	s.commitLocked()
	s.enqueueUnauthenticatedLocked(reason, prev)
	s.mu.Unlock()
	s.flush()

	event := ActivityEvent{
		EventType: ActivityEventLogout,
		Reason:    reason,
	}
	if prev != nil {
		event.Username = prev.Username
		event.UserID = prev.ID
	}
	s.logger.Debug("session ended: %s", reason)
	s.emit(ctx, event)
	return true
}

// Subscribe registers a listener called with a snapshot after every
// committed mutation, in commit order.
func (s *Store) Subscribe(listener func(State)) (unsubscribe func()) {
	return s.changes.subscribe(listener)
}

// OnUnauthenticated registers a listener for the "became unauthenticated"
// signal.
func (s *Store) OnUnauthenticated(listener func(UnauthenticatedEvent)) (unsubscribe func()) {
	return s.unauthenticated.subscribe(listener)
}

// State returns a snapshot of the session
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Token returns the current bearer token, empty when logged out
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token
}

// User returns a copy of the current profile
func (s *Store) User() *UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.User.Clone()
}

// IsAuthenticated reports token presence
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsAuthenticated
}

// HasRole checks the role of the current profile
func (s *Store) HasRole(role Role) bool {
	return s.State().HasRole(role)
}

// HasAnyRole checks the current profile against a set of roles
func (s *Store) HasAnyRole(roles ...Role) bool {
	return s.State().HasAnyRole(roles...)
}

// TokenInfo decodes the current token without verifying it.
func (s *Store) TokenInfo() (*TokenClaims, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrSessionInvalidated
	}
	return ParseTokenClaims(token)
}

// Close disposes the store: listeners are dropped and later mutations no
// longer notify anyone.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.changes.close()
	s.unauthenticated.close()
	s.readyOnce.Do(func() { close(s.ready) })
	return nil
}

func (s *Store) currentUser(ctx context.Context) (*UserProfile, error) {
	user, err := s.remote.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, NewRemoteError(0, "", fmt.Errorf("empty profile"))
	}
	return user, nil
}

// readPersistedLocked returns the stored token or an empty string. Storage
// errors count as no credential.
func (s *Store) readPersistedLocked(ctx context.Context) string {
	token, err := s.credentials.Get(ctx, s.tokenKey)
	if err != nil {
		if !credentials.IsNotFound(err) {
			s.logger.Error("unable to read persisted credential: %v", err)
		}
		return ""
	}
	return token
}

// clearLocked drops token and user in one step and returns the previous
// profile.
func (s *Store) clearLocked(ctx context.Context, removePersisted bool) *UserProfile {
	prev := s.state.User

	if removePersisted {
		if err := s.credentials.Remove(ctx, s.tokenKey); err != nil {
			s.logger.Error("unable to remove persisted credential: %v", err)
		}
	}

	s.generation++
	s.state.Token = ""
	s.state.User = nil
	s.state.IsAuthenticated = false

	return prev
}

func (s *Store) commitLocked() {
	if s.closed {
		return
	}
	s.changes.enqueue(s.state.clone())
}

func (s *Store) enqueueUnauthenticatedLocked(reason LogoutReason, prev *UserProfile) {
	if s.closed {
		return
	}
	s.unauthenticated.enqueue(UnauthenticatedEvent{
		Reason:   reason,
		Previous: prev.Clone(),
		At:       s.now(),
	})
}

func (s *Store) flush() {
	s.changes.drain()
	s.unauthenticated.drain()
}

func (s *Store) emit(ctx context.Context, event ActivityEvent) {
	sink := normalizeActivitySink(s.activity)

	event.ID = uuid.New()
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

type loginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (l loginInput) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Username, validation.Required),
		validation.Field(&l.Password, validation.Required),
	)
}

func validateLogin(username, password string) error {
	if err := (loginInput{Username: username, Password: password}).Validate(); err != nil {
		return invalidInputError(err)
	}
	return nil
}
