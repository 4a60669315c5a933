package auth

import "context"

var userCtxKey = &contextKey{"user"}
var stateCtxKey = &contextKey{"session_state"}

type contextKey struct {
	name string
}

// WithContext sets the UserProfile in the given context
func WithContext(ctx context.Context, user *UserProfile) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*UserProfile, bool) {
	raw, ok := ctx.Value(userCtxKey).(*UserProfile)
	return raw, ok && raw != nil
}

// WithStateContext sets the session snapshot in the given context
func WithStateContext(ctx context.Context, state State) context.Context {
	return context.WithValue(ctx, stateCtxKey, state)
}

// StateFromContext extracts the session snapshot from the context
func StateFromContext(ctx context.Context) (State, bool) {
	raw, ok := ctx.Value(stateCtxKey).(State)
	return raw, ok
}
