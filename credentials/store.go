// Package credentials persists the console bearer token.
//
// The package is intentionally dumb: a Store is a durable key/value cell with
// get, set and remove. The session store and the transport binder share one
// Store and one key so neither can observe a credential the other removed.
package credentials

import (
	"context"
	"errors"
)

// DefaultTokenKey is the key the console keeps its bearer token under.
const DefaultTokenKey = "flexmon_token"

// ErrNotFound is returned by Get when nothing is stored under the key
var ErrNotFound = errors.New("credential not found")

// Store is a durable key/value store for opaque credentials.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// RemoveIf removes key only while it still holds expected, and reports
	// whether it did. The compare and the delete are one atomic step.
	RemoveIf(ctx context.Context, key, expected string) (bool, error)
}

// IsNotFound reports whether err means the key holds no credential.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
