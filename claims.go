package auth

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

const textCodeTokenMalformed = "TOKEN_MALFORMED"

// TokenClaims are the claims the platform API signs into console tokens.
//
// The console cannot verify the signature, so these values are only
// informational (expiry hints, tenant display). Access decisions always go
// through the profile returned by the API.
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID   int64    `json:"user_id,omitempty"`
	Username string   `json:"username,omitempty"`
	TenantID string   `json:"tenant_id,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// ParseTokenClaims decodes a bearer token without verifying it.
func ParseTokenClaims(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, withSource(
			goerrors.New("unable to decode token claims", goerrors.CategoryValidation).
				WithTextCode(textCodeTokenMalformed).
				WithCode(goerrors.CodeBadRequest),
			err,
		)
	}
	return claims, nil
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IsExpired reports whether the token expired before now. Tokens without an
// expiry never expire.
func (c *TokenClaims) IsExpired(now time.Time) bool {
	exp := c.Expires()
	return !exp.IsZero() && !now.Before(exp)
}

// HasRole checks the role list embedded in the token
func (c *TokenClaims) HasRole(role Role) bool {
	return slices.Contains(c.Roles, string(role))
}
