package auth

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Role is the coarse permission tier of a console user
type Role string

const (
	// RolePlatformAdmin operates the whole platform across tenants
	RolePlatformAdmin Role = "platform_admin"
	// RoleTenantAdmin administers a single tenant
	RoleTenantAdmin Role = "tenant_admin"
	// RoleTenantReporter reads reports inside a single tenant
	RoleTenantReporter Role = "tenant_reporter"
)

// UserProfile is the identity returned by the current user endpoint.
type UserProfile struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	Role      Role       `json:"role"`
	TenantID  string     `json:"tenant_id,omitempty"`
	Enabled   bool       `json:"enabled"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Clone returns a deep copy so snapshots never share mutable state.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	c := *u
	if u.CreatedAt != nil {
		t := *u.CreatedAt
		c.CreatedAt = &t
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

// Initials builds the avatar initials out of the username, splitting on
// whitespace, underscores and hyphens.
func (u *UserProfile) Initials() string {
	if u == nil {
		return ""
	}

	parts := strings.FieldsFunc(u.Username, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})

	initials := make([]rune, 0, 2)
	for _, part := range parts {
		r, _ := utf8.DecodeRuneInString(part)
		initials = append(initials, unicode.ToUpper(r))
		if len(initials) == 2 {
			break
		}
	}
	return string(initials)
}

// DisplayRole is the header label for the user's role
func (u *UserProfile) DisplayRole() string {
	if u == nil {
		return ""
	}
	return u.Role.Label()
}
