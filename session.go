package auth

import (
	"fmt"
	"slices"
)

// State is an immutable snapshot of the console session.
//
// IsAuthenticated tracks token presence only. A restored token reports
// authenticated before the profile behind it has been confirmed.
type State struct {
	Token           string       `json:"-"`
	User            *UserProfile `json:"user,omitempty"`
	IsAuthenticated bool         `json:"is_authenticated"`
	IsBootstrapping bool         `json:"is_bootstrapping"`
}

// HasRole checks if the session user holds role
func (s State) HasRole(role Role) bool {
	if s.User == nil || !s.User.Role.IsValid() {
		return false
	}
	return s.User.Role == role
}

// HasAnyRole checks if the session user holds any of roles
func (s State) HasAnyRole(roles ...Role) bool {
	return slices.ContainsFunc(roles, s.HasRole)
}

// TenantID is the tenant scope of the session user, if any
func (s State) TenantID() string {
	if s.User == nil {
		return ""
	}
	return s.User.TenantID
}

func (s State) clone() State {
	s.User = s.User.Clone()
	return s
}

func (s State) String() string {
	user := "<nil>"
	if s.User != nil {
		user = fmt.Sprintf("%s(%s)", s.User.Username, s.User.Role)
	}
	return fmt.Sprintf(
		"authenticated=%t bootstrapping=%t user=%s",
		s.IsAuthenticated,
		s.IsBootstrapping,
		user,
	)
}
