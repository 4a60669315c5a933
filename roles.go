package auth

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	switch r {
	case RolePlatformAdmin, RoleTenantAdmin, RoleTenantReporter:
		return true
	default:
		return false
	}
}

// Label is the human readable name of the role. Unknown roles are shown
// verbatim.
func (r Role) Label() string {
	switch r {
	case RolePlatformAdmin:
		return "Platform Admin"
	case RoleTenantAdmin:
		return "Admin"
	case RoleTenantReporter:
		return "Reporter"
	default:
		return string(r)
	}
}

// IsAtLeast checks if this role meets the minimum required level.
// Unknown roles never meet any level.
func (r Role) IsAtLeast(minRole Role) bool {
	roleHierarchy := map[Role]int{
		RoleTenantReporter: 0,
		RoleTenantAdmin:    1,
		RolePlatformAdmin:  2,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// AllRoles returns all predefined roles from least to most privileged
func AllRoles() []Role {
	return []Role{
		RoleTenantReporter,
		RoleTenantAdmin,
		RolePlatformAdmin,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}
