package auth

// Decision is the outcome of a route guard evaluation
type Decision int

const (
	// DecisionRender lets the protected content through
	DecisionRender Decision = iota
	// DecisionRedirectLogin sends the user to the login surface
	DecisionRedirectLogin
	// DecisionForbidden shows an access denied view in place
	DecisionForbidden
)

func (d Decision) String() string {
	switch d {
	case DecisionRender:
		return "render"
	case DecisionRedirectLogin:
		return "redirect_login"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Authorize maps a session snapshot and an optional set of required roles to
// a guard decision. Not being logged in always wins over missing
// permissions. When roles are required, a profile that has not loaded yet
// holds none of them.
func Authorize(state State, required ...Role) Decision {
	if !state.IsAuthenticated {
		return DecisionRedirectLogin
	}

	if len(required) == 0 {
		return DecisionRender
	}

	if state.HasAnyRole(required...) {
		return DecisionRender
	}

	return DecisionForbidden
}
