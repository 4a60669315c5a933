package auth

import "strings"

// IsLoginPath reports whether path already points at the login surface.
func IsLoginPath(path, loginPath string) bool {
	if loginPath == "" {
		return false
	}
	return strings.Contains(path, loginPath)
}

// BindNavigator redirects nav to loginPath every time the store becomes
// unauthenticated, unless the shell is already showing the login surface.
func BindNavigator(store *Store, nav Navigator, loginPath string) (unbind func()) {
	if store == nil || nav == nil {
		return func() {}
	}

	return store.OnUnauthenticated(func(UnauthenticatedEvent) {
		if IsLoginPath(nav.CurrentPath(), loginPath) {
			return
		}
		nav.RedirectTo(loginPath)
	})
}
