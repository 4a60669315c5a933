// Package auth is the session and authorization core of the FlexMON console.
//
// Session store:
//   - Store owns the bearer token, the user profile behind it and the derived
//     authentication flag. One Store lives for the whole client process; build
//     it with NewStore, restore it with Bootstrap and dispose it with Close.
//   - The token is persisted through a credentials.Store under a single key.
//     The transport binder reads and clears the same key, so the store
//     re-checks storage before trusting its in-memory copy.
//   - IsAuthenticated means "a token is present". A restored token reports
//     authenticated until the first profile fetch proves otherwise.
//
// Reactivity:
//   - Subscribe delivers a State snapshot after every committed mutation, in
//     commit order. OnUnauthenticated delivers the logout signal; navigation
//     is left to adapters such as BindNavigator.
//
// Route guard:
//   - Authorize is a pure function from a State and required roles to a
//     Decision: render, redirect to login, or forbidden.
package auth
