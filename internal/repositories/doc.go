// Package repositories implements SQLite persistence for local client state.
//
// The only state that outlives a session is user preferences, stored as key/value rows.
//
// Key Implementations:
//   - [PreferenceRepository] : raw key/value access with upsert semantics
//   - [ThemeStore] : typed access to the theme preference, falling back to a default when unset
package repositories
