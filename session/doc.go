// Package session houses concrete implementations of core.SessionStore.
// The interface itself (and the Session type) live in the core package to
// centralize domain contracts; keeping only implementations here prevents the
// orchestrator from depending on concrete storage.
//
// InMemoryStore is the default. The redis sub-package provides a shared,
// restart-surviving backend; only the wiring layer decides which one to use.
package session
