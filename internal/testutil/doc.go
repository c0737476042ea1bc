// Package testutil contains builders and fake components used across tests
// to reduce boilerplate when wiring an orchestrator (interactions, generators,
// retrievers, session stores). They are not intended for production usage.
package testutil
