// Package agent implements the query orchestrator.
//
// An Orchestrator composes the pluggable components of the system into one
// strictly ordered pipeline per query:
//
//  1. resolve the session id and load recent history
//  2. retrieve ranked context documents
//  3. classify intent and execute tools sequentially (fail fast)
//  4. assemble the labelled prompt and generate a response
//  5. score the response and derive a confidence value
//  6. persist the interaction
//
// Every stage failure aborts the call with a *ProcessingError naming the
// stage; the session history is only written once all stages succeeded.
// Orchestrator holds no mutable state of its own, so any number of queries
// may run concurrently. Per-session ordering is the SessionStore's concern.
package agent
