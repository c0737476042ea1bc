// Package core provides the foundational domain types and backend contracts
// used by agentflow. It defines the abstractions for:
//
//   - Sessions (bounded, append-only interaction logs per conversation)
//   - Interactions (one stored query/response exchange with provenance)
//   - Retrieval (documents, ranked snippets and the Retriever contract)
//   - Tools (calls, tagged results and registry descriptions)
//   - Generation (the opaque text Generator contract)
//   - Health probes shared by every pluggable component
//
// The package keeps implementation concerns (persistence, ranking, model
// clients, orchestration) out of scope and exposes small interfaces so that
// backends can be swapped at construction time.
package core
