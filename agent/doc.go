// Package agent provides BaseAgent, the reusable lifecycle underneath every
// concrete agent: transport wiring, message dispatch, request processing with
// failure containment, self-observed metrics, acknowledgments and replay
// recording. Concrete agents supply their business logic as functional hooks
// or by embedding BaseAgent and overriding methods.
package agent
