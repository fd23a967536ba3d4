// Package core provides the foundational domain types and interfaces of the
// agent orchestration system. It defines the core abstractions for:
//
//   - Agents (polymorphic processing units exposed through a uniform
//     validate / process / status contract)
//   - Messages (immutable transport envelopes with typed payloads and
//     correlation-id based request/response linking)
//   - Agent status and metrics (health and performance state owned by the
//     supervising manager)
//   - Event records (append-only structured operational events)
//   - Replay records (appended experience tuples for later sampling)
//   - Pluggable transports and stores (MessageBus, ReplayStore, EventSink)
//
// The package intentionally keeps implementation concerns (transport
// backends, the broker, the supervisor, concrete agents) out of scope,
// exposing small interfaces to enable custom backends and extensions.
package core
