// Package broker implements the master control program: the transport-facing
// coordinator that registers agents, routes point-to-point and broadcast
// messages, correlates requests with responses, and exposes synchronous
// request/response execution over the asynchronous bus.
package broker
