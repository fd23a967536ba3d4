// Package bus provides transport backends implementing core.MessageBus.
// InMemoryBus is the process-local default; subpackages supply durable
// backends (redis) preserving the same contract.
package bus
