// Package manager implements the agent supervisor: it builds agents from
// declarative configuration through a factory registry, registers them with
// the broker, runs the periodic health and performance check loops, and
// raises assistance escalations when an agent's observed metrics breach its
// configured thresholds.
package manager
