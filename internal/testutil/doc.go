// Package testutil provides shared test doubles for the orchestration core.
package testutil
