// Package controllers implements the independent throughput ceilings a
// scenario can be constrained by (a flat TPS cap, an error-rate target, a
// latency target) and composes them into a single goal via the smallest
// proposal, the same way the concurrency controller only ever sees one
// number to chase.
package controllers

import "github.com/BalterLoadTesting/balter/internal/core"

// Controller proposes a goal TPS. Implementations never see concurrency or
// worker state; they only reason about the throughput ceiling their own
// constraint implies.
type Controller interface {
	// InitialTPS is the starting guess used before any snapshot exists.
	InitialTPS() float64
	// Limit folds one converged snapshot into the controller's internal
	// state and returns its (possibly unchanged) goal TPS.
	Limit(snap core.Snapshot) float64
}

// StableReporter reports whether a controller has converged. Only the
// error-rate controller has a real notion of convergence; the flat cap and
// the latency controller's continuous AIMD loop implement it by always
// returning true, and a controller that does not implement it is treated as
// always stable.
type StableReporter interface {
	IsStable() bool
}
