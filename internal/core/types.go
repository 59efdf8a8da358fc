// Package core holds the shared types passed between balter's sampler,
// controllers and driver. Nothing in here talks to a network or a clock
// source directly; it is the vocabulary the rest of the engine shares.
package core

import (
	"errors"
	"time"
)

// ErrInvalidConstraint is wrapped by scenario builder methods and driver
// validation when a caller supplies an out-of-range goal.
var ErrInvalidConstraint = errors.New("balter: invalid constraint")

const (
	// BaselineTPS is the starting throughput guess controllers use before
	// any measurement exists.
	BaselineTPS = 256

	// DefaultConcurrencyStart is how many workers a scenario spawns before
	// the concurrency controller has taken a single measurement.
	DefaultConcurrencyStart = 10

	// DefaultSaturateErrorRate and DefaultOverloadErrorRate back the
	// Scenario.Saturate() and Scenario.Overload() convenience builders.
	DefaultSaturateErrorRate = 0.03
	DefaultOverloadErrorRate = 0.80
)

// Snapshot is one converged measurement window handed from the sampler to
// the controllers. A Snapshot is only produced once the sampler's ring of
// recent windows has stabilized (or once it has determined throughput is
// pinned at zero).
type Snapshot struct {
	MeasuredTPS     float64
	ErrorRate       float64
	LatencyQuantile float64
	Latency         time.Duration
	LatencyValid    bool
	SampleWindow    time.Duration
	Concurrency     int
	SuccessDelta    uint64
	ErrorDelta      uint64
	Taken           time.Time
}

// Total returns the number of transactions observed during the window.
func (s Snapshot) Total() uint64 { return s.SuccessDelta + s.ErrorDelta }

// RunStats is returned to the caller once a Scenario finishes running.
type RunStats struct {
	RunID             string
	ScenarioName      string
	ActualTPS         float64
	ErrorRate         float64
	LatencyByQuantile map[float64]time.Duration
	TotalSuccess      uint64
	TotalError        uint64
	Elapsed           time.Duration
	// TPSLimited is true if the concurrency controller concluded that
	// throughput plateaued despite continued worker growth.
	TPSLimited bool
	// TPSLimitedAt is the concurrency at which the plateau was detected,
	// zero if TPSLimited is false.
	TPSLimitedAt int
	// FailureBudgetExceeded is true if the run was terminated early because
	// too many workers crashed within the pool's crash window, rather than
	// running to its configured duration or stop condition.
	FailureBudgetExceeded bool
}
