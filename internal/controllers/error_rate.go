package controllers

import (
	"math"

	"github.com/BalterLoadTesting/balter/internal/core"
)

// State is the error-rate controller's coarse-to-fine search phase.
type State int

const (
	// StateBigStep doubles or halves the goal until it's in the
	// neighborhood of the target error rate.
	StateBigStep State = iota
	// StateSmallStep nudges the goal by a fixed percentage.
	StateSmallStep
	// StateStable means the last few snapshots have all landed within
	// tolerance of the target.
	StateStable
)

const (
	// tolerance is the band below target treated as "comfortably under",
	// separating a converged small-step goal from one that should keep
	// climbing. The target itself is always treated as the upper bound.
	tolerance            = 0.01
	smallStepFraction    = 0.10
	stableStreakToSettle = 3
)

// ErrorRateController implements the coarse-then-fine search from the
// design notes: start by doubling until an overshoot is observed, halve and
// switch to small percentage steps, then declare Stable once a run of
// snapshots all land within tolerance of the target.
type ErrorRateController struct {
	target       float64
	goalTPS      float64
	state        State
	stableStreak int
}

// NewErrorRate creates a controller targeting the given error rate,
// starting its search from initialGuess (core.BaselineTPS if unset).
func NewErrorRate(target, initialGuess float64) *ErrorRateController {
	if initialGuess <= 0 {
		initialGuess = core.BaselineTPS
	}
	return &ErrorRateController{target: target, goalTPS: initialGuess, state: StateBigStep}
}

func (c *ErrorRateController) InitialTPS() float64 { return c.goalTPS }

// Current returns the controller's most recently computed goal TPS,
// for reporting purposes independent of the Controller interface.
func (c *ErrorRateController) Current() float64 { return c.goalTPS }

// State reports the controller's current search phase.
func (c *ErrorRateController) State() State { return c.state }

// IsStable satisfies StableReporter.
func (c *ErrorRateController) IsStable() bool { return c.state == StateStable }

func (c *ErrorRateController) Limit(snap core.Snapshot) float64 {
	if snap.Total() == 0 || math.IsNaN(snap.ErrorRate) {
		return c.goalTPS
	}
	errRate := snap.ErrorRate

	switch c.state {
	case StateBigStep:
		switch {
		case errRate > c.target:
			c.goalTPS /= 2
			c.state = StateSmallStep
			c.stableStreak = 0
		case errRate < c.target-tolerance:
			c.goalTPS *= 2
		}
	case StateSmallStep:
		switch {
		case errRate > c.target:
			c.goalTPS *= 1 - smallStepFraction
			c.stableStreak = 0
		case errRate < c.target-tolerance:
			c.goalTPS *= 1 + smallStepFraction
			c.stableStreak = 0
		default:
			c.stableStreak++
			if c.stableStreak >= stableStreakToSettle {
				c.state = StateStable
			}
		}
	case StateStable:
		if errRate > c.target {
			c.state = StateSmallStep
			c.stableStreak = 0
			c.goalTPS *= 1 - smallStepFraction
		}
	}

	if c.goalTPS < 1 {
		c.goalTPS = 1
	}
	return c.goalTPS
}
