package controllers

import (
	"time"

	"github.com/BalterLoadTesting/balter/internal/core"
)

const (
	latencyUnderRatio     = 0.7
	latencyAggressiveGain = 1.20
	latencyCruiseGain     = 1.05
	latencyMinBackoff     = 0.5
)

// LatencyController implements an AIMD search for the highest TPS that
// keeps the configured quantile under the target: additive-ish gains while
// comfortably under target, a smaller gain while approaching it, and a
// multiplicative backoff proportional to how far over target the
// measurement landed. kp scales the backoff aggressiveness and defaults to
// 1.0; a caller-supplied hint can soften or sharpen it.
type LatencyController struct {
	target   time.Duration
	quantile float64
	goalTPS  float64
	kp       float64
}

// NewLatency creates a controller targeting the given quantile of latency,
// starting its search from initialGuess (core.BaselineTPS if unset).
func NewLatency(target time.Duration, quantile, initialGuess float64) *LatencyController {
	if initialGuess <= 0 {
		initialGuess = core.BaselineTPS
	}
	return &LatencyController{target: target, quantile: quantile, goalTPS: initialGuess, kp: 1.0}
}

// SetKp overrides the backoff gain, per Scenario.Hint(HintLatencyKp(...)).
func (c *LatencyController) SetKp(kp float64) {
	if kp > 0 {
		c.kp = kp
	}
}

func (c *LatencyController) InitialTPS() float64 { return c.goalTPS }

// Current returns the controller's most recently computed goal TPS,
// for reporting purposes independent of the Controller interface.
func (c *LatencyController) Current() float64 { return c.goalTPS }

// IsStable satisfies StableReporter; the AIMD loop never truly settles, so
// it is always reported as not blocking termination on its own.
func (c *LatencyController) IsStable() bool { return true }

func (c *LatencyController) Limit(snap core.Snapshot) float64 {
	if snap.Total() == 0 || !snap.LatencyValid || snap.Latency <= 0 || c.target <= 0 {
		return c.goalTPS
	}

	ratio := float64(snap.Latency) / float64(c.target)
	switch {
	case ratio < latencyUnderRatio:
		c.goalTPS *= latencyAggressiveGain
	case ratio <= 1.0:
		c.goalTPS *= latencyCruiseGain
	default:
		backoff := 1 / (1 + c.kp*(ratio-1))
		if backoff < latencyMinBackoff {
			backoff = latencyMinBackoff
		}
		c.goalTPS *= backoff
	}

	if c.goalTPS < 1 {
		c.goalTPS = 1
	}
	return c.goalTPS
}
