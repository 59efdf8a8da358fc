package controllers

import (
	"math"

	"github.com/BalterLoadTesting/balter/internal/core"
)

// Composite folds several independent controllers into one by always
// taking the smallest of their proposals, so a scenario constrained on
// both error rate and latency never exceeds whichever ceiling is tighter.
type Composite struct {
	controllers []Controller
}

// NewComposite wraps zero or more controllers. An empty Composite proposes
// an unbounded goal TPS.
func NewComposite(cs ...Controller) *Composite {
	return &Composite{controllers: cs}
}

func (c *Composite) InitialTPS() float64 {
	min := math.Inf(1)
	for _, ctl := range c.controllers {
		if v := ctl.InitialTPS(); v < min {
			min = v
		}
	}
	return min
}

func (c *Composite) Limit(snap core.Snapshot) float64 {
	min := math.Inf(1)
	for _, ctl := range c.controllers {
		if v := ctl.Limit(snap); v < min {
			min = v
		}
	}
	return min
}

// AllStable reports whether every constituent controller that has an
// opinion on stability currently reports stable. Controllers with no such
// opinion (StableReporter unimplemented) never block this.
func (c *Composite) AllStable() bool {
	for _, ctl := range c.controllers {
		if sr, ok := ctl.(StableReporter); ok && !sr.IsStable() {
			return false
		}
	}
	return true
}
