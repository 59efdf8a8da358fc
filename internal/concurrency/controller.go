// Package concurrency implements the worker-pool sizing state machine: grow
// while throughput keeps rising toward the goal, hold once it's within
// tolerance, and detect the point at which adding workers stops moving the
// needle at all (the target under test, not the harness, has become the
// bottleneck).
package concurrency

import (
	"math"
	"sync"

	"go.uber.org/zap"
)

// State reports what the controller concluded from the most recent
// snapshot.
type State int

const (
	// StateWorking means measured throughput is below goal and the
	// controller just grew (or is about to grow) the pool.
	StateWorking State = iota
	// StateStable means measured throughput is within tolerance of goal.
	StateStable
	// StateTPSLimited means throughput stopped responding to added
	// concurrency; the system under test, not the harness, is the
	// bottleneck.
	StateTPSLimited
)

func (s State) String() string {
	switch s {
	case StateWorking:
		return "working"
	case StateStable:
		return "stable"
	case StateTPSLimited:
		return "tps_limited"
	default:
		return "unknown"
	}
}

const (
	tolerance        = 0.05
	doublingCeiling  = 2000
	linearGrowthStep = 0.25
	historyWindow    = 4
	slopeThreshold   = 0.2
)

type observation struct {
	concurrency int
	tps         float64
}

// Result is what Evaluate hands back to the driver for one converged
// snapshot.
type Result struct {
	State          State
	NewConcurrency int
	// TPSCap is only meaningful when State == StateTPSLimited: the highest
	// throughput observed while the bottleneck held, used to cap the goal
	// TPS so the composite controller stops chasing an unreachable target.
	TPSCap float64
}

// Controller sizes a scenario's worker pool.
type Controller struct {
	mu          sync.Mutex
	concurrency int
	state       State
	history     []observation
	tpsCap      float64
	logger      *zap.Logger
}

// New creates a Controller starting at the given worker count.
func New(start int, logger *zap.Logger) *Controller {
	if start < 1 {
		start = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{concurrency: start, logger: logger}
}

// Concurrency returns the worker count the controller last settled on.
func (c *Controller) Concurrency() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.concurrency
}

// State returns the controller's current classification.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// NotifyGoalTPS lets the controller know the composite goal TPS moved. If
// the controller had previously declared TpsLimited and the new goal has
// dropped below the observed cap, the plateau is no longer relevant and the
// controller resumes normal growth evaluation.
func (c *Controller) NotifyGoalTPS(goalTPS float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateTPSLimited && goalTPS < c.tpsCap {
		c.state = StateWorking
		c.history = nil
	}
}

// Evaluate folds one converged measurement into the state machine and
// returns the resulting worker count (and, if the target has plateaued,
// the throughput cap observed at that plateau).
func (c *Controller) Evaluate(measuredTPS float64, currentConcurrency int, goalTPS float64) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.appendHistory(currentConcurrency, measuredTPS)

	if cap, limited := c.detectBottleneck(); limited {
		c.state = StateTPSLimited
		c.tpsCap = cap
		c.logger.Debug("concurrency controller detected a throughput plateau",
			zap.Int("concurrency", currentConcurrency), zap.Float64("tps_cap", cap))
		return Result{State: StateTPSLimited, NewConcurrency: c.concurrency, TPSCap: cap}
	}

	if goalTPS <= 0 || math.IsInf(goalTPS, 0) {
		c.state = StateStable
		return Result{State: StateStable, NewConcurrency: c.concurrency}
	}

	errRatio := (goalTPS - measuredTPS) / goalTPS
	switch {
	case math.Abs(errRatio) <= tolerance:
		c.state = StateStable
		return Result{State: StateStable, NewConcurrency: c.concurrency}
	case errRatio > tolerance:
		c.state = StateWorking
		c.concurrency = grow(c.concurrency)
		return Result{State: StateWorking, NewConcurrency: c.concurrency}
	default:
		// measured is already comfortably above goal; the rate limiter is
		// doing its job, no need to touch the pool.
		c.state = StateStable
		return Result{State: StateStable, NewConcurrency: c.concurrency}
	}
}

// OnGoalLowered checks whether a freshly lowered goal TPS is now far below
// what the current pool can already achieve, and if so halves the pool.
// achievableTPS is normally the most recent measured TPS.
func (c *Controller) OnGoalLowered(newGoalTPS, achievableTPS float64) (newConcurrency int, shrunk bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if newGoalTPS <= 0 || achievableTPS <= newGoalTPS*2 {
		return c.concurrency, false
	}
	c.concurrency = maxInt(1, c.concurrency/2)
	c.state = StateWorking
	c.history = nil
	return c.concurrency, true
}

func (c *Controller) appendHistory(concurrency int, tps float64) {
	c.history = append(c.history, observation{concurrency: concurrency, tps: tps})
	if len(c.history) > historyWindow {
		c.history = c.history[len(c.history)-historyWindow:]
	}
}

// detectBottleneck runs an ordinary-least-squares slope test over the last
// historyWindow (concurrency, tps) pairs. A slope near zero relative to the
// window's own scale means added concurrency isn't buying more throughput.
func (c *Controller) detectBottleneck() (cap float64, limited bool) {
	if len(c.history) < historyWindow {
		return 0, false
	}
	slope := olsSlope(c.history)

	var maxTPS float64
	var maxConcurrency int
	for _, o := range c.history {
		if o.tps > maxTPS {
			maxTPS = o.tps
		}
		if o.concurrency > maxConcurrency {
			maxConcurrency = o.concurrency
		}
	}
	if maxConcurrency == 0 || maxTPS == 0 {
		return 0, false
	}
	normalizer := maxTPS / float64(maxConcurrency)
	if normalizer == 0 {
		return 0, false
	}
	if slope/normalizer < slopeThreshold {
		return maxTPS, true
	}
	return 0, false
}

func olsSlope(obs []observation) float64 {
	n := float64(len(obs))
	var sumX, sumY, sumXY, sumXX float64
	for _, o := range obs {
		x := float64(o.concurrency)
		y := o.tps
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func grow(current int) int {
	var next int
	if current < doublingCeiling {
		next = current * 2
		if next > doublingCeiling {
			next = doublingCeiling
		}
	} else {
		next = current + int(math.Ceil(linearGrowthStep*float64(current)))
	}
	if next <= current {
		next = current + 1
	}
	return next
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
