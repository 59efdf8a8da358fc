package balter

import (
	"context"
	"fmt"
	"time"

	"github.com/BalterLoadTesting/balter/internal/core"
	"github.com/BalterLoadTesting/balter/internal/driver"
	"github.com/BalterLoadTesting/balter/internal/metrics"
	"go.uber.org/zap"
)

// ErrInvalidConstraint is returned by Run when a builder method was called
// with an out-of-range value.
var ErrInvalidConstraint = core.ErrInvalidConstraint

// RunStats summarizes a finished Scenario run.
type RunStats = core.RunStats

type hintKind int

const (
	hintConcurrency hintKind = iota
	hintTPS
	hintLatencyKp
)

// Hint gives a controller a starting point instead of letting it search
// from scratch. See HintConcurrency, HintTPS and HintLatencyKp.
type Hint struct {
	kind     hintKind
	intVal   int
	floatVal float64
}

// HintConcurrency seeds the concurrency controller's starting worker count.
func HintConcurrency(n int) Hint { return Hint{kind: hintConcurrency, intVal: n} }

// HintTPS seeds the initial goal TPS every constraint controller starts
// its search from, instead of core.BaselineTPS.
func HintTPS(tps uint32) Hint { return Hint{kind: hintTPS, intVal: int(tps)} }

// HintLatencyKp overrides the latency controller's backoff gain. Larger
// values back off harder when latency exceeds target; the default is 1.0.
func HintLatencyKp(kp float64) Hint { return Hint{kind: hintLatencyKp, floatVal: kp} }

// Scenario is a fluent builder for one load test run. Build one with New,
// chain constraint methods, then call Run.
type Scenario struct {
	name        string
	body        func(context.Context) error
	constraints driver.Constraints
	hints       driver.Hints
	logger      *zap.Logger
	sink        metrics.Sink
	err         error
}

// New creates a Scenario named name that runs body repeatedly under
// whatever constraints are chained on before Run is called.
func New(name string, body func(context.Context) error) *Scenario {
	return &Scenario{
		name: name,
		body: body,
		hints: driver.Hints{
			ConcurrencyStart: core.DefaultConcurrencyStart,
		},
	}
}

// TPS constrains the scenario to a flat throughput ceiling.
func (s *Scenario) TPS(tps uint32) *Scenario {
	v := float64(tps)
	s.constraints.MaxTPS = &v
	return s
}

// ErrorRate constrains the scenario to the highest throughput that keeps
// the observed error rate at or below rate, which must be in (0, 1).
func (s *Scenario) ErrorRate(rate float64) *Scenario {
	if rate <= 0 || rate >= 1 {
		s.err = fmt.Errorf("%w: error rate must be in (0,1), got %v", ErrInvalidConstraint, rate)
		return s
	}
	s.constraints.ErrorRateTarget = &rate
	return s
}

// Latency constrains the scenario to the highest throughput that keeps the
// given quantile (in (0, 1)) of transaction latency at or below target.
func (s *Scenario) Latency(target time.Duration, quantile float64) *Scenario {
	if target <= 0 {
		s.err = fmt.Errorf("%w: latency target must be positive", ErrInvalidConstraint)
		return s
	}
	if quantile <= 0 || quantile >= 1 {
		s.err = fmt.Errorf("%w: quantile must be in (0,1), got %v", ErrInvalidConstraint, quantile)
		return s
	}
	s.constraints.LatencyTarget = &target
	s.constraints.LatencyQuantile = &quantile
	return s
}

// Duration bounds how long the scenario runs. Without it, the scenario
// runs until its context is cancelled, or until StopWhenStable fires.
func (s *Scenario) Duration(d time.Duration) *Scenario {
	s.constraints.Duration = &d
	return s
}

// StopWhenStable ends an otherwise unbounded scenario once every
// constraint controller reports it has converged, instead of running
// forever.
func (s *Scenario) StopWhenStable() *Scenario {
	s.constraints.StopOnStable = true
	return s
}

// Saturate is shorthand for ErrorRate(0.03): find the throughput just
// below where the target starts meaningfully failing.
func (s *Scenario) Saturate() *Scenario {
	return s.ErrorRate(core.DefaultSaturateErrorRate)
}

// Overload is shorthand for ErrorRate(0.80): find the throughput at which
// the target is mostly failing, useful for capacity-limit testing.
func (s *Scenario) Overload() *Scenario {
	return s.ErrorRate(core.DefaultOverloadErrorRate)
}

// Hint supplies a starting point for one of the controllers.
func (s *Scenario) Hint(h Hint) *Scenario {
	switch h.kind {
	case hintConcurrency:
		s.hints.ConcurrencyStart = h.intVal
	case hintTPS:
		v := float64(h.intVal)
		s.hints.InitialTPS = &v
	case hintLatencyKp:
		v := h.floatVal
		s.hints.LatencyKp = &v
	}
	return s
}

// Logger attaches structured logging to the scenario's run. Without one,
// the scenario logs nothing.
func (s *Scenario) Logger(l *zap.Logger) *Scenario {
	s.logger = l
	return s
}

// MetricsSink attaches a metrics.Sink the scenario reports to as it runs.
// Without one, the scenario emits no metrics.
func (s *Scenario) MetricsSink(sink metrics.Sink) *Scenario {
	s.sink = sink
	return s
}

// Run executes the scenario until it terminates (by duration, by
// StopWhenStable, by ctx cancellation, or by too many workers panicking
// within the crash window) and returns the resulting statistics. Errors
// returned by the body are not inspected and do not end the run. It only
// returns an error for builder-time misconfiguration recorded by an
// earlier constraint method.
func (s *Scenario) Run(ctx context.Context) (RunStats, error) {
	if s.err != nil {
		return RunStats{}, s.err
	}
	r := &driver.Run{
		Name:        s.name,
		Body:        s.body,
		Constraints: s.constraints,
		Hints:       s.hints,
		Sink:        s.sink,
		Logger:      s.logger,
	}
	return r.Execute(ctx)
}
