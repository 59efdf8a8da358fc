// Package driver orchestrates one running scenario: it wires the hook,
// sampler, rate limiter, concurrency controller and constraint controllers
// together, spawns and resizes the worker pool, and produces the final
// RunStats once the run terminates.
package driver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/BalterLoadTesting/balter/internal/concurrency"
	"github.com/BalterLoadTesting/balter/internal/controllers"
	"github.com/BalterLoadTesting/balter/internal/core"
	"github.com/BalterLoadTesting/balter/internal/hook"
	"github.com/BalterLoadTesting/balter/internal/metrics"
	"github.com/BalterLoadTesting/balter/internal/ratelimit"
	"github.com/BalterLoadTesting/balter/internal/sampler"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// errFailureBudgetExceeded is surfaced through onFatal when too many
// workers crash within the crash window.
var errFailureBudgetExceeded = errors.New("driver: worker failure budget exceeded")

// shutdownDrain bounds how long Execute waits for workers to notice
// cancellation before abandoning them.
const shutdownDrain = 5 * time.Second

// reportQuantiles are always computed for the final RunStats regardless of
// which quantile the scenario constrained on.
var reportQuantiles = []float64{0.5, 0.9, 0.95, 0.99}

// Constraints bundles the ceilings a scenario can be built with. A nil
// field means that constraint was not configured.
type Constraints struct {
	MaxTPS          *float64
	ErrorRateTarget *float64
	LatencyTarget   *time.Duration
	LatencyQuantile *float64
	Duration        *time.Duration
	StopOnStable    bool
}

// Validate rejects out-of-range constraint values at builder time, before
// any worker is spawned.
func (c Constraints) Validate() error {
	if c.ErrorRateTarget != nil && (*c.ErrorRateTarget <= 0 || *c.ErrorRateTarget >= 1) {
		return fmt.Errorf("%w: error rate target must be in (0,1), got %v", core.ErrInvalidConstraint, *c.ErrorRateTarget)
	}
	if c.LatencyQuantile != nil && (*c.LatencyQuantile <= 0 || *c.LatencyQuantile >= 1) {
		return fmt.Errorf("%w: latency quantile must be in (0,1), got %v", core.ErrInvalidConstraint, *c.LatencyQuantile)
	}
	if c.LatencyTarget != nil && *c.LatencyTarget <= 0 {
		return fmt.Errorf("%w: latency target must be positive", core.ErrInvalidConstraint)
	}
	if c.MaxTPS != nil && *c.MaxTPS < 0 {
		return fmt.Errorf("%w: tps must not be negative", core.ErrInvalidConstraint)
	}
	return nil
}

// Hints carries optional starting-point overrides a caller can supply to
// shortcut the search a controller would otherwise perform from scratch.
type Hints struct {
	ConcurrencyStart int
	InitialTPS       *float64
	LatencyKp        *float64
}

// Run describes one scenario execution.
type Run struct {
	Name        string
	Body        Body
	Constraints Constraints
	Hints       Hints
	Sink        metrics.Sink
	Logger      *zap.Logger
}

// Execute runs the scenario to completion, returning aggregated
// statistics. It returns an error only for builder-time misconfiguration;
// once a run has started, worker crashes and target failures are absorbed
// into the returned statistics rather than surfaced as errors.
func (r *Run) Execute(ctx context.Context) (core.RunStats, error) {
	if err := r.Constraints.Validate(); err != nil {
		return core.RunStats{}, err
	}

	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := r.Sink
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	runID := uuid.NewString()
	logger = logger.With(zap.String("scenario", r.Name), zap.String("run_id", runID))

	quantile := 0.99
	if r.Constraints.LatencyQuantile != nil {
		quantile = *r.Constraints.LatencyQuantile
	}

	h := hook.New(r.Name, sink)
	hookCtx := hook.WithHook(ctx, h)

	composite, erc, lc := buildComposite(r.Constraints, r.Hints)
	goalTPS := composite.InitialTPS()

	concurrencyStart := r.Hints.ConcurrencyStart
	if concurrencyStart <= 0 {
		concurrencyStart = core.DefaultConcurrencyStart
	}
	cc := concurrency.New(concurrencyStart, logger)

	limiter := ratelimit.New(goalTPS)

	var runCtx context.Context
	var cancel context.CancelFunc
	if r.Constraints.Duration != nil {
		runCtx, cancel = context.WithTimeout(hookCtx, *r.Constraints.Duration)
	} else {
		runCtx, cancel = context.WithCancel(hookCtx)
	}
	defer cancel()

	var failureBudgetExceeded atomic.Bool
	wp := newPool(runCtx, r.Body, limiter, logger)
	wp.onFatal = func(err error) {
		logger.Warn("terminating run early", zap.Error(err))
		failureBudgetExceeded.Store(true)
		cancel()
	}
	wp.SetCount(cc.Concurrency())

	started := time.Now()
	var tpsLimited bool
	var tpsLimitedAt int

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		samp := sampler.New(h, quantile, wp.Count, logger)
		samp.Run(gctx, func(snap core.Snapshot) {
			sink.SetConcurrency(r.Name, float64(wp.Count()))

			if snap.MeasuredTPS == 0 {
				// guard: no controller update on a dead or not-yet-warm target.
				return
			}
			if age := time.Since(snap.Taken); age > 3*snap.SampleWindow {
				logger.Debug("dropping stale snapshot", zap.Duration("age", age))
				return
			}

			if !snap.LatencyValid && r.Constraints.LatencyTarget != nil {
				return // guard: NaN latency quantile, skip this tick's controller update entirely
			}

			cc.NotifyGoalTPS(goalTPS)
			res := cc.Evaluate(snap.MeasuredTPS, wp.Count(), goalTPS)
			sink.SetConcurrencyState(r.Name, concurrencyStateMetric(res.State))

			switch res.State {
			case concurrency.StateWorking:
				wp.SetCount(res.NewConcurrency)
			case concurrency.StateTPSLimited:
				if !tpsLimited {
					tpsLimited = true
					tpsLimitedAt = res.NewConcurrency
				}
				if res.TPSCap < goalTPS {
					goalTPS = res.TPSCap
				}
			}

			prevGoal := goalTPS
			newLimit := composite.Limit(snap)
			if tpsLimited && newLimit > goalTPS {
				newLimit = goalTPS
			}
			goalTPS = newLimit
			limiter.SetTPS(goalTPS)
			sink.SetGoalTPS(r.Name, goalTPS)
			if erc != nil {
				sink.SetErrorRateGoalTPS(r.Name, erc.Current())
				sink.SetErrorRateState(r.Name, float64(erc.State()))
			}
			if lc != nil {
				sink.SetLatencyGoalTPS(r.Name, lc.Current())
			}

			if goalTPS < prevGoal {
				if newConc, shrunk := cc.OnGoalLowered(goalTPS, snap.MeasuredTPS); shrunk {
					wp.SetCount(newConc)
				}
			}

			if r.Constraints.Duration == nil && r.Constraints.StopOnStable &&
				res.State == concurrency.StateStable && composite.AllStable() {
				logger.Info("all controllers reported stable, stopping run")
				cancel()
			}
		})
		return nil
	})

	_ = g.Wait()
	wp.Shutdown(shutdownDrain)

	elapsed := time.Since(started)
	success, errCount := h.Counts()

	stats := core.RunStats{
		RunID:                 runID,
		ScenarioName:          r.Name,
		TotalSuccess:          success,
		TotalError:            errCount,
		Elapsed:               elapsed,
		TPSLimited:            tpsLimited,
		TPSLimitedAt:          tpsLimitedAt,
		FailureBudgetExceeded: failureBudgetExceeded.Load(),
		LatencyByQuantile:     map[float64]time.Duration{},
	}
	if elapsed > 0 {
		stats.ActualTPS = float64(success+errCount) / elapsed.Seconds()
	}
	if total := success + errCount; total > 0 {
		stats.ErrorRate = float64(errCount) / float64(total)
	}
	for _, q := range reportQuantiles {
		if lat, ok := h.Reservoir().Quantile(q); ok {
			stats.LatencyByQuantile[q] = lat
		}
	}
	if lat, ok := h.Reservoir().Quantile(quantile); ok {
		stats.LatencyByQuantile[quantile] = lat
	}

	return stats, nil
}

// concurrencyStateMetric maps the concurrency controller's internal state
// to the published gauge convention: -1 TpsLimited, 0 Stable, 1 Working.
func concurrencyStateMetric(s concurrency.State) float64 {
	switch s {
	case concurrency.StateTPSLimited:
		return -1
	case concurrency.StateStable:
		return 0
	default:
		return 1
	}
}

func buildComposite(c Constraints, h Hints) (*controllers.Composite, *controllers.ErrorRateController, *controllers.LatencyController) {
	initial := float64(core.BaselineTPS)
	if h.InitialTPS != nil {
		initial = *h.InitialTPS
	}

	var list []controllers.Controller
	var erc *controllers.ErrorRateController
	var lc *controllers.LatencyController

	if c.MaxTPS != nil {
		list = append(list, controllers.NewConstant(*c.MaxTPS))
	}
	if c.ErrorRateTarget != nil {
		erc = controllers.NewErrorRate(*c.ErrorRateTarget, initial)
		list = append(list, erc)
	}
	if c.LatencyTarget != nil && c.LatencyQuantile != nil {
		lc = controllers.NewLatency(*c.LatencyTarget, *c.LatencyQuantile, initial)
		if h.LatencyKp != nil {
			lc.SetKp(*h.LatencyKp)
		}
		list = append(list, lc)
	}
	if len(list) == 0 {
		list = append(list, controllers.NewConstant(math.Inf(1)))
	}
	return controllers.NewComposite(list...), erc, lc
}
