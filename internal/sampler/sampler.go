// Package sampler turns raw transaction counters into the converged
// Snapshot values controllers reason about. It owns the adaptive sampling
// interval: dt grows when transaction volume is too low to make a reading
// meaningful and shrinks when volume is high enough to sample faster
// without introducing noise.
package sampler

import (
	"context"
	"math"
	"time"

	"github.com/BalterLoadTesting/balter/internal/core"
	"github.com/BalterLoadTesting/balter/internal/hook"
	"go.uber.org/zap"
)

const (
	minDT = 100 * time.Millisecond
	maxDT = 2 * time.Second

	startDT = 200 * time.Millisecond

	lowVolumeThreshold  = 50
	highVolumeThreshold = 5000

	ringSize     = 8
	cvConvergence = 0.05
)

// Sampler periodically drains a Hook's counters and reservoir, maintains a
// short ring of recent windows, and calls onSnapshot once the ring shows
// the run has converged (or has flatlined at zero throughput).
type Sampler struct {
	hook        *hook.Hook
	quantile    float64
	concurrency func() int
	logger      *zap.Logger

	dt          time.Duration
	ring        []float64
	lastSuccess uint64
	lastError   uint64
}

// New creates a Sampler reading from h, reporting the given latency
// quantile, and querying concurrency() for the worker count to stamp on
// each snapshot.
func New(h *hook.Hook, quantile float64, concurrency func() int, logger *zap.Logger) *Sampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sampler{
		hook:        h,
		quantile:    quantile,
		concurrency: concurrency,
		logger:      logger,
		dt:          startDT,
	}
}

// Run drains samples until ctx is cancelled, invoking onSnapshot from the
// same goroutine each time a window converges or flatlines at zero.
func (s *Sampler) Run(ctx context.Context, onSnapshot func(core.Snapshot)) {
	windowStart := time.Now()
	timer := time.NewTimer(s.dt)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		now := time.Now()
		elapsed := now.Sub(windowStart)
		windowStart = now

		succ, errs := s.hook.Counts()
		deltaSucc := succ - s.lastSuccess
		deltaErr := errs - s.lastError
		s.lastSuccess, s.lastError = succ, errs
		total := deltaSucc + deltaErr

		s.adaptDT(total)
		timer.Reset(s.dt)

		tps := float64(total) / elapsed.Seconds()
		if math.IsNaN(tps) || math.IsInf(tps, 0) {
			continue
		}
		s.ring = append(s.ring, tps)
		if len(s.ring) > ringSize {
			s.ring = s.ring[1:]
		}
		if len(s.ring) < ringSize {
			continue
		}

		mean, cv := ringStats(s.ring)
		switch {
		case mean == 0:
			onSnapshot(s.buildSnapshot(0, 0, deltaSucc, deltaErr, now))
		case cv < cvConvergence:
			onSnapshot(s.buildSnapshot(mean, errorRate(deltaSucc, deltaErr), deltaSucc, deltaErr, now))
		}
	}
}

func (s *Sampler) adaptDT(total uint64) {
	switch {
	case total < lowVolumeThreshold:
		s.dt *= 2
		if s.dt > maxDT {
			s.dt = maxDT
		}
	case total > highVolumeThreshold:
		s.dt /= 2
		if s.dt < minDT {
			s.dt = minDT
		}
	}
}

func (s *Sampler) buildSnapshot(meanTPS, errRate float64, deltaSucc, deltaErr uint64, taken time.Time) core.Snapshot {
	lat, ok := s.hook.Reservoir().Quantile(s.quantile)
	concurrency := 0
	if s.concurrency != nil {
		concurrency = s.concurrency()
	}
	snap := core.Snapshot{
		MeasuredTPS:     meanTPS,
		ErrorRate:       errRate,
		LatencyQuantile: s.quantile,
		Latency:         lat,
		LatencyValid:    ok,
		SampleWindow:    s.dt,
		Concurrency:     concurrency,
		SuccessDelta:    deltaSucc,
		ErrorDelta:      deltaErr,
		Taken:           taken,
	}
	s.hook.PublishSnapshot(snap)
	return snap
}

func errorRate(success, errs uint64) float64 {
	total := success + errs
	if total == 0 {
		return 0
	}
	return float64(errs) / float64(total)
}

func ringStats(ring []float64) (mean, cv float64) {
	n := float64(len(ring))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range ring {
		sum += v
	}
	mean = sum / n
	if mean == 0 {
		return 0, 0
	}
	var variance float64
	for _, v := range ring {
		d := v - mean
		variance += d * d
	}
	variance /= n
	stddev := math.Sqrt(variance)
	return mean, stddev / mean
}
