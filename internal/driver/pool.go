package driver

import (
	"context"
	"sync"
	"time"

	"github.com/BalterLoadTesting/balter/internal/ratelimit"
	"go.uber.org/zap"
)

// Body is a scenario's transaction loop body.
type Body func(context.Context) error

// crashWindow bounds how far back recordCrash looks when deciding whether
// too many workers have died recently.
const crashWindow = 10 * time.Second

// crashBudget is the fraction of the pool that may crash within
// crashWindow before the run is aborted.
const crashBudget = 0.5

// pool manages the dynamically-sized set of worker goroutines that call a
// scenario's body in a loop, gated by a shared rate limiter. A worker that
// panics is recovered and simply keeps looping (self-healing in place); a
// pool whose crash rate exceeds crashBudget calls onFatal and stops
// spawning further iterations.
type pool struct {
	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup

	baseCtx context.Context
	body    Body
	limiter *ratelimit.Limiter
	logger  *zap.Logger

	crashes []time.Time
	onFatal func(error)
	fatal   bool
}

func newPool(baseCtx context.Context, body Body, limiter *ratelimit.Limiter, logger *zap.Logger) *pool {
	return &pool{
		baseCtx: baseCtx,
		body:    body,
		limiter: limiter,
		logger:  logger,
	}
}

// SetCount grows or shrinks the pool to n workers.
func (p *pool) SetCount(n int) {
	if n < 1 {
		n = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fatal {
		return
	}
	cur := len(p.cancels)
	if n > cur {
		for i := 0; i < n-cur; i++ {
			ctx, cancel := context.WithCancel(p.baseCtx)
			p.cancels = append(p.cancels, cancel)
			p.wg.Add(1)
			go p.runWorker(ctx)
		}
	} else if n < cur {
		for i := cur - 1; i >= n; i-- {
			p.cancels[i]()
			p.cancels = p.cancels[:i]
		}
	}
}

// Count returns the number of workers currently spawned.
func (p *pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cancels)
}

func (p *pool) runWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := p.limiter.Acquire(ctx); err != nil {
			return
		}
		p.invoke(ctx)
		if p.isFatal() {
			return
		}
	}
}

func (p *pool) invoke(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("worker recovered from panic", zap.Any("panic", r))
			p.recordCrash()
		}
	}()
	_ = p.body(ctx)
}

func (p *pool) isFatal() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fatal
}

func (p *pool) recordCrash() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.crashes = append(p.crashes, now)
	cutoff := now.Add(-crashWindow)
	kept := p.crashes[:0]
	for _, t := range p.crashes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.crashes = kept

	total := len(p.cancels)
	if total > 0 && float64(len(p.crashes))/float64(total) > crashBudget && !p.fatal {
		p.fatal = true
		if p.onFatal != nil {
			p.onFatal(errFailureBudgetExceeded)
		}
	}
}

// Shutdown cancels every worker and waits up to timeout for them to drain,
// abandoning any stragglers still blocked in the caller's body.
func (p *pool) Shutdown(timeout time.Duration) {
	p.mu.Lock()
	for _, c := range p.cancels {
		c()
	}
	p.cancels = nil
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		p.logger.Warn("worker drain timed out, abandoning stragglers")
	}
}
