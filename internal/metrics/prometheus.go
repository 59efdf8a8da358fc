package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusSink registers one metric family per scenario name, matching
// the {name}_success / {name}_error naming a caller would already be
// dashboarding against. Families are created lazily on first use since a
// process doesn't know its scenario names up front.
type PrometheusSink struct {
	factory promauto.Factory

	mu                sync.Mutex
	success           map[string]prometheus.Counter
	errors            map[string]prometheus.Counter
	latency           map[string]prometheus.Histogram
	concurrency       map[string]prometheus.Gauge
	goalTPS           map[string]prometheus.Gauge
	errorRateGoalTPS  map[string]prometheus.Gauge
	latencyGoalTPS    map[string]prometheus.Gauge
	concurrencyState  map[string]prometheus.Gauge
	errorRateState    map[string]prometheus.Gauge
}

// NewPrometheusSink builds a sink that registers its metric families
// against reg. Pass prometheus.DefaultRegisterer to publish on the default
// /metrics handler.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	return &PrometheusSink{
		factory:          promauto.With(reg),
		success:          map[string]prometheus.Counter{},
		errors:           map[string]prometheus.Counter{},
		latency:          map[string]prometheus.Histogram{},
		concurrency:      map[string]prometheus.Gauge{},
		goalTPS:          map[string]prometheus.Gauge{},
		errorRateGoalTPS: map[string]prometheus.Gauge{},
		latencyGoalTPS:   map[string]prometheus.Gauge{},
		concurrencyState: map[string]prometheus.Gauge{},
		errorRateState:   map[string]prometheus.Gauge{},
	}
}

func getOrCreate[T any](mu *sync.Mutex, m map[string]T, name string, create func() T) T {
	mu.Lock()
	defer mu.Unlock()
	if v, ok := m[name]; ok {
		return v
	}
	v := create()
	m[name] = v
	return v
}

func (s *PrometheusSink) successCounter(name string) prometheus.Counter {
	return getOrCreate(&s.mu, s.success, name, func() prometheus.Counter {
		return s.factory.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_success", name),
			Help: fmt.Sprintf("Successful transactions recorded by the %s scenario", name),
		})
	})
}

func (s *PrometheusSink) errorCounter(name string) prometheus.Counter {
	return getOrCreate(&s.mu, s.errors, name, func() prometheus.Counter {
		return s.factory.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_error", name),
			Help: fmt.Sprintf("Failed transactions recorded by the %s scenario", name),
		})
	})
}

func (s *PrometheusSink) latencyHistogram(name string) prometheus.Histogram {
	return getOrCreate(&s.mu, s.latency, name, func() prometheus.Histogram {
		return s.factory.NewHistogram(prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_latency", name),
			Help:    fmt.Sprintf("Transaction latency for the %s scenario", name),
			Buckets: prometheus.DefBuckets,
		})
	})
}

func (s *PrometheusSink) concurrencyGauge(name string) prometheus.Gauge {
	return getOrCreate(&s.mu, s.concurrency, name, func() prometheus.Gauge {
		return s.factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("balter_%s_concurrency", name),
			Help: fmt.Sprintf("Active worker count for the %s scenario", name),
		})
	})
}

func (s *PrometheusSink) goalTPSGauge(name string) prometheus.Gauge {
	return getOrCreate(&s.mu, s.goalTPS, name, func() prometheus.Gauge {
		return s.factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("balter_%s_goal_tps", name),
			Help: fmt.Sprintf("Combined controller goal TPS for the %s scenario", name),
		})
	})
}

func (s *PrometheusSink) errorRateGoalTPSGauge(name string) prometheus.Gauge {
	return getOrCreate(&s.mu, s.errorRateGoalTPS, name, func() prometheus.Gauge {
		return s.factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("balter_%s_erc_goal_tps", name),
			Help: fmt.Sprintf("Error-rate controller goal TPS for the %s scenario", name),
		})
	})
}

func (s *PrometheusSink) latencyGoalTPSGauge(name string) prometheus.Gauge {
	return getOrCreate(&s.mu, s.latencyGoalTPS, name, func() prometheus.Gauge {
		return s.factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("balter_%s_lc_goal_tps", name),
			Help: fmt.Sprintf("Latency controller goal TPS for the %s scenario", name),
		})
	})
}

func (s *PrometheusSink) concurrencyStateGauge(name string) prometheus.Gauge {
	return getOrCreate(&s.mu, s.concurrencyState, name, func() prometheus.Gauge {
		return s.factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("balter_%s_cc_state", name),
			Help: fmt.Sprintf("Concurrency controller state for the %s scenario (-1=tps_limited,0=stable,1=working)", name),
		})
	})
}

func (s *PrometheusSink) errorRateStateGauge(name string) prometheus.Gauge {
	return getOrCreate(&s.mu, s.errorRateState, name, func() prometheus.Gauge {
		return s.factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("balter_%s_erc_state", name),
			Help: fmt.Sprintf("Error-rate controller state for the %s scenario (0=big_step,1=small_step,2=stable)", name),
		})
	})
}

func (s *PrometheusSink) IncSuccess(name string)                   { s.successCounter(name).Inc() }
func (s *PrometheusSink) IncError(name string)                     { s.errorCounter(name).Inc() }
func (s *PrometheusSink) ObserveLatency(name string, seconds float64) {
	s.latencyHistogram(name).Observe(seconds)
}
func (s *PrometheusSink) SetConcurrency(name string, v float64)      { s.concurrencyGauge(name).Set(v) }
func (s *PrometheusSink) SetGoalTPS(name string, v float64)          { s.goalTPSGauge(name).Set(v) }
func (s *PrometheusSink) SetErrorRateGoalTPS(name string, v float64) { s.errorRateGoalTPSGauge(name).Set(v) }
func (s *PrometheusSink) SetLatencyGoalTPS(name string, v float64)   { s.latencyGoalTPSGauge(name).Set(v) }
func (s *PrometheusSink) SetConcurrencyState(name string, v float64) {
	s.concurrencyStateGauge(name).Set(v)
}
func (s *PrometheusSink) SetErrorRateState(name string, v float64) {
	s.errorRateStateGauge(name).Set(v)
}
