// Package metrics defines the outbound telemetry surface balter emits
// while a scenario runs. Sink is intentionally small: hooks and the driver
// call it synchronously on the transaction and sampling hot paths, so
// implementations must be cheap and non-blocking.
package metrics

// Sink receives per-scenario telemetry. Every method is namespaced by
// scenario name because a process can run more than one scenario
// concurrently.
type Sink interface {
	IncSuccess(scenario string)
	IncError(scenario string)
	ObserveLatency(scenario string, seconds float64)
	SetConcurrency(scenario string, workers float64)
	SetGoalTPS(scenario string, tps float64)
	SetErrorRateGoalTPS(scenario string, tps float64)
	SetLatencyGoalTPS(scenario string, tps float64)
	SetConcurrencyState(scenario string, state float64)
	SetErrorRateState(scenario string, state float64)
}
