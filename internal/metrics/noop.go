package metrics

// NoopSink discards everything. It is the default when a Scenario is run
// without an explicit MetricsSink.
type NoopSink struct{}

// NewNoopSink returns a Sink that does nothing.
func NewNoopSink() *NoopSink { return &NoopSink{} }

func (NoopSink) IncSuccess(string)                    {}
func (NoopSink) IncError(string)                      {}
func (NoopSink) ObserveLatency(string, float64)       {}
func (NoopSink) SetConcurrency(string, float64)       {}
func (NoopSink) SetGoalTPS(string, float64)           {}
func (NoopSink) SetErrorRateGoalTPS(string, float64)  {}
func (NoopSink) SetLatencyGoalTPS(string, float64)    {}
func (NoopSink) SetConcurrencyState(string, float64)  {}
func (NoopSink) SetErrorRateState(string, float64)    {}
