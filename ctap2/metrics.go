package ctap2

import "time"

// MetricsReporter receives dispatcher call outcomes. telemetry.Collector
// satisfies this interface structurally; ctap2 never imports
// internal/telemetry directly.
type MetricsReporter interface {
	ObserveCall(command string, status string, duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) ObserveCall(string, string, time.Duration, error) {}
