package metrics

import "time"

// MetricsCollector defines the interface for collecting poller metrics.
//
// Implementations:
//   - PrometheusMetrics: client_golang counters served on /metrics
//   - NullMetrics: no-op implementation when metrics are disabled
type MetricsCollector interface {
	// IncrementCycles counts one completed poll cycle
	IncrementCycles()

	// ObserveCycleDuration records how long a poll cycle took
	ObserveCycleDuration(duration time.Duration)

	// IncrementDeviceReads counts a device whose record was produced
	IncrementDeviceReads(deviceID int)

	// IncrementDeviceErrors counts a device that failed for the cycle
	IncrementDeviceErrors(deviceID int)

	// ObserveField counts a single field read, failed when err is non-nil
	ObserveField(deviceID int, field string, err error)

	// IncrementMQTTPublishes counts a successful record publish
	IncrementMQTTPublishes()

	// IncrementMQTTErrors counts a failed record publish
	IncrementMQTTErrors()

	// SetMQTTStatus sets the broker connection gauge
	SetMQTTStatus(online bool)
}

// Compile-time verification of both implementations
var (
	_ MetricsCollector = (*PrometheusMetrics)(nil)
	_ MetricsCollector = (*NullMetrics)(nil)
)
