package metrics

import "time"

// NullMetrics is a no-op implementation of MetricsCollector.
// Used when metrics.port is 0.
type NullMetrics struct{}

// NewNullMetrics creates a new NullMetrics instance
func NewNullMetrics() *NullMetrics {
	return &NullMetrics{}
}

func (nm *NullMetrics) IncrementCycles()                                   {}
func (nm *NullMetrics) ObserveCycleDuration(duration time.Duration)        {}
func (nm *NullMetrics) IncrementDeviceReads(deviceID int)                  {}
func (nm *NullMetrics) IncrementDeviceErrors(deviceID int)                 {}
func (nm *NullMetrics) ObserveField(deviceID int, field string, err error) {}
func (nm *NullMetrics) IncrementMQTTPublishes()                            {}
func (nm *NullMetrics) IncrementMQTTErrors()                               {}
func (nm *NullMetrics) SetMQTTStatus(online bool)                          {}
