package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meters_poller"

// PrometheusMetrics exposes poller metrics through a private registry
type PrometheusMetrics struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	deviceReads   *prometheus.CounterVec
	deviceErrors  *prometheus.CounterVec
	fieldReads    *prometheus.CounterVec
	fieldErrors   *prometheus.CounterVec
	publishes     prometheus.Counter
	publishErrors prometheus.Counter
	mqttStatus    prometheus.Gauge
}

// NewPrometheusMetrics creates and registers all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	pm := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed poll cycles.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a poll cycle over all devices.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		deviceReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_reads_total",
			Help:      "Records produced per device.",
		}, []string{"device"}),
		deviceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_errors_total",
			Help:      "Cycles in which a device failed.",
		}, []string{"device"}),
		fieldReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_reads_total",
			Help:      "Register pair reads per device and field.",
		}, []string{"device", "field"}),
		fieldErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_errors_total",
			Help:      "Failed register pair reads per device and field.",
		}, []string{"device", "field"}),
		publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publishes_total",
			Help:      "Records published to MQTT.",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_errors_total",
			Help:      "Failed MQTT record publishes.",
		}),
		mqttStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the MQTT broker connection is up.",
		}),
	}

	pm.registry.MustRegister(
		pm.cycles, pm.cycleDuration,
		pm.deviceReads, pm.deviceErrors,
		pm.fieldReads, pm.fieldErrors,
		pm.publishes, pm.publishErrors, pm.mqttStatus,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return pm
}

// Registry returns the registry backing this collector
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// Handler serves the registry in the Prometheus exposition format
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

func (pm *PrometheusMetrics) IncrementCycles() {
	pm.cycles.Inc()
}

func (pm *PrometheusMetrics) ObserveCycleDuration(duration time.Duration) {
	pm.cycleDuration.Observe(duration.Seconds())
}

func (pm *PrometheusMetrics) IncrementDeviceReads(deviceID int) {
	pm.deviceReads.WithLabelValues(strconv.Itoa(deviceID)).Inc()
}

func (pm *PrometheusMetrics) IncrementDeviceErrors(deviceID int) {
	pm.deviceErrors.WithLabelValues(strconv.Itoa(deviceID)).Inc()
}

// ObserveField implements reader.FieldObserver
func (pm *PrometheusMetrics) ObserveField(deviceID int, field string, err error) {
	device := strconv.Itoa(deviceID)
	pm.fieldReads.WithLabelValues(device, field).Inc()
	if err != nil {
		pm.fieldErrors.WithLabelValues(device, field).Inc()
	}
}

func (pm *PrometheusMetrics) IncrementMQTTPublishes() {
	pm.publishes.Inc()
}

func (pm *PrometheusMetrics) IncrementMQTTErrors() {
	pm.publishErrors.Inc()
}

func (pm *PrometheusMetrics) SetMQTTStatus(online bool) {
	if online {
		pm.mqttStatus.Set(1)
	} else {
		pm.mqttStatus.Set(0)
	}
}
