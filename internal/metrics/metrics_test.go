package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFieldObservations(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.ObserveField(3, "voltage", nil)
	pm.ObserveField(3, "voltage", nil)
	pm.ObserveField(3, "current", errors.New("timeout"))

	if got := testutil.ToFloat64(pm.fieldReads.WithLabelValues("3", "voltage")); got != 2 {
		t.Errorf("Expected 2 voltage reads, got %v", got)
	}
	if got := testutil.ToFloat64(pm.fieldErrors.WithLabelValues("3", "current")); got != 1 {
		t.Errorf("Expected 1 current error, got %v", got)
	}
	if got := testutil.ToFloat64(pm.fieldErrors.WithLabelValues("3", "voltage")); got != 0 {
		t.Errorf("Expected no voltage errors, got %v", got)
	}
}

func TestCountersAndGauge(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementCycles()
	pm.ObserveCycleDuration(1200 * time.Millisecond)
	pm.IncrementDeviceReads(1)
	pm.IncrementDeviceErrors(2)
	pm.IncrementMQTTPublishes()
	pm.IncrementMQTTErrors()
	pm.SetMQTTStatus(true)

	if got := testutil.ToFloat64(pm.cycles); got != 1 {
		t.Errorf("Expected 1 cycle, got %v", got)
	}
	if got := testutil.ToFloat64(pm.deviceErrors.WithLabelValues("2")); got != 1 {
		t.Errorf("Expected 1 error for device 2, got %v", got)
	}
	if got := testutil.ToFloat64(pm.mqttStatus); got != 1 {
		t.Errorf("Expected connected gauge 1, got %v", got)
	}
	pm.SetMQTTStatus(false)
	if got := testutil.ToFloat64(pm.mqttStatus); got != 0 {
		t.Errorf("Expected connected gauge 0, got %v", got)
	}
}

func TestServerRoutes(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.IncrementCycles()

	health := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"status":"healthy"}`)
	})
	ts := httptest.NewServer(NewServer(0, pm.Handler(), health).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "meters_poller_cycles_total 1") {
		t.Errorf("Expected cycles counter in exposition, got:\n%s", body)
	}

	resp, err = http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /health, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestNullMetricsIsSilent(t *testing.T) {
	var m MetricsCollector = NewNullMetrics()
	m.IncrementCycles()
	m.ObserveField(1, "voltage", errors.New("x"))
	m.SetMQTTStatus(true)
}
