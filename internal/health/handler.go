package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Overall health states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status             string    `json:"status"`
	Timestamp          time.Time `json:"timestamp"`
	Uptime             string    `json:"uptime"`
	MQTTConnected      bool      `json:"mqtt_connected"`
	LastSuccessfulPoll string    `json:"last_successful_poll"`
	ErrorCount         int       `json:"error_count"`
	SuccessCount       int       `json:"success_count"`
	Version            string    `json:"version,omitempty"`
}

// Checker provides health information
type Checker interface {
	IsOnline() bool
	GetLastSuccessTime() time.Time
	GetErrorCount() int
	GetSuccessCount() int
}

// Handler serves the /health endpoint
type Handler struct {
	startTime time.Time
	checker   Checker
	version   string
	now       func() time.Time
}

// NewHandler creates a new health check handler
func NewHandler(checker Checker, version string) *Handler {
	return &Handler{
		startTime: time.Now(),
		checker:   checker,
		version:   version,
		now:       time.Now,
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Status()

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(status); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode health status: %v", err), http.StatusInternalServerError)
	}
}

// Status computes the current health.
// Broker down is unhealthy; more than half the devices failing is unhealthy, more than a fifth degraded.
func (h *Handler) Status() HealthStatus {
	now := h.now()
	online := h.checker.IsOnline()
	lastSuccess := h.checker.GetLastSuccessTime()
	errorCount := h.checker.GetErrorCount()
	successCount := h.checker.GetSuccessCount()

	lastPoll := "never"
	if !lastSuccess.IsZero() {
		since := now.Sub(lastSuccess)
		switch {
		case since < time.Minute:
			lastPoll = fmt.Sprintf("%d seconds ago", int(since.Seconds()))
		case since < time.Hour:
			lastPoll = fmt.Sprintf("%d minutes ago", int(since.Minutes()))
		default:
			lastPoll = fmt.Sprintf("%d hours ago", int(since.Hours()))
		}
	}

	status := StatusHealthy
	if !online {
		status = StatusUnhealthy
	} else if total := errorCount + successCount; errorCount > 0 && total > 0 {
		rate := float64(errorCount) / float64(total) * 100.0
		if rate > 50.0 {
			status = StatusUnhealthy
		} else if rate > 20.0 {
			status = StatusDegraded
		}
	}

	return HealthStatus{
		Status:             status,
		Timestamp:          now,
		Uptime:             formatDuration(now.Sub(h.startTime)),
		MQTTConnected:      online,
		LastSuccessfulPoll: lastPoll,
		ErrorCount:         errorCount,
		SuccessCount:       successCount,
		Version:            h.version,
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours %d minutes", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%d days %d hours", int(d.Hours())/24, int(d.Hours())%24)
	}
}
