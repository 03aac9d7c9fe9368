package health

import (
	"sync"
	"time"
)

// Monitor tracks broker connectivity and device read outcomes for /health.
// Counts are kept over the current window and reset by ResetWindow.
type Monitor struct {
	mu          sync.RWMutex
	online      bool
	lastSuccess time.Time
	errors      int
	successes   int
	now         func() time.Time
}

// NewMonitor creates a monitor that starts offline until the broker connects
func NewMonitor() *Monitor {
	return &Monitor{now: time.Now}
}

// SetOnline records the broker connection state
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = online
}

// IsOnline returns whether the broker connection is up
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// RecordSuccess records a device whose record was published
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes++
	m.lastSuccess = m.now()
}

// RecordError records a device that failed for a cycle
func (m *Monitor) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// ResetWindow clears the success and error counts
func (m *Monitor) ResetWindow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = 0
	m.successes = 0
}

func (m *Monitor) GetLastSuccessTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSuccess
}

func (m *Monitor) GetErrorCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errors
}

func (m *Monitor) GetSuccessCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.successes
}
