package bundler

import (
	"sync"
	"time"
)

// Metrics tracks bundler runs for the lifetime of the process.
type Metrics struct {
	TotalRuns       int64
	SuccessfulRuns  int64
	FailedRuns      int64
	AverageDuration time.Duration
	TotalDuration   time.Duration
	mutex           sync.RWMutex
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds one run.
func (m *Metrics) Record(duration time.Duration, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRuns++
	m.TotalDuration += duration

	if err != nil {
		m.FailedRuns++
	} else {
		m.SuccessfulRuns++
	}

	m.AverageDuration = m.TotalDuration / time.Duration(m.TotalRuns)
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Metrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return Metrics{
		TotalRuns:       m.TotalRuns,
		SuccessfulRuns:  m.SuccessfulRuns,
		FailedRuns:      m.FailedRuns,
		AverageDuration: m.AverageDuration,
		TotalDuration:   m.TotalDuration,
	}
}

// SuccessRate returns the success rate as a percentage
func (m *Metrics) SuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.TotalRuns == 0 {
		return 0.0
	}

	return float64(m.SuccessfulRuns) / float64(m.TotalRuns) * 100.0
}
