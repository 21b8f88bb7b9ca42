package observability

import (
	"strconv"
	"sync"
	"time"
)

// Domain counter names.
const (
	CounterTimerStarted       = "timer_started"
	CounterTimerStopped       = "timer_stopped"
	CounterWorkEntryConfirmed = "work_entry_confirmed"
	CounterWorkDraftDiscarded = "work_draft_discarded"
	CounterSlaBreached        = "sla_breached"
	CounterEscalationCrossed  = "escalation_crossed"
	CounterEscalationNotified = "escalation_notified"
	CounterSweepRuns          = "sla_sweep_runs"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	latencyTotal map[string]time.Duration
	counters     map[string]int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests         map[string]int64 `json:"requests"`
	Errors           map[string]int64 `json:"errors"`
	AvgLatencyMillis map[string]int64 `json:"avg_latency_ms"`
	Counters         map[string]int64 `json:"counters"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		latencyTotal: make(map[string]time.Duration),
		counters:     make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latencyTotal[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Inc bumps a named domain counter.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

// Add increases a named domain counter by delta.
func (m *Metrics) Add(name string, delta int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

// Counter returns the current value of a domain counter.
func (m *Metrics) Counter(name string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// Snapshot copies all counters.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Requests:         map[string]int64{},
		Errors:           map[string]int64{},
		AvgLatencyMillis: map[string]int64{},
		Counters:         map[string]int64{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		snap.Requests[k] = v
		if v > 0 {
			snap.AvgLatencyMillis[k] = (m.latencyTotal[k] / time.Duration(v)).Milliseconds()
		}
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	for k, v := range m.counters {
		snap.Counters[k] = v
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
