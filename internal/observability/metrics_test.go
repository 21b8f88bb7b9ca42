package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/timers", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/timers", "GET", 200, 30*time.Millisecond)
	m.RecordError("/timers", "GET", "NOT_FOUND")
	m.Inc(CounterTimerStarted)
	m.Add(CounterTimerStarted, 2)

	snap := m.Snapshot()

	assert.Equal(t, int64(2), snap.Requests["/timers|GET|200"])
	assert.Equal(t, int64(20), snap.AvgLatencyMillis["/timers|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/timers|GET|NOT_FOUND"])
	assert.Equal(t, int64(3), snap.Counters[CounterTimerStarted])
	assert.Equal(t, int64(3), m.Counter(CounterTimerStarted))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(CounterSlaBreached)
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	assert.Equal(t, int64(0), m.Counter(CounterSlaBreached))
	assert.Empty(t, m.Snapshot().Counters)
}
