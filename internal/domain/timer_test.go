package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

func TestActiveTimerElapsedIsMonotonicWhileRunning(t *testing.T) {
	timer := NewActiveTimer("tenant-1", "ticket-1", "user-1", t0)

	prev := int64(-1)
	for _, offset := range []time.Duration{0, time.Second, time.Minute, 90 * time.Minute, 26 * time.Hour} {
		elapsed := timer.ElapsedMs(t0.Add(offset))
		assert.GreaterOrEqual(t, elapsed, prev, "offset %s", offset)
		prev = elapsed
	}
	assert.Equal(t, (26 * time.Hour).Milliseconds(), prev)
}

func TestActiveTimerPauseExclusion(t *testing.T) {
	timer := NewActiveTimer("tenant-1", "ticket-1", "user-1", t0)

	require.True(t, timer.Pause(t0.Add(10*time.Minute)))
	assert.Equal(t, TimerStatePaused, timer.State())
	require.True(t, timer.Resume(t0.Add(20*time.Minute)))
	assert.Equal(t, TimerStateRunning, timer.State())

	result := timer.Finalize(t0.Add(30 * time.Minute))
	assert.Equal(t, (20 * time.Minute).Milliseconds(), result.DurationMs)
	assert.Equal(t, (10 * time.Minute).Milliseconds(), result.TotalPausedMs)
	assert.Equal(t, t0.Add(30*time.Minute), result.StoppedAt)
}

func TestActiveTimerFinalizeWhilePaused(t *testing.T) {
	timer := NewActiveTimer("tenant-1", "ticket-1", "user-1", t0)
	require.True(t, timer.Pause(t0.Add(5*time.Minute)))

	result := timer.Finalize(t0.Add(15 * time.Minute))
	assert.Equal(t, (5 * time.Minute).Milliseconds(), result.DurationMs)
	assert.Equal(t, (10 * time.Minute).Milliseconds(), result.TotalPausedMs)
}

func TestActiveTimerElapsedFrozenWhilePaused(t *testing.T) {
	timer := NewActiveTimer("tenant-1", "ticket-1", "user-1", t0)
	require.True(t, timer.Pause(t0.Add(3*time.Minute)))

	assert.Equal(t, timer.ElapsedMs(t0.Add(4*time.Minute)), timer.ElapsedMs(t0.Add(40*time.Minute)))
}

func TestActiveTimerElapsedClampsClockSkew(t *testing.T) {
	timer := NewActiveTimer("tenant-1", "ticket-1", "user-1", t0)

	assert.Zero(t, timer.ElapsedMs(t0.Add(-2*time.Minute)))

	require.True(t, timer.Pause(t0.Add(time.Minute)))
	assert.Zero(t, timer.OpenPauseMs(t0), "pause observed before it started")
	require.True(t, timer.Resume(t0))
	assert.Zero(t, timer.TotalPausedMs)
}

func TestActiveTimerRejectsRepeatedTransitions(t *testing.T) {
	timer := NewActiveTimer("tenant-1", "ticket-1", "user-1", t0)

	assert.False(t, timer.Resume(t0.Add(time.Minute)), "resume while running")
	require.True(t, timer.Pause(t0.Add(time.Minute)))
	assert.False(t, timer.Pause(t0.Add(2*time.Minute)), "pause while paused")
	assert.Equal(t, t0.Add(time.Minute), *timer.PausedAt)
}

func TestNilTimerIsAbsent(t *testing.T) {
	var timer *ActiveTimer
	assert.Equal(t, TimerStateAbsent, timer.State())
}

func TestRoundMinutes(t *testing.T) {
	cases := map[int64]int{
		0:       0,
		29999:   0,
		30000:   1,
		89999:   1,
		90000:   2,
		3600000: 60,
		-30000:  0,
		-30001:  -1,
	}
	for ms, want := range cases {
		assert.Equal(t, want, RoundMinutes(ms), "ms=%d", ms)
	}
}

func TestBillableAmountRoundsHalfUp(t *testing.T) {
	assert.Equal(t, int64(5000), BillableAmount(60, 5000))
	assert.Equal(t, int64(2500), BillableAmount(30, 5000))
	// 1 minute at 30 cents/h is exactly half a cent.
	assert.Equal(t, int64(1), BillableAmount(1, 30))
	assert.Equal(t, int64(0), BillableAmount(1, 29))
	assert.Equal(t, int64(1234), BillableAmount(7, 10577))
}

func TestWorkEntryAmountSkipsUnbilled(t *testing.T) {
	rate := 6000
	entry := WorkEntry{DurationMinutes: 45, IsBillable: true, HourlyRate: &rate}
	assert.Equal(t, int64(4500), entry.Amount())

	entry.IsBillable = false
	assert.Zero(t, entry.Amount())

	entry.IsBillable = true
	entry.HourlyRate = nil
	assert.Zero(t, entry.Amount())
}
