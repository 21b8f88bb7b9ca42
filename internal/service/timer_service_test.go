package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/events"
	"github.com/spec-kit/sla-timekeeper/internal/observability"
	"github.com/spec-kit/sla-timekeeper/pkg/util/errorutil"
)

func TestTimerPauseExcludedFromDuration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.ticket(t, domain.TicketPriorityHigh)
	actor := agent("u-1")

	_, err := h.timer.Start(ctx, actor, ticket.ID)
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	view, err := h.timer.Pause(ctx, actor, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerStatePaused, view.State)

	h.clock.Advance(10 * time.Minute)
	view, err = h.timer.Resume(ctx, actor, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerStateRunning, view.State)
	assert.Equal(t, (10 * time.Minute).Milliseconds(), view.Timer.TotalPausedMs)

	h.clock.Advance(10 * time.Minute)
	outcome, err := h.timer.Stop(ctx, actor, ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, (20 * time.Minute).Milliseconds(), outcome.Result.DurationMs)
	assert.Equal(t, (10 * time.Minute).Milliseconds(), outcome.Result.TotalPausedMs)
	assert.Equal(t, t0.Add(30*time.Minute), outcome.Result.StoppedAt)
	assert.Equal(t, 20, outcome.Draft.DurationMinutes)
	assert.Equal(t, 10, outcome.Draft.PausedMinutes)
	assert.Equal(t, 0, h.timers.Len())
}

func TestTimerStopWhilePaused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.ticket(t, domain.TicketPriorityLow)
	actor := agent("u-1")

	_, err := h.timer.Start(ctx, actor, ticket.ID)
	require.NoError(t, err)
	h.clock.Advance(5 * time.Minute)
	_, err = h.timer.Pause(ctx, actor, ticket.ID)
	require.NoError(t, err)
	h.clock.Advance(10 * time.Minute)

	outcome, err := h.timer.Stop(ctx, actor, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, (5 * time.Minute).Milliseconds(), outcome.Result.DurationMs)
	assert.Equal(t, (10 * time.Minute).Milliseconds(), outcome.Result.TotalPausedMs)
}

func TestTimerSecondStartConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.ticket(t, domain.TicketPriorityMedium)

	_, err := h.timer.Start(ctx, agent("u-1"), ticket.ID)
	require.NoError(t, err)

	_, err = h.timer.Start(ctx, agent("u-1"), ticket.ID)
	require.Error(t, err)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeConflict))

	_, err = h.timer.Start(ctx, agent("u-2"), ticket.ID)
	assert.NoError(t, err)
}

func TestTimerConcurrentStartHasOneWinner(t *testing.T) {
	h := newHarness(t)
	ticket := h.ticket(t, domain.TicketPriorityMedium)
	actor := agent("u-1")

	const racers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.timer.Start(context.Background(), actor, ticket.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errorutil.HasCode(err, errorutil.CodeConflict):
				conflicts++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)
	assert.Equal(t, 1, h.timers.Len())
	assert.Equal(t, int64(1), h.metrics.Counter(observability.CounterTimerStarted))
}

func TestTimerInvalidTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.ticket(t, domain.TicketPriorityMedium)
	actor := agent("u-1")

	_, err := h.timer.Pause(ctx, actor, ticket.ID)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeInvalidState), "pause without timer")

	_, err = h.timer.Stop(ctx, actor, ticket.ID)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeInvalidState), "stop without timer")

	_, err = h.timer.Start(ctx, actor, ticket.ID)
	require.NoError(t, err)

	_, err = h.timer.Resume(ctx, actor, ticket.ID)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeInvalidState), "resume while running")

	_, err = h.timer.Pause(ctx, actor, ticket.ID)
	require.NoError(t, err)
	pausedAt := h.clock.Now()

	h.clock.Advance(time.Minute)
	_, err = h.timer.Pause(ctx, actor, ticket.ID)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeInvalidState), "pause while paused")

	stored, err := h.timers.Get(ctx, ticket.ID, actor.UserID)
	require.NoError(t, err)
	require.NotNil(t, stored.PausedAt)
	assert.Equal(t, pausedAt, *stored.PausedAt, "rejected pause must not move pausedAt")
}

func TestTimerUnknownTicket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.timer.Start(ctx, agent("u-1"), "missing")
	assert.True(t, errorutil.HasCode(err, errorutil.CodeNotFound))

	foreign := h.tickets.Put(domain.Ticket{TenantID: "tenant-b", CreatedAt: t0})
	_, err = h.timer.Start(ctx, agent("u-1"), foreign.ID)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeNotFound))
}

func TestTimerReads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.ticket(t, domain.TicketPriorityMedium)
	second := h.ticket(t, domain.TicketPriorityHigh)
	actor := agent("u-1")

	view, err := h.timer.GetTimer(ctx, actor, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerStateAbsent, view.State)
	assert.Nil(t, view.Timer)

	_, err = h.timer.Start(ctx, actor, first.ID)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Minute)
	_, err = h.timer.Start(ctx, actor, second.ID)
	require.NoError(t, err)
	h.clock.Advance(3 * time.Minute)

	view, err = h.timer.GetTimer(ctx, actor, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TimerStateRunning, view.State)
	assert.Equal(t, (5 * time.Minute).Milliseconds(), view.ElapsedMs)
	assert.Equal(t, view.ElapsedMs, h.timer.ElapsedNow(view.Timer))

	views, err := h.timer.ListUserTimers(ctx, actor)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, first.ID, views[0].Timer.TicketID)
	assert.Equal(t, (3 * time.Minute).Milliseconds(), views[1].ElapsedMs)

	others, err := h.timer.ListUserTimers(ctx, agent("u-2"))
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestTimerPublishesLifecycleEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ticket := h.ticket(t, domain.TicketPriorityMedium)
	actor := agent("u-1")

	_, err := h.timer.Start(ctx, actor, ticket.ID)
	require.NoError(t, err)
	h.clock.Advance(90 * time.Second)
	_, err = h.timer.Stop(ctx, actor, ticket.ID)
	require.NoError(t, err)

	started := h.eventsOf(events.EventTimerStarted)
	require.Len(t, started, 1)
	assert.Equal(t, tenantID, started[0].TenantID)
	assert.NotEmpty(t, started[0].ID)

	stopped := h.eventsOf(events.EventTimerStopped)
	require.Len(t, stopped, 1)
	payload, ok := stopped[0].Payload.(events.TimerStoppedPayload)
	require.True(t, ok)
	assert.Equal(t, int64(90000), payload.DurationMs)
}
