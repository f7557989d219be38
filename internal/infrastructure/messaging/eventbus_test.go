package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/pkg/retry"
)

var at = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

func syncBus(r *retry.Retrier) *Bus {
	return NewBus(BusConfig{
		Async:          false,
		Workers:        2,
		HandlerTimeout: time.Second,
		Retrier:        r,
		DeadLetterSize: 10,
	})
}

func fastRetrier(attempts uint) *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(attempts),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(time.Millisecond),
		retry.WithRetryIf(func(error) bool { return true }),
	)
}

func TestBus_DeliversToSubscribersOfType(t *testing.T) {
	bus := syncBus(nil)
	defer bus.Close()

	var got []shared.EventType
	record := func(_ context.Context, e shared.Event) error {
		got = append(got, e.EventType())
		return nil
	}
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, record))
	require.NoError(t, bus.Subscribe(shared.EventStreakReset, record))

	bus.Publish(context.Background(),
		shared.NewLevelUpEvent("u1", 1, 2, "seedling", at),
		shared.NewXPAwardedEvent("u1", "daily_checkin", 10, 10, at),
		shared.NewStreakResetEvent("u1", 3, 3, 1, at),
	)

	assert.Equal(t, []shared.EventType{shared.EventLevelUp, shared.EventStreakReset}, got)
	assert.Equal(t, int64(3), bus.Metrics().Snapshot().Published)
}

func TestBus_HandlerSurvivesCancelledCaller(t *testing.T) {
	bus := syncBus(nil)
	defer bus.Close()

	var ctxErr error
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(ctx context.Context, _ shared.Event) error {
		ctxErr = ctx.Err()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, shared.NewLevelUpEvent("u1", 1, 2, "seedling", at))

	assert.NoError(t, ctxErr)
}

func TestBus_RetriesThenDeadLetters(t *testing.T) {
	bus := syncBus(fastRetrier(3))
	defer bus.Close()

	var calls int
	boom := errors.New("sink down")
	require.NoError(t, bus.SubscribeNamed(shared.EventAchievementUnlocked, "notify", func(context.Context, shared.Event) error {
		calls++
		return boom
	}))

	bus.Publish(context.Background(), shared.NewAchievementUnlockedEvent("u1", "first-day", "First Day", 25, at))

	assert.Equal(t, 3, calls)
	entries := bus.DeadLetters().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "notify", entries[0].HandlerName)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.ErrorIs(t, entries[0].Error, boom)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, int64(2), snap.Retries)
	assert.Equal(t, int64(3), snap.AttemptFailures)
}

func TestBus_RetrySucceeds(t *testing.T) {
	bus := syncBus(fastRetrier(3))
	defer bus.Close()

	var calls int
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(context.Context, shared.Event) error {
		calls++
		if calls == 1 {
			return errors.New("flaky")
		}
		return nil
	}))

	bus.Publish(context.Background(), shared.NewLevelUpEvent("u1", 1, 2, "seedling", at))

	assert.Equal(t, 2, calls)
	assert.Zero(t, bus.DeadLetters().Size())
	assert.Equal(t, int64(1), bus.Metrics().Snapshot().Successes)
}

func TestBus_PanicIsRecovered(t *testing.T) {
	bus := syncBus(nil)
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(context.Context, shared.Event) error {
		panic("boom")
	}))

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), shared.NewLevelUpEvent("u1", 1, 2, "seedling", at))
	})
	require.Equal(t, 1, bus.DeadLetters().Size())
	entry, ok := bus.DeadLetters().Pop()
	require.True(t, ok)
	assert.Contains(t, entry.Error.Error(), "handler panic")
}

func TestBus_TimeoutBoundsHandler(t *testing.T) {
	bus := NewBus(BusConfig{HandlerTimeout: 20 * time.Millisecond, DeadLetterSize: 10})
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventLevelUp, func(ctx context.Context, _ shared.Event) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	bus.Publish(context.Background(), shared.NewLevelUpEvent("u1", 1, 2, "seedling", at))

	require.Equal(t, 1, bus.DeadLetters().Size())
	assert.ErrorIs(t, bus.DeadLetters().Entries()[0].Error, context.DeadlineExceeded)
}

func TestBus_AsyncCloseWaitsForHandlers(t *testing.T) {
	bus := NewBus(BusConfig{Async: true, Workers: 2, HandlerTimeout: time.Second})

	var handled atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventDailyLogRecorded, func(context.Context, shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), shared.NewDailyLogRecordedEvent("u1", "2024-03-10", true, at))
		}()
	}
	wg.Wait()

	require.NoError(t, bus.Close())
	assert.Equal(t, int32(5), handled.Load())

	assert.ErrorIs(t, bus.Subscribe(shared.EventLevelUp, func(context.Context, shared.Event) error { return nil }), ErrEventBusClosed)
	bus.Publish(context.Background(), shared.NewDailyLogRecordedEvent("u1", "2024-03-11", true, at))
	assert.Equal(t, int32(5), handled.Load())
}

func TestBus_RejectsNilHandler(t *testing.T) {
	bus := syncBus(nil)
	defer bus.Close()
	assert.Error(t, bus.Subscribe(shared.EventLevelUp, nil))
}

func TestDeadLetterQueue_DropsOldest(t *testing.T) {
	q := NewDeadLetterQueue(2)
	for _, name := range []string{"a", "b", "c"} {
		q.Add(DeadLetterEntry{HandlerName: name})
	}
	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].HandlerName)
	assert.Equal(t, "c", entries[1].HandlerName)
}
