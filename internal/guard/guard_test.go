package guard

import (
	"context"
	"errors"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  gosync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func noop(context.Context) error { return nil }

func TestTask_EnforcesMinInterval(t *testing.T) {
	clock := newFakeClock()
	task := NewTask(10*time.Second, WithClock(clock.Now))

	ran, err := task.Run(context.Background(), noop)
	require.NoError(t, err)
	assert.True(t, ran)

	clock.Advance(3 * time.Second)
	ran, _ = task.Run(context.Background(), noop)
	assert.False(t, ran, "second run inside the interval must be discarded")

	clock.Advance(8 * time.Second)
	ran, _ = task.Run(context.Background(), noop)
	assert.True(t, ran)
}

func TestTask_DiscardsWhileInFlight(t *testing.T) {
	task := NewTask(0)
	started := make(chan struct{})
	release := make(chan struct{})

	var wg gosync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = task.Run(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.True(t, task.InFlight())

	ran, _ := task.Run(context.Background(), noop)
	assert.False(t, ran)
	ran, _ = task.RunForced(context.Background(), noop)
	assert.False(t, ran, "forced runs are still single-flight")

	close(release)
	wg.Wait()
	assert.False(t, task.InFlight())

	ran, _ = task.Run(context.Background(), noop)
	assert.True(t, ran)
}

func TestTask_ClearsInFlightOnError(t *testing.T) {
	task := NewTask(0)
	boom := errors.New("boom")

	ran, err := task.Run(context.Background(), func(context.Context) error { return boom })
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
	assert.False(t, task.InFlight())
}

func TestTask_RunForcedSkipsInterval(t *testing.T) {
	clock := newFakeClock()
	task := NewTask(10*time.Second, WithClock(clock.Now))

	ran, _ := task.Run(context.Background(), noop)
	require.True(t, ran)

	ran, _ = task.RunForced(context.Background(), noop)
	assert.True(t, ran)

	// Forced runs do not push the next window out.
	clock.Advance(11 * time.Second)
	ran, _ = task.Run(context.Background(), noop)
	assert.True(t, ran)
}

func TestTask_Interval(t *testing.T) {
	assert.Equal(t, 5*time.Second, NewTask(5*time.Second).Interval())
}

func TestDebouncer_CollapsesBurst(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, d.Pending())

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Pending())
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}
