package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_RefreshAllRunsEveryRefresher(t *testing.T) {
	p := New(time.Hour, nil)

	var a, b atomic.Int32
	p.Register("bell", func(context.Context) error { a.Add(1); return nil })
	p.Register("transactions", func(context.Context) error { b.Add(1); return errors.New("boom") })

	p.Start()
	t.Cleanup(p.Stop)

	p.RefreshAll()

	assert.Eventually(t, func() bool { return a.Load() == 1 && b.Load() == 1 },
		time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		st := p.GetStatuses()
		return len(st) == 2 && st[1].State == SyncError
	}, time.Second, 5*time.Millisecond)

	st := p.GetStatuses()
	assert.Equal(t, "bell", st[0].Name)
	assert.Equal(t, SyncIdle, st[0].State)
	assert.False(t, st[0].LastSync.IsZero())
	assert.EqualError(t, st[1].Error, "boom")
}

func TestPoller_FallbackTicker(t *testing.T) {
	p := New(20*time.Millisecond, nil)

	var calls atomic.Int32
	p.Register("inbox", func(context.Context) error { calls.Add(1); return nil })

	p.Start()
	t.Cleanup(p.Stop)

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestPoller_NotifyDeliversChangedMsg(t *testing.T) {
	p := New(time.Hour, nil)
	cmd := p.Start()
	t.Cleanup(p.Stop)
	require.NotNil(t, cmd)

	p.Notify(SurfaceInbox)
	assert.Equal(t, ChangedMsg{Surface: SurfaceInbox}, cmd())

	p.Notify(SurfaceBell)
	assert.Equal(t, ChangedMsg{Surface: SurfaceBell}, p.WaitForNextResult()())
}

func TestPoller_NotifyNeverBlocks(t *testing.T) {
	p := New(time.Hour, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			p.Notify(SurfaceToasts)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked")
	}
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	p := New(time.Hour, nil)
	p.Start()
	p.Stop()
	assert.NotPanics(t, p.Stop)
}

func TestPoller_StopReleasesWaiters(t *testing.T) {
	p := New(time.Hour, nil)
	wait := p.Start()

	got := make(chan tea.Msg, 1)
	go func() { got <- wait() }()

	p.Stop()

	select {
	case msg := <-got:
		assert.Nil(t, msg)
	case <-time.After(time.Second):
		t.Fatal("waiter still blocked after Stop")
	}
}

func TestPoller_RestartAfterStop(t *testing.T) {
	p := New(time.Hour, nil)

	var runs atomic.Int32
	p.Register("inbox", func(context.Context) error { runs.Add(1); return nil })

	p.Start()
	p.Stop()

	wait := p.Start()
	t.Cleanup(p.Stop)

	p.RefreshAll()
	assert.Eventually(t, func() bool { return runs.Load() == 1 },
		time.Second, 5*time.Millisecond)

	p.Notify(SurfaceInbox)
	assert.Equal(t, ChangedMsg{Surface: SurfaceInbox}, wait())
}
