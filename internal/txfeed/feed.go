// Package txfeed holds the transaction list shown next to notifications.
package txfeed

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/paydash/internal/backend"
	"github.com/nhle/paydash/internal/bus"
	"github.com/nhle/paydash/internal/guard"
	"github.com/nhle/paydash/internal/logging"
	"github.com/nhle/paydash/internal/model"
)

// ErrInvalidPage is returned when page < 1 or limit < 1.
var ErrInvalidPage = errors.New("page must be at least 1 and limit greater than 0")

// DefaultMinRefreshInterval throttles refreshes of the transaction list.
const DefaultMinRefreshInterval = 5 * time.Second

// API is the part of the gateway client the feed depends on.
type API interface {
	ListTransactions(ctx context.Context, page, limit int) (*model.TransactionPage, error)
}

// State is a snapshot of the feed.
type State struct {
	Items      []model.Transaction
	TotalCount int
	Page       int
	Limit      int
	Loading    bool
	Err        error
}

// ErrMessage returns Err as a message fit for display, or "".
func (s State) ErrMessage() string {
	return backend.Describe(s.Err)
}

// Feed is a paged transaction list with guarded refresh.
type Feed struct {
	api      API
	task     *guard.Task
	log      *logrus.Entry
	onChange func(State)

	ctx    context.Context
	cancel context.CancelFunc
	unsub  func()

	mu     gosync.Mutex
	state  State
	closed bool
}

// New creates a feed showing limit transactions per page. When b is not
// nil the feed refreshes on RefreshTransactions signals.
func New(api API, b *bus.Bus, limit int, minInterval time.Duration, logger *logrus.Logger, onChange func(State)) *Feed {
	if limit <= 0 {
		limit = 20
	}
	if minInterval <= 0 {
		minInterval = DefaultMinRefreshInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed{
		api:      api,
		task:     guard.NewTask(minInterval),
		log:      logging.Component(logger, "txfeed"),
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
		state:    State{Page: 1, Limit: limit},
	}
	if b != nil {
		f.unsub = b.Subscribe(bus.RefreshTransactions, func(bus.Event) {
			go f.Refresh(f.ctx)
		})
	}
	return f
}

// Snapshot returns a copy of the current state.
func (f *Feed) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.state
	st.Items = append([]model.Transaction(nil), f.state.Items...)
	return st
}

// Fetch loads one page directly, bypassing the refresh guard.
func (f *Feed) Fetch(ctx context.Context, page, limit int) error {
	if page < 1 || limit < 1 {
		return ErrInvalidPage
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return context.Canceled
	}
	f.state.Loading = true
	f.mu.Unlock()
	f.emit()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(f.ctx, cancel)
	defer stop()

	result, err := f.api.ListTransactions(ctx, page, limit)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return context.Canceled
	}
	f.state.Loading = false
	if err != nil {
		f.state.Err = err
		f.mu.Unlock()
		f.emit()
		f.log.WithError(err).Warn("Fetching transactions failed")
		return err
	}

	items := result.Items
	if len(items) > limit {
		items = items[:limit]
	}
	f.state.Items = append([]model.Transaction(nil), items...)
	f.state.TotalCount = result.Total
	f.state.Page = page
	f.state.Limit = limit
	f.state.Err = nil
	f.mu.Unlock()
	f.emit()
	return nil
}

// Refresh reloads the current page unless a load is running or the last
// guarded load started less than the minimum interval ago. It reports
// whether a load ran.
func (f *Feed) Refresh(ctx context.Context) (bool, error) {
	f.mu.Lock()
	page, limit := f.state.Page, f.state.Limit
	f.mu.Unlock()

	ran, err := f.task.Run(ctx, func(ctx context.Context) error {
		return f.Fetch(ctx, page, limit)
	})
	if !ran {
		f.log.Debug("Transaction refresh discarded by guard")
	}
	return ran, err
}

// Close cancels in-flight loads and detaches the feed from the bus.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()

	f.cancel()
	if f.unsub != nil {
		f.unsub()
	}
}

func (f *Feed) emit() {
	if f.onChange != nil {
		f.onChange(f.Snapshot())
	}
}
