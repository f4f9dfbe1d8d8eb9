// Package notify holds the per-view notification state: one page of
// delivery records fetched from the gateway, their read state, and the
// refresh coordination that keeps sibling views converged through the bus.
package notify

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/paydash/internal/backend"
	"github.com/nhle/paydash/internal/bus"
	"github.com/nhle/paydash/internal/guard"
	"github.com/nhle/paydash/internal/logging"
	"github.com/nhle/paydash/internal/model"
)

var (
	// ErrInvalidPage is returned when page < 1 or limit < 1.
	ErrInvalidPage = errors.New("page must be at least 1 and limit greater than 0")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("notification store closed")
)

// API is the part of the gateway client the store depends on.
type API interface {
	ListNotifications(ctx context.Context, page, limit int) (*model.NotificationPage, error)
	MarkNotificationRead(ctx context.Context, id string) (*model.NotificationRecord, error)
	MarkAllNotificationsRead(ctx context.Context) (int, error)
}

// State is a snapshot of one store.
type State struct {
	Items       []model.NotificationRecord
	UnreadCount int
	TotalCount  int
	Page        int
	Limit       int
	Loading     bool
	Err         error
}

// ErrMessage returns Err as a message fit for display, or "".
func (s State) ErrMessage() string {
	return backend.Describe(s.Err)
}

// Options tunes a Store. Zero values fall back to the defaults.
type Options struct {
	// Name labels the store in logs, e.g. "bell" or "inbox".
	Name string

	DefaultLimit       int
	MinRefreshInterval time.Duration
	DebounceWindow     time.Duration

	Clock    func() time.Time
	Logger   *logrus.Logger
	OnChange func(State)
}

const (
	DefaultLimit              = 20
	DefaultMinRefreshInterval = 10 * time.Second
	DefaultDebounceWindow     = time.Second
)

// OptionsFromConfig builds options for a view showing limit records.
func OptionsFromConfig(name string, cfg model.NotificationsConfig, limit int) Options {
	return Options{
		Name:               name,
		DefaultLimit:       limit,
		MinRefreshInterval: time.Duration(cfg.MinRefreshIntervalSec) * time.Second,
		DebounceWindow:     time.Duration(cfg.DebounceMs) * time.Millisecond,
	}
}

type markState int

const (
	markInFlight markState = iota
	markFailed
	markConfirmed
)

// mark is a local read that the server has not yet reflected in a fetch.
type mark struct {
	readAt time.Time
	state  markState
}

// Store is the notification state of a single view. Create one per view;
// views share nothing but the bus.
type Store struct {
	api  API
	bus  *bus.Bus
	id   string
	opts Options
	log  *logrus.Entry

	task     *guard.Task
	debounce *guard.Debouncer

	ctx    context.Context
	cancel context.CancelFunc
	unsubs []func()

	mu         gosync.Mutex
	state      State
	loadingN   int
	marks      map[string]*mark
	forceNext  bool
	fetchSeq   uint64
	appliedSeq uint64
	closed     bool
}

// New creates a store and subscribes it to b. b may be nil for a store
// that neither broadcasts nor listens.
func New(api API, b *bus.Bus, opts Options) *Store {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MinRefreshInterval <= 0 {
		opts.MinRefreshInterval = DefaultMinRefreshInterval
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Name == "" {
		opts.Name = "notifications"
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		api:    api,
		bus:    b,
		id:     opts.Name + "-" + uuid.NewString(),
		opts:   opts,
		log:    logging.Component(opts.Logger, "notify").WithField("store", opts.Name),
		task:   guard.NewTask(opts.MinRefreshInterval, guard.WithClock(opts.Clock)),
		ctx:    ctx,
		cancel: cancel,
		marks:  make(map[string]*mark),
		state:  State{Page: 1, Limit: opts.DefaultLimit},
	}
	s.debounce = guard.NewDebouncer(opts.DebounceWindow, s.runRefresh)

	if b != nil {
		onMarked := func(ev bus.Event) {
			if ev.Source == s.id {
				return
			}
			s.scheduleRefresh(true)
		}
		s.unsubs = append(s.unsubs,
			b.Subscribe(bus.NotificationMarkedAsRead, onMarked),
			b.Subscribe(bus.AllNotificationsMarkedAsRead, onMarked),
			b.Subscribe(bus.RefreshNotifications, func(bus.Event) { s.scheduleRefresh(false) }),
		)
	}

	return s
}

// ID identifies the store as a bus publisher.
func (s *Store) ID() string {
	return s.id
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := s.state
	st.Items = make([]model.NotificationRecord, len(s.state.Items))
	for i, rec := range s.state.Items {
		st.Items[i] = rec
		if rec.ReadAt != nil {
			t := *rec.ReadAt
			st.Items[i].ReadAt = &t
		}
	}
	return st
}

// Fetch loads one page and replaces the held records with it. On failure
// the previous records are kept and the error is stored.
func (s *Store) Fetch(ctx context.Context, page, limit int) error {
	if page < 1 || limit < 1 {
		return ErrInvalidPage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.fetchSeq++
	seq := s.fetchSeq
	s.loadingN++
	s.state.Loading = true
	s.mu.Unlock()
	s.emit()

	ctx, cancel := s.bind(ctx)
	defer cancel()

	s.retryFailedMarks(ctx)

	result, err := s.api.ListNotifications(ctx, page, limit)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.loadingN--
	s.state.Loading = s.loadingN > 0

	// A fetch that started later has already landed; its outcome wins.
	stale := seq < s.appliedSeq

	if err != nil {
		if !stale {
			s.state.Err = err
		}
		s.mu.Unlock()
		s.emit()
		s.log.WithError(err).WithFields(logrus.Fields{"page": page, "limit": limit, "stale": stale}).
			Warn("Fetching notifications failed")
		return err
	}

	if stale {
		s.mu.Unlock()
		s.emit()
		return nil
	}
	s.appliedSeq = seq

	items := result.Items
	if len(items) > limit {
		items = items[:limit]
	}
	s.state.Items = s.reconcileLocked(items)
	s.state.TotalCount = result.Total
	s.state.Page = page
	s.state.Limit = limit
	s.state.UnreadCount = model.CountUnread(s.state.Items)
	s.state.Err = nil
	unread := s.state.UnreadCount
	s.mu.Unlock()
	s.emit()

	s.log.WithFields(logrus.Fields{
		"page":   page,
		"items":  len(items),
		"unread": unread,
		"total":  result.Total,
	}).Debug("Fetched notifications")
	return nil
}

// reconcileLocked copies fetched records and keeps every read timestamp
// already known locally, so ReadAt never goes back to nil.
func (s *Store) reconcileLocked(fetched []model.NotificationRecord) []model.NotificationRecord {
	known := make(map[string]time.Time, len(s.state.Items))
	for _, rec := range s.state.Items {
		if rec.ReadAt != nil {
			known[rec.ID] = *rec.ReadAt
		}
	}

	out := make([]model.NotificationRecord, len(fetched))
	for i, rec := range fetched {
		out[i] = rec
		if rec.ReadAt != nil {
			t := *rec.ReadAt
			out[i].ReadAt = &t
			// The server has caught up with any local mark.
			delete(s.marks, rec.ID)
			continue
		}
		if m, ok := s.marks[rec.ID]; ok {
			t := m.readAt
			out[i].ReadAt = &t
			continue
		}
		if t, ok := known[rec.ID]; ok {
			out[i].ReadAt = &t
		}
	}
	return out
}

// MarkAsRead marks one record read locally, then on the server. A failed
// server call keeps the local read and is retried before the next fetch.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("marking notification read: empty id")
	}

	now := s.opts.Clock().UTC()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	readAt := now
	for i := range s.state.Items {
		rec := &s.state.Items[i]
		if rec.ID != id {
			continue
		}
		if rec.ReadAt == nil {
			rec.ReadAt = &now
			if s.state.UnreadCount > 0 {
				s.state.UnreadCount--
			}
		} else {
			readAt = *rec.ReadAt
		}
		break
	}
	m := &mark{readAt: readAt, state: markInFlight}
	s.marks[id] = m
	s.mu.Unlock()
	s.emit()

	ctx, cancel := s.bind(ctx)
	defer cancel()

	rec, err := s.api.MarkNotificationRead(ctx, id)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		m.state = markFailed
		s.state.Err = err
		s.mu.Unlock()
		s.emit()
		s.log.WithError(err).WithField("id", id).Warn("Marking notification read failed, will retry")
		return err
	}
	m.state = markConfirmed
	if rec != nil && rec.ReadAt != nil {
		m.readAt = *rec.ReadAt
		s.adoptReadAtLocked(id, *rec.ReadAt)
	}
	readAt = m.readAt
	s.state.Err = nil
	s.mu.Unlock()
	s.emit()

	// Only confirmed reads are broadcast; a failed one is requeued and
	// announced when its retry succeeds.

	s.publish(bus.Event{Topic: bus.NotificationMarkedAsRead, NotificationID: id, ReadAt: readAt})
	return nil
}

func (s *Store) adoptReadAtLocked(id string, readAt time.Time) {
	for i := range s.state.Items {
		if s.state.Items[i].ID == id {
			t := readAt
			s.state.Items[i].ReadAt = &t
			return
		}
	}
}

// retryFailedMarks resends marks whose server call failed earlier.
func (s *Store) retryFailedMarks(ctx context.Context) {
	s.mu.Lock()
	var ids []string
	for id, m := range s.marks {
		if m.state == markFailed {
			m.state = markInFlight
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		rec, err := s.api.MarkNotificationRead(ctx, id)

		s.mu.Lock()
		m, ok := s.marks[id]
		if !ok {
			s.mu.Unlock()
			continue
		}
		if err != nil {
			m.state = markFailed
			s.mu.Unlock()
			s.log.WithError(err).WithField("id", id).Debug("Retrying notification mark failed")
			continue
		}
		m.state = markConfirmed
		if rec != nil && rec.ReadAt != nil {
			m.readAt = *rec.ReadAt
			s.adoptReadAtLocked(id, *rec.ReadAt)
		}
		readAt := m.readAt
		s.mu.Unlock()

		s.publish(bus.Event{Topic: bus.NotificationMarkedAsRead, NotificationID: id, ReadAt: readAt})
	}
}

// PendingMarks returns the IDs of reads the server has not accepted yet.
func (s *Store) PendingMarks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, m := range s.marks {
		if m.state == markFailed {
			ids = append(ids, id)
		}
	}
	return ids
}

// MarkAllRead marks every record read on the server, reloads the first
// page and tells the other views.
func (s *Store) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	bctx, cancel := s.bind(ctx)
	updated, err := s.api.MarkAllNotificationsRead(bctx)
	cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.state.Err = err
		s.mu.Unlock()
		s.emit()
		s.log.WithError(err).Warn("Marking all notifications read failed")
		return err
	}
	s.marks = make(map[string]*mark)
	s.mu.Unlock()

	s.log.WithField("updated", updated).Info("Marked all notifications read")

	// The server has changed either way, so the other views are told even
	// when the reload fails.
	fetchErr := s.Fetch(ctx, 1, s.opts.DefaultLimit)
	if errors.Is(fetchErr, ErrClosed) {
		return fetchErr
	}
	s.publish(bus.Event{Topic: bus.AllNotificationsMarkedAsRead, ReadAt: s.opts.Clock().UTC()})
	return fetchErr
}

// Refresh schedules a debounced, rate-limited reload of the current page.
func (s *Store) Refresh() {
	s.scheduleRefresh(false)
}

func (s *Store) scheduleRefresh(force bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if force {
		s.forceNext = true
	}
	s.mu.Unlock()

	s.debounce.Trigger()
}

func (s *Store) runRefresh() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	force := s.forceNext
	s.forceNext = false
	page, limit := s.state.Page, s.state.Limit
	s.mu.Unlock()

	fetch := func(ctx context.Context) error {
		return s.Fetch(ctx, page, limit)
	}

	var ran bool
	if force {
		ran, _ = s.task.RunForced(s.ctx, fetch)
	} else {
		ran, _ = s.task.Run(s.ctx, fetch)
	}
	if ran {
		return
	}

	if force {
		// The running fetch may predate the change; try again after it.
		s.log.Debug("Forced refresh found a fetch in flight, rescheduling")
		s.scheduleRefresh(true)
		return
	}
	s.log.Debug("Refresh discarded by guard")
}

// Close cancels in-flight calls, drops their late results, and detaches
// the store from the bus.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.debounce.Stop()
	for _, unsub := range s.unsubs {
		unsub()
	}
}

// bind derives a context that is also cancelled when the store closes.
func (s *Store) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Store) publish(ev bus.Event) {
	if s.bus == nil {
		return
	}
	ev.Source = s.id
	s.bus.Publish(ev)
}

func (s *Store) emit() {
	if s.opts.OnChange == nil {
		return
	}
	s.opts.OnChange(s.Snapshot())
}
