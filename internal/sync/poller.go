package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/paydash/internal/logging"
)

// Surface names a view whose data changed.
type Surface string

const (
	SurfaceBell         Surface = "bell"
	SurfaceInbox        Surface = "inbox"
	SurfaceTransactions Surface = "transactions"
	SurfaceChannel      Surface = "channel"
	SurfaceToasts       Surface = "toasts"
)

// SyncState represents the current state of a refresher.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the last fallback refresh outcome of one refresher.
type SyncStatus struct {
	Name     string
	State    SyncState
	LastSync time.Time
	Error    error
}

// ChangedMsg is a tea.Msg sent when a surface's backing state changed.
type ChangedMsg struct {
	Surface Surface
}

// RefreshFunc reloads one data source.
type RefreshFunc func(ctx context.Context) error

// DefaultInterval is the fallback refresh period used when push events are
// missed.
const DefaultInterval = 5 * time.Minute

// fetchTimeout is the maximum time allowed for a single refresh.
const fetchTimeout = 30 * time.Second

type refresherEntry struct {
	name string
	fn   RefreshFunc
}

// Poller runs registered refreshers on a fixed fallback ticker and forwards
// change notices into the Bubble Tea runtime.
type Poller struct {
	interval   time.Duration
	log        *logrus.Entry
	refreshers []refresherEntry
	statuses   map[string]*SyncStatus
	changeCh   chan ChangedMsg
	triggerCh  chan struct{}
	stopCh     chan struct{}
	mu         gosync.Mutex
	running    bool
	stopped    bool
}

// New creates a Poller that fires every interval.
func New(interval time.Duration, logger *logrus.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		interval:  interval,
		log:       logging.Component(logger, "poller"),
		statuses:  make(map[string]*SyncStatus),
		changeCh:  make(chan ChangedMsg, 64),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Register adds a refresher under name.
func (p *Poller) Register(name string, fn RefreshFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refreshers = append(p.refreshers, refresherEntry{name: name, fn: fn})
	p.statuses[name] = &SyncStatus{Name: name, State: SyncIdle}
}

// Start launches the fallback loop and returns a command that delivers the
// next ChangedMsg.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return p.waitForResult()
	}
	if p.stopped {
		p.stopCh = make(chan struct{})
		p.stopped = false
	}
	p.running = true
	stop := p.stopCh
	p.mu.Unlock()

	go p.loop(stop)

	return p.waitForResult()
}

// Stop halts the fallback loop and releases every pending
// WaitForNextResult. The poller can be started again.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.stopped = true
	p.running = false
}

// RefreshAll triggers an immediate run of every refresher.
func (p *Poller) RefreshAll() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A run is already queued.
	}
	return nil
}

// Notify queues a ChangedMsg for surface without blocking.
func (p *Poller) Notify(surface Surface) {
	select {
	case p.changeCh <- ChangedMsg{Surface: surface}:
	default:
		// Drop if channel is full; the view re-reads state on the next one.
	}
}

// GetStatuses returns the current status of every refresher in
// registration order.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.refreshers))
	for _, r := range p.refreshers {
		statuses = append(statuses, *p.statuses[r.name])
	}
	return statuses
}

func (p *Poller) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.runAll()
		case <-p.triggerCh:
			p.runAll()
		}
	}
}

func (p *Poller) runAll() {
	p.mu.Lock()
	refreshers := make([]refresherEntry, len(p.refreshers))
	copy(refreshers, p.refreshers)
	p.mu.Unlock()

	for _, r := range refreshers {
		p.runOne(r)
	}
}

func (p *Poller) runOne(r refresherEntry) {
	p.setStatus(r.name, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	if err := r.fn(ctx); err != nil {
		p.setStatus(r.name, SyncError, err)
		p.log.WithError(err).WithField("refresher", r.name).Warn("Fallback refresh failed")
		return
	}
	p.setStatus(r.name, SyncIdle, nil)
}

// setStatus updates the status of a refresher.
func (p *Poller) setStatus(name string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[name]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// waitForResult returns a tea.Cmd that waits for the next change notice,
// or returns nil once the poller is stopped.
func (p *Poller) waitForResult() tea.Cmd {
	p.mu.Lock()
	stop := p.stopCh
	p.mu.Unlock()

	return func() tea.Msg {
		select {
		case msg, ok := <-p.changeCh:
			if !ok {
				return nil
			}
			return msg
		case <-stop:
			return nil
		}
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next ChangedMsg.
// Call it after handling each ChangedMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
