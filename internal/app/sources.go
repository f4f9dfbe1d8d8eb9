package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/paydash/internal/backend"
	"github.com/nhle/paydash/internal/bus"
	"github.com/nhle/paydash/internal/channel"
	"github.com/nhle/paydash/internal/logging"
	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/notify"
	"github.com/nhle/paydash/internal/store"
	appsync "github.com/nhle/paydash/internal/sync"
	"github.com/nhle/paydash/internal/txfeed"
	"github.com/nhle/paydash/internal/ui/toast"
)

// sourcesRegisteredMsg is sent once every refresher has been registered
// with the poller and the activity log has been replayed.
type sourcesRegisteredMsg struct {
	count int
}

// session holds everything that talks to the gateway for one signed-in
// user. Each surface owns its own store; they share only the bus.
type session struct {
	bus      *bus.Bus
	api      *backend.Client
	bell     *notify.Store
	inbox    *notify.Store
	feed     *txfeed.Feed
	channel  *channel.Client
	listener *channel.Listener
	poller   *appsync.Poller
	events   store.Store
	log      *logrus.Entry

	cancel context.CancelFunc
}

// newSession wires the stores, the event channel and the poller. events
// may be nil, in which case live events are kept in memory only.
func newSession(
	cfg *model.AppConfig,
	token string,
	events store.Store,
	toasts toast.Model,
	logger *logrus.Logger,
) *session {
	b := bus.New()
	api := backend.NewClient(cfg.Backend.BaseURL, token, backend.WithTimeout(cfg.Backend.Timeout()))
	poller := appsync.New(time.Duration(cfg.Notifications.FallbackIntervalSec)*time.Second, logger)

	notifyOpts := func(name string, limit int, surface appsync.Surface) notify.Options {
		opts := notify.OptionsFromConfig(name, cfg.Notifications, limit)
		opts.Logger = logger
		opts.OnChange = func(notify.State) { poller.Notify(surface) }
		return opts
	}

	s := &session{
		bus:    b,
		api:    api,
		bell:   notify.New(api, b, notifyOpts("bell", cfg.Notifications.DropdownSize, appsync.SurfaceBell)),
		inbox:  notify.New(api, b, notifyOpts("inbox", cfg.Notifications.PageSize, appsync.SurfaceInbox)),
		poller: poller,
		events: events,
		log:    logging.Component(logger, "session"),
	}

	s.feed = txfeed.New(api, b, cfg.Transactions.PageSize,
		time.Duration(cfg.Transactions.MinRefreshIntervalSec)*time.Second, logger,
		func(txfeed.State) { poller.Notify(appsync.SurfaceTransactions) })

	chOpts := channel.OptionsFromConfig(cfg.Channel, token)
	chOpts.Logger = logger
	if events != nil {
		chOpts.Recorder = events
	}
	s.channel = channel.NewClient(chOpts)
	s.channel.OnStateChange(func(channel.State) { poller.Notify(appsync.SurfaceChannel) })
	s.channel.On(channel.AnyEvent, func(model.ChannelEvent) { poller.Notify(appsync.SurfaceChannel) })

	s.listener = channel.NewListener(b, func(t model.Toast) {
		toasts.Add(t)
		poller.Notify(appsync.SurfaceToasts)
	}, logger)
	s.listener.Attach(s.channel)

	return s
}

// registerSources registers the fallback refreshers and replays the
// activity log into the channel buffer.
func (s *session) registerSources(retention int) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		s.poller.Register("bell", currentPage(s.bell))
		s.poller.Register("inbox", currentPage(s.inbox))
		s.poller.Register("transactions", func(ctx context.Context) error {
			_, err := s.feed.Refresh(ctx)
			return err
		})

		if s.events != nil {
			if n, err := s.events.PruneEvents(ctx, retention); err != nil {
				s.log.WithError(err).Warn("Pruning activity log failed")
			} else if n > 0 {
				s.log.WithField("pruned", n).Debug("Pruned activity log")
			}

			recent, err := s.events.RecentEvents(ctx, store.EventFilter{Limit: s.channel.BufferSize()})
			if err != nil {
				s.log.WithError(err).Warn("Loading activity log failed")
			} else {
				s.channel.Seed(recent)
			}
		}

		return sourcesRegisteredMsg{count: 3}
	}
}

// currentPage reloads whatever page st currently shows.
func currentPage(st *notify.Store) appsync.RefreshFunc {
	return func(ctx context.Context) error {
		snap := st.Snapshot()
		return st.Fetch(ctx, snap.Page, snap.Limit)
	}
}

// start connects the event channel and the poller.
func (s *session) start() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.channel.Start(ctx)
	return s.poller.Start()
}

// close stops every background loop of the session.
func (s *session) close() {
	s.poller.Stop()
	s.channel.Close()
	if s.cancel != nil {
		s.cancel()
	}
	s.bell.Close()
	s.inbox.Close()
	s.feed.Close()
}
