package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/nhle/paydash/internal/backend"
	"github.com/nhle/paydash/internal/keys"
	"github.com/nhle/paydash/internal/logging"
	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/store"
	appsync "github.com/nhle/paydash/internal/sync"
	"github.com/nhle/paydash/internal/theme"
	"github.com/nhle/paydash/internal/ui"
	"github.com/nhle/paydash/internal/ui/activity"
	"github.com/nhle/paydash/internal/ui/bell"
	"github.com/nhle/paydash/internal/ui/detail"
	helpview "github.com/nhle/paydash/internal/ui/help"
	"github.com/nhle/paydash/internal/ui/inbox"
	"github.com/nhle/paydash/internal/ui/login"
	"github.com/nhle/paydash/internal/ui/toast"
	"github.com/nhle/paydash/internal/ui/txlist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewTransactions
	ViewActivity
	ViewDetail
	ViewHelp
	ViewLogin
)

var tabs = []string{"1 Notifications", "2 Transactions", "3 Activity"}

// Deps are the long-lived collaborators created by main.
type Deps struct {
	Config *model.AppConfig

	// ConfigPath is where a changed gateway URL is saved after sign-in.
	// Empty disables saving.
	ConfigPath string

	// Token is the session token, or "" to start with the sign-in form.
	Token string

	// Events is the local activity log. nil keeps events in memory only.
	Events store.Store

	// SaveToken persists the token accepted by the sign-in form.
	SaveToken func(token string) error

	Logger *logrus.Logger
}

// Model is the root Bubble Tea model that manages view routing, layout and
// the signed-in session.
type Model struct {
	deps         Deps
	log          *logrus.Entry
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	session      *session

	bell      bell.Model
	inbox     inbox.Model
	txList    txlist.Model
	activity  activity.Model
	detail    detail.Model
	toasts    toast.Model
	helpView  helpview.Model
	loginView login.Model

	ready     bool
	statusMsg string
}

// New creates the root model. Without a token it opens on the sign-in form.
func New(deps Deps) Model {
	if deps.Config == nil {
		deps.Config = model.DefaultAppConfig()
	}
	k := keys.DefaultKeyMap()
	cfg := deps.Config

	m := Model{
		deps:     deps,
		log:      logging.Component(deps.Logger, "app"),
		keys:     k,
		layout:   ui.NewLayout(80, 24),
		toasts:   toast.New(cfg.Display.ToastCapacity, ttl(cfg.Display), 80),
		helpView: helpview.New(k, 80, 24).WithSettings(helpview.SettingsFromConfig(cfg, deps.ConfigPath)),
	}

	if deps.Token == "" {
		m.currentView = ViewLogin
		m.loginView = login.New(cfg.Backend.BaseURL, nil, m.saveCredentials(), 80)
		return m
	}
	m.openSession(deps.Token)
	return m
}

// Init starts the sign-in form or the session.
func (m Model) Init() tea.Cmd {
	if m.session == nil {
		return m.loginView.Init()
	}
	return m.initSession()
}

// openSession builds the session and the views bound to its stores.
func (m *Model) openSession(token string) {
	cfg := m.deps.Config
	m.session = newSession(cfg, token, m.deps.Events, m.toasts, m.deps.Logger)

	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	m.bell = bell.New(m.session.bell, m.keys, cfg.Notifications.DropdownSize, w)
	m.inbox = inbox.New(m.session.inbox, m.keys, w, h)
	m.txList = txlist.New(m.session.feed, m.keys, w, h)
	m.activity = activity.New(m.session.channel, m.keys, w, h)
	m.detail = detail.New(m.keys, w, h)
	m.currentView = ViewInbox
}

func (m Model) initSession() tea.Cmd {
	return tea.Batch(
		m.session.registerSources(m.deps.Config.Store.EventRetention),
		m.bell.Init(),
		m.inbox.Init(),
		m.txList.Init(),
		m.toasts.Tick(),
	)
}

// saveCredentials returns the sign-in form's Saver.
func (m Model) saveCredentials() login.Saver {
	deps := m.deps
	return func(c login.Credentials) error {
		if deps.SaveToken != nil {
			if err := deps.SaveToken(c.Token); err != nil {
				return err
			}
		}
		if deps.ConfigPath != "" && c.BaseURL != deps.Config.Backend.BaseURL {
			cfg := *deps.Config
			cfg.Backend.BaseURL = c.BaseURL
			return model.SaveConfig(deps.ConfigPath, &cfg)
		}
		return nil
	}
}

// Close stops the session's background work.
func (m Model) Close() {
	if m.session != nil {
		m.session.close()
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.helpView.SetSize(w, h)
		m.toasts.SetSize(w)
		if m.session != nil {
			m.bell.SetSize(w)
			m.inbox.SetSize(w, h)
			m.txList.SetSize(w, h)
			m.activity.SetSize(w, h)
			m.detail.SetSize(w, h)
		}
		if m.currentView == ViewLogin {
			m.loginView.SetSize(w)
			return m.updateActiveView(msg)
		}
		return m, nil

	case login.LoggedInMsg:
		m.deps.Config.Backend.BaseURL = msg.Credentials.BaseURL
		m.deps.Token = msg.Credentials.Token
		m.helpView = m.helpView.WithSettings(helpview.SettingsFromConfig(m.deps.Config, m.deps.ConfigPath))
		m.statusMsg = ""
		if m.session != nil {
			m.session.close()
		}
		m.openSession(msg.Credentials.Token)
		m.log.Info("Signed in")
		return m, m.initSession()

	case login.CancelledMsg:
		if m.session == nil {
			return m, tea.Quit
		}
		m.currentView = m.previousView
		return m, nil

	case sourcesRegisteredMsg:
		m.log.WithField("refreshers", msg.count).Debug("Sources registered")
		return m, m.session.start()

	case appsync.ChangedMsg:
		return m.handleChanged(msg)

	case detail.BackMsg:
		m.currentView = ViewInbox
		return m, nil

	case detail.MarkReadMsg:
		st := m.session.inbox
		return m, func() tea.Msg {
			err := st.MarkAsRead(context.Background(), msg.ID)
			return ui.ActionMsg{Surface: inbox.Surface, Op: "mark read", Err: err}
		}

	case toast.TickMsg:
		var cmd tea.Cmd
		m.toasts, cmd = m.toasts.Update(msg)
		return m, cmd

	case ui.ActionMsg:
		wasLogin := m.currentView == ViewLogin
		m.handleAction(msg)
		if !wasLogin && m.currentView == ViewLogin {
			return m, m.loginView.Init()
		}
		return m, nil

	case spinner.TickMsg:
		return m.updateActiveView(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.Close()
			return m, tea.Quit
		}
		if m.currentView == ViewLogin {
			return m.updateActiveView(msg)
		}
		return m.handleKeys(msg)
	}

	return m.updateActiveView(msg)
}

// handleChanged re-reads the surface whose store changed and keeps
// listening.
func (m Model) handleChanged(msg appsync.ChangedMsg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.session.poller.WaitForNextResult()}
	switch msg.Surface {
	case appsync.SurfaceInbox:
		cmds = append(cmds, m.inbox.Sync())
		m.refreshDetail()
	case appsync.SurfaceTransactions:
		cmds = append(cmds, m.txList.Sync())
	}
	return m, tea.Batch(cmds...)
}

// refreshDetail re-reads the shown record from the inbox store so its read
// state follows marks made elsewhere.
func (m *Model) refreshDetail() {
	shown, ok := m.detail.Record()
	if !ok {
		return
	}
	for _, rec := range m.session.inbox.Snapshot().Items {
		if rec.ID == shown.ID {
			m.detail.SetRecord(rec)
			return
		}
	}
}

func (m *Model) handleAction(msg ui.ActionMsg) {
	if msg.Err == nil {
		m.statusMsg = ""
		return
	}
	m.log.WithError(msg.Err).WithFields(logrus.Fields{
		"surface": msg.Surface,
		"op":      msg.Op,
	}).Warn("Action failed")

	if backend.IsAuthError(msg.Err) {
		m.statusMsg = backend.Describe(msg.Err)
		if m.currentView != ViewLogin {
			m.previousView = m.currentView
			m.currentView = ViewLogin
			m.loginView = login.New(m.deps.Config.Backend.BaseURL, nil, m.saveCredentials(), m.layout.ContentWidth())
		}
		return
	}
	m.statusMsg = fmt.Sprintf("%s: %s", msg.Op, backend.Describe(msg.Err))
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.bell.Open() {
		if key.Matches(msg, m.keys.Inbox) {
			m.bell, _ = m.bell.Toggle()
			m.currentView = ViewInbox
			return m, nil
		}
		var cmd tea.Cmd
		m.bell, cmd = m.bell.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil

	case key.Matches(msg, m.keys.Back) && m.currentView == ViewHelp:
		m.currentView = m.previousView
		return m, nil

	case key.Matches(msg, m.keys.Open) && m.currentView == ViewInbox:
		if rec, ok := m.inbox.Selected(); ok {
			m.detail.SetRecord(rec)
			m.currentView = ViewDetail
		}
		return m, nil

	case key.Matches(msg, m.keys.Bell):
		var cmd tea.Cmd
		m.bell, cmd = m.bell.Toggle()
		return m, cmd

	case key.Matches(msg, m.keys.Inbox):
		m.currentView = ViewInbox
		return m, nil

	case key.Matches(msg, m.keys.Transactions):
		m.currentView = ViewTransactions
		return m, nil

	case key.Matches(msg, m.keys.Activity):
		m.currentView = ViewActivity
		return m, nil

	case key.Matches(msg, m.keys.DismissToasts):
		m.toasts.Dismiss()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		refresh := m.session.poller.RefreshAll()
		next, cmd := m.updateActiveView(msg)
		return next, tea.Batch(refresh, cmd)
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewTransactions:
		m.txList, cmd = m.txList.Update(msg)
	case ViewActivity:
		m.activity, cmd = m.activity.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	}
	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.currentView == ViewLogin {
		return lipgloss.Place(m.layout.Width, m.layout.Height,
			lipgloss.Center, lipgloss.Center, m.loginView.View())
	}

	header := m.layout.RenderHeader("paydash", m.bell.Indicator(), m.connectionStatus())
	tabRow := m.layout.RenderTabs(tabs, m.activeTab())

	content := m.layout.Overlay(m.renderContent(), m.bell.View())
	content = m.layout.Overlay(content, m.toasts.View())

	statusBar := m.layout.RenderStatusBar(m.keyHints())
	return m.layout.RenderWithFrame(header, tabRow, content, statusBar)
}

func (m Model) activeTab() int {
	switch m.currentView {
	case ViewTransactions:
		return 1
	case ViewActivity:
		return 2
	case ViewHelp:
		return m.tabOf(m.previousView)
	default:
		return 0
	}
}

func (m Model) tabOf(v ViewState) int {
	switch v {
	case ViewTransactions:
		return 1
	case ViewActivity:
		return 2
	default:
		return 0
	}
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewInbox:
		return m.inbox.View()
	case ViewTransactions:
		return m.txList.View()
	case ViewActivity:
		return m.activity.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// connectionStatus describes the event channel and fallback refreshers.
func (m Model) connectionStatus() string {
	state := m.session.channel.StateName()
	return theme.ConnectionStyle(state).Render("● "+state) + " " + syncSummary(m.session.poller.GetStatuses())
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.statusMsg != "" {
		return theme.ErrorStyle.Render(m.statusMsg)
	}
	switch m.currentView {
	case ViewInbox:
		return "enter read | M read all | [ ] page | r refresh | b bell | ? help | q quit"
	case ViewTransactions:
		return "[ ] page | r refresh | b bell | ? help | q quit"
	case ViewDetail:
		return "m mark read | j/k scroll | esc back | q quit"
	case ViewHelp:
		return "esc back"
	default:
		return "j/k scroll | x dismiss toasts | b bell | ? help | q quit"
	}
}
