package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/paydash/internal/keys"
	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/notify"
	"github.com/nhle/paydash/internal/theme"
	"github.com/nhle/paydash/internal/ui"
)

// Surface names this view in ActionMsg.
const Surface = "inbox"

// Model is the full notifications page. It owns its own store.
type Model struct {
	store   *notify.Store
	keys    *keys.KeyMap
	list    list.Model
	spinner spinner.Model
	width   int
	height  int
}

// New creates the inbox view over s.
func New(s *notify.Store, k *keys.KeyMap, width, height int) Model {
	delegate := RecordDelegate{now: time.Now}
	l := list.New([]list.Item{}, delegate, width, height-3)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	// Paging is server side.
	l.KeyMap.NextPage.SetEnabled(false)
	l.KeyMap.PrevPage.SetEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		store:   s,
		keys:    k,
		list:    l,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Init loads the first page and starts the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.Load(1), m.spinner.Tick)
}

// Load fetches page directly.
func (m Model) Load(page int) tea.Cmd {
	s := m.store
	limit := s.Snapshot().Limit
	return func() tea.Msg {
		err := s.Fetch(context.Background(), page, limit)
		return ui.ActionMsg{Surface: Surface, Op: "load", Err: err}
	}
}

// Sync copies the store's records into the list. Call it whenever the
// store reports a change.
func (m *Model) Sync() tea.Cmd {
	st := m.store.Snapshot()
	items := make([]list.Item, len(st.Items))
	for i, rec := range st.Items {
		items[i] = RecordItem{Record: rec}
	}
	m.list.Title = fmt.Sprintf("Notifications · %d unread", st.UnreadCount)
	return m.list.SetItems(items)
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	st := m.store.Snapshot()

	switch {
	case key.Matches(msg, m.keys.MarkRead):
		it, ok := m.list.SelectedItem().(RecordItem)
		if !ok || it.Record.IsRead() {
			return m, nil
		}
		s, id := m.store, it.Record.ID
		return m, func() tea.Msg {
			err := s.MarkAsRead(context.Background(), id)
			return ui.ActionMsg{Surface: Surface, Op: "mark read", Err: err}
		}

	case key.Matches(msg, m.keys.MarkAllRead):
		s := m.store
		return m, func() tea.Msg {
			err := s.MarkAllRead(context.Background())
			return ui.ActionMsg{Surface: Surface, Op: "mark all read", Err: err}
		}

	case key.Matches(msg, m.keys.NextPage):
		if st.Loading || !ui.HasNextPage(st.Page, st.Limit, st.TotalCount) {
			return m, nil
		}
		return m, m.Load(st.Page + 1)

	case key.Matches(msg, m.keys.PrevPage):
		if st.Loading || st.Page <= 1 {
			return m, nil
		}
		return m, m.Load(st.Page - 1)

	case key.Matches(msg, m.keys.Refresh):
		return m, m.Load(st.Page)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// Selected returns the highlighted record.
func (m Model) Selected() (model.NotificationRecord, bool) {
	it, ok := m.list.SelectedItem().(RecordItem)
	if !ok {
		return model.NotificationRecord{}, false
	}
	return it.Record, true
}

// View renders the inbox.
func (m Model) View() string {
	st := m.store.Snapshot()

	var banner string
	if msg := st.ErrMessage(); msg != "" {
		banner = theme.ErrorStyle.Render("⚠ "+msg) + theme.HelpStyle.Render("  press r to retry")
	}

	footer := theme.HelpStyle.Render(fmt.Sprintf("%s · %d total", ui.PageInfo(st.Page, st.Limit, st.TotalCount), st.TotalCount))
	if st.Loading {
		footer = m.spinner.View() + " " + footer
	}

	var body string
	if len(st.Items) == 0 {
		body = m.renderEmptyState(st.Loading)
	} else {
		body = m.list.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, banner, body, footer)
}

func (m Model) renderEmptyState(loading bool) string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height - 3).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if loading {
		return style.Render("Loading notifications…")
	}
	return style.Render("No notifications yet.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-3)
}
