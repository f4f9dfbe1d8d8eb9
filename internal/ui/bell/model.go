package bell

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/paydash/internal/keys"
	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/notify"
	"github.com/nhle/paydash/internal/theme"
	"github.com/nhle/paydash/internal/ui"
)

// Surface names this view in ActionMsg.
const Surface = "bell"

// DefaultLimit is the number of records shown in the dropdown.
const DefaultLimit = 5

// Model is the notification bell: an unread badge and a dropdown of the
// latest records. It owns its own store.
type Model struct {
	store  *notify.Store
	keys   *keys.KeyMap
	limit  int
	open   bool
	cursor int
	width  int
	now    func() time.Time
}

// New creates a bell over s showing limit records.
func New(s *notify.Store, k *keys.KeyMap, limit, width int) Model {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Model{
		store: s,
		keys:  k,
		limit: limit,
		width: width,
		now:   time.Now,
	}
}

// Init loads the first page.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Load fetches the latest records.
func (m Model) Load() tea.Cmd {
	s, limit := m.store, m.limit
	return func() tea.Msg {
		err := s.Fetch(context.Background(), 1, limit)
		return ui.ActionMsg{Surface: Surface, Op: "load", Err: err}
	}
}

// Open reports whether the dropdown is shown.
func (m Model) Open() bool {
	return m.open
}

// Toggle shows or hides the dropdown. Opening it reloads the records.
func (m Model) Toggle() (Model, tea.Cmd) {
	m.open = !m.open
	m.cursor = 0
	if m.open {
		return m, m.Load()
	}
	return m, nil
}

// Update handles keys while the dropdown is open.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || !m.open {
		return m, nil
	}

	items := m.store.Snapshot().Items
	switch {
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.MarkRead):
		if m.cursor >= len(items) {
			return m, nil
		}
		return m, m.markRead(items[m.cursor].ID)
	case key.Matches(keyMsg, m.keys.Back), key.Matches(keyMsg, m.keys.Bell):
		m.open = false
	}
	return m, nil
}

func (m Model) markRead(id string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		err := s.MarkAsRead(context.Background(), id)
		return ui.ActionMsg{Surface: Surface, Op: "mark read", Err: err}
	}
}

// Indicator renders the header badge, e.g. "🔔 3".
func (m Model) Indicator() string {
	badge := ui.Badge(m.store.Snapshot().UnreadCount)
	if badge == "" {
		return "🔔"
	}
	return "🔔 " + theme.BadgeStyle.Render(badge)
}

// View renders the dropdown, or "" when closed.
func (m Model) View() string {
	if !m.open {
		return ""
	}

	st := m.store.Snapshot()
	width := m.width / 2
	if width < 40 {
		width = 40
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("Notifications (%d unread)", st.UnreadCount)))
	b.WriteString("\n")

	switch {
	case st.Err != nil && len(st.Items) == 0:
		b.WriteString(theme.ErrorStyle.Render(st.ErrMessage()))
	case st.Loading && len(st.Items) == 0:
		b.WriteString(theme.HelpStyle.Render("Loading…"))
	case len(st.Items) == 0:
		b.WriteString(theme.HelpStyle.Render("You're all caught up"))
	default:
		for i, rec := range st.Items {
			b.WriteString(m.renderRecord(rec, i == m.cursor, width-4))
			b.WriteString("\n")
		}
		b.WriteString(theme.HelpStyle.Render("enter mark read · 1 open inbox · esc close"))
	}

	return theme.PanelStyle.Width(width).Render(b.String())
}

func (m Model) renderRecord(rec model.NotificationRecord, selected bool, width int) string {
	dot := " "
	style := theme.ReadStyle
	if !rec.IsRead() {
		dot = lipgloss.NewStyle().Foreground(theme.SeverityColor(rec.Content.Severity)).Render("●")
		style = theme.UnreadStyle
	}
	when := ui.RelativeTime(rec.DeliveredAt, m.now())
	title := ui.Truncate(rec.Content.Title, width-lipgloss.Width(when)-4)
	line := fmt.Sprintf("%s %s  %s", dot, style.Render(title), theme.HelpStyle.Render(when))
	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// SetSize updates the width used for the dropdown.
func (m *Model) SetSize(width int) {
	m.width = width
}
