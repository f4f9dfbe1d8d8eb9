package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/paydash/internal/keys"
	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/theme"
	"github.com/nhle/paydash/internal/ui"
)

// Source supplies the recent channel events and the connection state.
type Source interface {
	Recent() []model.ChannelEvent
	StateName() string
}

// Model lists the live channel events, newest first.
type Model struct {
	src    Source
	keys   *keys.KeyMap
	offset int
	width  int
	height int
	now    func() time.Time
}

// New creates the activity view.
func New(src Source, k *keys.KeyMap, width, height int) Model {
	return Model{src: src, keys: k, width: width, height: height, now: time.Now}
}

// Update scrolls the event list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Down):
		if m.offset < len(m.src.Recent())-1 {
			m.offset++
		}
	case key.Matches(keyMsg, m.keys.Up):
		if m.offset > 0 {
			m.offset--
		}
	}
	return m, nil
}

// View renders the connection state and the visible events.
func (m Model) View() string {
	state := m.src.StateName()
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		theme.HeaderStyle.Render("Live activity"),
		" ",
		theme.ConnectionStyle(state).Render("● "+state),
	)

	events := m.src.Recent()
	if len(events) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header,
			theme.HelpStyle.Render("Waiting for events…"))
	}

	rows := m.height - 1
	if rows < 1 {
		rows = 1
	}
	offset := m.offset
	if offset >= len(events) {
		offset = len(events) - 1
	}
	end := offset + rows
	if end > len(events) {
		end = len(events)
	}

	lines := []string{header}
	for _, ev := range events[offset:end] {
		lines = append(lines, m.renderEvent(ev))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderEvent(ev model.ChannelEvent) string {
	when := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(10).
		Render(ui.RelativeTime(ev.ReceivedAt, m.now()))
	name := lipgloss.NewStyle().Bold(true).Width(24).Render(ev.Name)
	room := m.width - lipgloss.Width(when) - lipgloss.Width(name) - 4
	data := theme.HelpStyle.Render(ui.Truncate(string(ev.Data), room))
	return fmt.Sprintf("%s %s %s", when, name, data)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
