package detail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/paydash/internal/keys"
	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/theme"
)

// BackMsg signals the parent to navigate back to the inbox.
type BackMsg struct{}

// MarkReadMsg asks the parent to mark the shown record as read.
type MarkReadMsg struct {
	ID string
}

// Model shows one notification record in full.
type Model struct {
	record   *model.NotificationRecord
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.MarkRead):
			if m.record != nil && !m.record.IsRead() {
				id := m.record.ID
				return m, func() tea.Msg { return MarkReadMsg{ID: id} }
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.record == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notification selected")
	}
	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	rec := m.record
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(rec.Content.Title))

	state := theme.UnreadStyle.Render("unread")
	if rec.IsRead() {
		state = theme.ReadStyle.Render("read")
	}
	badgeLine := lipgloss.JoinHorizontal(
		lipgloss.Top,
		theme.SeverityStyle(rec.Content.Severity).Render(strings.ToUpper(string(rec.Content.Severity))),
		"  ", strings.ToUpper(string(rec.Content.Type)),
		"  ", state,
	)
	sections = append(sections, badgeLine, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	field := func(label, value string) {
		sections = append(sections, fmt.Sprintf("%s %s",
			metaStyle.Render(fmt.Sprintf("%-11s", label+":")), valStyle.Render(value)))
	}

	field("Record", rec.ID)
	field("Content", rec.NotificationID)
	field("Delivered", stamp(rec.DeliveredAt))
	if rec.ReadAt != nil {
		field("Read", stamp(*rec.ReadAt))
	}

	separator := lipgloss.NewStyle().Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	body := rec.Content.Body
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No message")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.width-2, 10)).Render(body))

	if payload := prettyPayload(rec.Content.Payload); payload != "" {
		sections = append(sections, "", separator, "",
			lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Payload"),
			metaStyle.Render(payload))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetRecord updates the record being displayed and re-renders the content.
func (m *Model) SetRecord(rec model.NotificationRecord) {
	m.record = &rec
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Record returns the displayed record, if any.
func (m Model) Record() (model.NotificationRecord, bool) {
	if m.record == nil {
		return model.NotificationRecord{}, false
	}
	return *m.record, true
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.record != nil {
		m.viewport.SetContent(m.renderContent())
	}
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// prettyPayload indents a JSON payload; empty objects render as "".
func prettyPayload(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" || string(trimmed) == "{}" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return string(trimmed)
	}
	return buf.String()
}
