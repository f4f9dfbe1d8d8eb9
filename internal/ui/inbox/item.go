package inbox

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/theme"
	"github.com/nhle/paydash/internal/ui"
)

// RecordItem wraps a notification record for a bubbles/list.
type RecordItem struct {
	Record model.NotificationRecord
}

// FilterValue returns the string used for fuzzy filtering.
func (i RecordItem) FilterValue() string { return i.Record.Content.Title }

// RecordDelegate renders one record per line.
type RecordDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d RecordDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d RecordDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d RecordDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single record line.
func (d RecordDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(RecordItem)
	if !ok {
		return
	}
	rec := it.Record

	marker := " "
	titleStyle := theme.ReadStyle
	if !rec.IsRead() {
		marker = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
		titleStyle = theme.UnreadStyle
	}

	sev := theme.SeverityStyle(rec.Content.Severity).Render(fmt.Sprintf("%-7s", rec.Content.Severity))
	when := lipgloss.NewStyle().Foreground(theme.ColorGray).Render(ui.RelativeTime(rec.DeliveredAt, d.now()))

	room := m.Width() - lipgloss.Width(sev) - lipgloss.Width(when) - 8
	title := titleStyle.Render(ui.Truncate(rec.Content.Title, room/2))
	body := lipgloss.NewStyle().Foreground(theme.ColorGray).Render(ui.Truncate(rec.Content.Body, room/2))

	line := fmt.Sprintf("%s %s %s %s  %s", marker, sev, title, body, when)
	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}
