package txlist

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/paydash/internal/keys"
	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/theme"
	"github.com/nhle/paydash/internal/txfeed"
	"github.com/nhle/paydash/internal/ui"
)

// Surface names this view in ActionMsg.
const Surface = "transactions"

// TransactionItem wraps a transaction for a bubbles/list.
type TransactionItem struct {
	Tx model.Transaction
}

// FilterValue returns the string used for fuzzy filtering.
func (i TransactionItem) FilterValue() string { return i.Tx.Reference }

type delegate struct {
	now func() time.Time
}

func (d delegate) Height() int                             { return 1 }
func (d delegate) Spacing() int                            { return 0 }
func (d delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(TransactionItem)
	if !ok {
		return
	}
	tx := it.Tx

	status := theme.StatusStyle(tx.Status).Render(fmt.Sprintf("%-9s", tx.Status))
	amount := lipgloss.NewStyle().Width(14).Align(lipgloss.Right).Render(tx.FormatAmount())
	when := lipgloss.NewStyle().Foreground(theme.ColorGray).Render(ui.RelativeTime(tx.CreatedAt, d.now()))

	line := fmt.Sprintf("%-12s %s %s  %s  %s", tx.Reference, amount, status, tx.TenantID, when)
	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}

// Model is the transactions view.
type Model struct {
	feed   *txfeed.Feed
	keys   *keys.KeyMap
	list   list.Model
	width  int
	height int
}

// New creates the transactions view over f.
func New(f *txfeed.Feed, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, delegate{now: time.Now}, width, height-2)
	l.Title = "Transactions"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.KeyMap.NextPage.SetEnabled(false)
	l.KeyMap.PrevPage.SetEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{feed: f, keys: k, list: l, width: width, height: height}
}

// Init loads the first page.
func (m Model) Init() tea.Cmd {
	return m.Load(1)
}

// Load fetches page directly.
func (m Model) Load(page int) tea.Cmd {
	f := m.feed
	limit := f.Snapshot().Limit
	return func() tea.Msg {
		err := f.Fetch(context.Background(), page, limit)
		return ui.ActionMsg{Surface: Surface, Op: "load", Err: err}
	}
}

// Sync copies the feed's transactions into the list.
func (m *Model) Sync() tea.Cmd {
	st := m.feed.Snapshot()
	items := make([]list.Item, len(st.Items))
	for i, tx := range st.Items {
		items[i] = TransactionItem{Tx: tx}
	}
	return m.list.SetItems(items)
}

// Update handles key input for the transactions view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	st := m.feed.Snapshot()
	switch {
	case key.Matches(keyMsg, m.keys.NextPage):
		if st.Loading || !ui.HasNextPage(st.Page, st.Limit, st.TotalCount) {
			return m, nil
		}
		return m, m.Load(st.Page + 1)
	case key.Matches(keyMsg, m.keys.PrevPage):
		if st.Loading || st.Page <= 1 {
			return m, nil
		}
		return m, m.Load(st.Page - 1)
	case key.Matches(keyMsg, m.keys.Refresh):
		return m, m.Load(st.Page)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the transactions view.
func (m Model) View() string {
	st := m.feed.Snapshot()

	var banner string
	if msg := st.ErrMessage(); msg != "" {
		banner = theme.ErrorStyle.Render("⚠ " + msg)
	}

	footer := theme.HelpStyle.Render(ui.PageInfo(st.Page, st.Limit, st.TotalCount))
	if st.Loading {
		footer += theme.HelpStyle.Render(" · loading")
	}

	body := m.list.View()
	if len(st.Items) == 0 {
		body = lipgloss.NewStyle().
			Width(m.width).
			Height(m.height-2).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No transactions.")
	}
	return lipgloss.JoinVertical(lipgloss.Left, banner, body, footer)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
