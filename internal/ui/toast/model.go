package toast

import (
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/ring"
	"github.com/nhle/paydash/internal/theme"
)

const (
	DefaultCapacity = 3
	DefaultTTL      = 5 * time.Second

	sweepInterval = 500 * time.Millisecond
)

// TickMsg drives expiry of visible toasts.
type TickMsg struct {
	At time.Time
}

// stack is shared between copies of Model so Add can be called from the
// channel's reader goroutine.
type stack struct {
	mu    gosync.Mutex
	items *ring.Ring[model.Toast]
}

// Model shows the most recent toasts, newest on top.
type Model struct {
	stack *stack
	ttl   time.Duration
	now   func() time.Time
	width int
}

// New creates a toast stack holding at most capacity toasts, each shown for
// ttl.
func New(capacity int, ttl time.Duration, width int) Model {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Model{
		stack: &stack{items: ring.New[model.Toast](capacity)},
		ttl:   ttl,
		now:   time.Now,
		width: width,
	}
}

// Add pushes t on top of the stack, evicting the oldest toast when full.
// Safe for concurrent use.
func (m Model) Add(t model.Toast) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	m.stack.mu.Lock()
	defer m.stack.mu.Unlock()
	m.stack.items.Push(t)
}

// Items returns the visible toasts, newest first.
func (m Model) Items() []model.Toast {
	m.stack.mu.Lock()
	defer m.stack.mu.Unlock()
	return m.stack.items.Items()
}

// Sweep drops toasts older than the TTL and reports how many were removed.
func (m Model) Sweep(now time.Time) int {
	m.stack.mu.Lock()
	defer m.stack.mu.Unlock()
	before := m.stack.items.Len()
	m.stack.items.Filter(func(t model.Toast) bool {
		return now.Sub(t.CreatedAt) < m.ttl
	})
	return before - m.stack.items.Len()
}

// Dismiss clears every toast.
func (m Model) Dismiss() {
	m.stack.mu.Lock()
	defer m.stack.mu.Unlock()
	m.stack.items.Filter(func(model.Toast) bool { return false })
}

// Tick schedules the next expiry sweep.
func (m Model) Tick() tea.Cmd {
	return tea.Tick(sweepInterval, func(t time.Time) tea.Msg {
		return TickMsg{At: t}
	})
}

// Update sweeps expired toasts on each tick and schedules the next one.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if tick, ok := msg.(TickMsg); ok {
		m.Sweep(tick.At)
		return m, m.Tick()
	}
	return m, nil
}

// View renders the stack, or "" when empty.
func (m Model) View() string {
	items := m.Items()
	if len(items) == 0 {
		return ""
	}

	width := m.width / 3
	if width < 30 {
		width = 30
	}

	rendered := make([]string, 0, len(items))
	for _, t := range items {
		title := lipgloss.NewStyle().Bold(true).Render(t.Title)
		body := t.Body
		content := title
		if body != "" {
			content = lipgloss.JoinVertical(lipgloss.Left, title, body)
		}
		rendered = append(rendered, theme.ToastStyle(t.Severity).Width(width).Render(content))
	}
	return lipgloss.JoinVertical(lipgloss.Right, rendered...)
}

// SetSize updates the width used to size toasts.
func (m *Model) SetSize(width int) {
	m.width = width
}
