package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/paydash/internal/keys"
	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/theme"
)

// Setting is one read-only label/value pair shown under the shortcuts.
type Setting struct {
	Label string
	Value string
}

// Model is the help overlay: key bindings plus the effective settings.
type Model struct {
	keys     *keys.KeyMap
	help     help.Model
	settings []Setting
	width    int
	height   int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// WithSettings returns a copy that lists settings below the shortcuts.
func (m Model) WithSettings(settings []Setting) Model {
	m.settings = settings
	return m
}

// SettingsFromConfig lists the values an operator most often checks when
// the dashboard looks stale.
func SettingsFromConfig(cfg *model.AppConfig, configPath string) []Setting {
	settings := []Setting{
		{"Gateway", cfg.Backend.BaseURL},
		{"Live events", cfg.Channel.URL},
		{"Refresh", fmt.Sprintf("at most every %ds, fallback every %ds",
			cfg.Notifications.MinRefreshIntervalSec, cfg.Notifications.FallbackIntervalSec)},
		{"Activity log", cfg.Store.Path},
	}
	if configPath != "" {
		settings = append(settings, Setting{"Config", configPath})
	}
	return settings
}

// Update is a no-op; the parent closes the overlay.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	heading := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sections := []string{
		heading.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
	}

	if len(m.settings) > 0 {
		labelWidth := 0
		for _, s := range m.settings {
			labelWidth = max(labelWidth, lipgloss.Width(s.Label))
		}
		label := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(labelWidth + 2)

		var rows []string
		for _, s := range m.settings {
			v := s.Value
			if strings.TrimSpace(v) == "" {
				v = "(not set)"
			}
			rows = append(rows, label.Render(s.Label)+v)
		}
		sections = append(sections, "", heading.Render("Settings"), strings.Join(rows, "\n"))
	}

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = max(width-4, 0)
}
