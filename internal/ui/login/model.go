package login

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/paydash/internal/backend"
	"github.com/nhle/paydash/internal/theme"
)

// Mode is the current state of the login view.
type Mode int

const (
	ModeForm       Mode = iota // Entering credentials
	ModeValidating             // Checking the token against the gateway
	ModeFailed                 // Validation failed; any key returns to the form
)

// Credentials are the values bound to the form.
type Credentials struct {
	BaseURL string
	Token   string
}

// Validator checks a session token against the gateway at baseURL.
type Validator func(ctx context.Context, baseURL, token string) error

// Saver persists accepted credentials.
type Saver func(Credentials) error

// LoggedInMsg is sent once the credentials were validated and saved.
type LoggedInMsg struct {
	Credentials Credentials
}

// CancelledMsg is sent when the user aborts the form.
type CancelledMsg struct{}

type resultMsg struct {
	err error
}

// Model is the Bubble Tea model of the sign-in flow.
type Model struct {
	mode     Mode
	form     *huh.Form
	creds    *Credentials
	validate Validator
	save     Saver
	spinner  spinner.Model
	err      error
	width    int
}

// New creates a login view prefilled with baseURL.
func New(baseURL string, validate Validator, save Saver, width int) Model {
	if validate == nil {
		validate = ValidateWithGateway
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	creds := &Credentials{BaseURL: baseURL}
	return Model{
		mode:     ModeForm,
		form:     BuildForm(creds, formWidth(width)),
		creds:    creds,
		validate: validate,
		save:     save,
		spinner:  sp,
		width:    width,
	}
}

// BuildForm returns the credentials form bound to creds. The CLI runs it
// standalone.
func BuildForm(creds *Credentials, width int) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway URL").
				Description("Base URL of the gateway API").
				Placeholder("https://api.gateway.example.com/api/v1").
				Value(&creds.BaseURL).
				Validate(ValidateURL),
			huh.NewInput().
				Title("Session token").
				Description("Stored in the OS keyring").
				EchoMode(huh.EchoModePassword).
				Value(&creds.Token).
				Validate(validateRequired("Token")),
		),
	).WithWidth(width)
}

// ValidateWithGateway asks the gateway whether token is accepted.
func ValidateWithGateway(ctx context.Context, baseURL, token string) error {
	return backend.NewClient(baseURL, token).ValidateSession(ctx)
}

// Mode returns the current mode.
func (m Model) Mode() Mode {
	return m.mode
}

// Init focuses the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the login view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultMsg:
		if msg.err != nil {
			m.err = msg.err
			m.mode = ModeFailed
			return m, nil
		}
		creds := *m.creds
		return m, func() tea.Msg { return LoggedInMsg{Credentials: creds} }

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == ModeFailed {
			m.err = nil
			m.mode = ModeForm
			m.form = BuildForm(m.creds, formWidth(m.width))
			return m, m.form.Init()
		}
	}

	if m.mode != ModeForm {
		return m, nil
	}
	return m.updateForm(msg)
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.mode = ModeValidating
		return m, tea.Batch(m.spinner.Tick, m.submit())
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelledMsg{} }
	}
	return m, cmd
}

func (m Model) submit() tea.Cmd {
	creds := *m.creds
	creds.BaseURL = strings.TrimSpace(creds.BaseURL)
	creds.Token = strings.TrimSpace(creds.Token)
	m.creds.BaseURL, m.creds.Token = creds.BaseURL, creds.Token

	validate, save := m.validate, m.save
	return func() tea.Msg {
		if err := validate(context.Background(), creds.BaseURL, creds.Token); err != nil {
			return resultMsg{err: err}
		}
		if save != nil {
			if err := save(creds); err != nil {
				return resultMsg{err: fmt.Errorf("saving credentials: %w", err)}
			}
		}
		return resultMsg{}
	}
}

// View renders the login view.
func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1).
		Render("Sign in to the payment gateway")

	var body string
	switch m.mode {
	case ModeValidating:
		body = m.spinner.View() + " Checking session…"
	case ModeFailed:
		body = theme.ErrorStyle.Render("✗ "+backend.Describe(m.err)) + "\n\n" +
			theme.HelpStyle.Render("Press any key to try again")
	default:
		body = m.form.View()
	}

	return theme.PanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

// SetSize updates the form width.
func (m *Model) SetSize(width int) {
	m.width = width
	m.form = m.form.WithWidth(formWidth(width))
}

func formWidth(width int) int {
	w := width - 10
	if w > 80 {
		w = 80
	}
	if w < 30 {
		w = 30
	}
	return w
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

// ValidateURL requires an absolute http(s) URL.
func ValidateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}
