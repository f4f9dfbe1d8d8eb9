package login

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/paydash/internal/backend"
	"github.com/nhle/paydash/internal/testutil"
)

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://api.example.com/api/v1"))
	assert.NoError(t, ValidateURL(" http://localhost:4000 "))
	assert.Error(t, ValidateURL(""))
	assert.Error(t, ValidateURL("api.example.com"))
	assert.Error(t, ValidateURL("ftp://example.com"))
}

func TestValidateWithGateway(t *testing.T) {
	gw := testutil.NewFakeGateway(t, "good")

	assert.NoError(t, ValidateWithGateway(context.Background(), gw.URL(), "good"))

	err := ValidateWithGateway(context.Background(), gw.URL(), "bad")
	assert.True(t, backend.IsAuthError(err))
}

func TestSubmit_SavesTrimmedCredentials(t *testing.T) {
	var saved Credentials
	m := New("https://api.example.com", func(context.Context, string, string) error { return nil },
		func(c Credentials) error { saved = c; return nil }, 100)
	m.creds.Token = "  tok  "

	msg := m.submit()()
	require.Equal(t, resultMsg{}, msg)
	assert.Equal(t, Credentials{BaseURL: "https://api.example.com", Token: "tok"}, saved)

	_, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	assert.Equal(t, LoggedInMsg{Credentials: saved}, cmd())
}

func TestSubmit_FailureShowsErrorThenReturnsToForm(t *testing.T) {
	saveCalled := false
	m := New("https://api.example.com", func(context.Context, string, string) error {
		return &backend.AuthError{StatusCode: 401, Err: errors.New("unauthorized")}
	}, func(Credentials) error { saveCalled = true; return nil }, 100)
	m.creds.Token = "tok"

	m, _ = m.Update(m.submit()())
	assert.False(t, saveCalled)
	assert.Equal(t, ModeFailed, m.Mode())
	assert.Contains(t, m.View(), "paydash login")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ModeForm, m.Mode())
}
