package txlist

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/paydash/internal/backend"
	"github.com/nhle/paydash/internal/keys"
	"github.com/nhle/paydash/internal/testutil"
	"github.com/nhle/paydash/internal/txfeed"
	"github.com/nhle/paydash/internal/ui"
)

func TestTxList_LoadPageAndRender(t *testing.T) {
	gw := testutil.NewFakeGateway(t, "tok")
	gw.SetTransactions(testutil.MakeTransactions(25))

	f := txfeed.New(backend.NewClient(gw.URL(), "tok"), nil, 10, time.Minute, nil, nil)
	t.Cleanup(f.Close)

	m := New(f, keys.DefaultKeyMap(), 120, 20)
	msg := m.Init()().(ui.ActionMsg)
	require.NoError(t, msg.Err)
	m.Sync()

	view := m.View()
	assert.Contains(t, view, "ORD-0001")
	assert.Contains(t, view, "10.00 USD")
	assert.Contains(t, view, "page 1 of 3")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("]")})
	require.NotNil(t, cmd)
	require.NoError(t, cmd().(ui.ActionMsg).Err)
	assert.Equal(t, 2, f.Snapshot().Page)
}
