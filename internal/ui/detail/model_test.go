package detail

import (
	"encoding/json"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/paydash/internal/keys"
	"github.com/nhle/paydash/internal/testutil"
)

func TestView_EmptyAndRecord(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)
	assert.Contains(t, m.View(), "No notification selected")

	rec := testutil.MakeRecords(1, 1)[0]
	rec.Content.Payload = json.RawMessage(`{"transactionId":"tx-9"}`)
	m.SetRecord(rec)

	out := m.View()
	assert.Contains(t, out, "Payment 1 settled")
	assert.Contains(t, out, "unread")
	assert.Contains(t, out, "Settlement completed")
	assert.Contains(t, out, `"transactionId": "tx-9"`)
}

func TestUpdate_MarkReadOnlyWhenUnread(t *testing.T) {
	recs := testutil.MakeRecords(2, 1)
	m := New(keys.DefaultKeyMap(), 80, 30)

	m.SetRecord(recs[0])
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	require.NotNil(t, cmd)
	assert.Equal(t, MarkReadMsg{ID: "n-1"}, cmd())

	m.SetRecord(recs[1])
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	assert.Nil(t, cmd)
}

func TestUpdate_BackEmitsBackMsg(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 30)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())
}

func TestPrettyPayload(t *testing.T) {
	assert.Equal(t, "", prettyPayload(nil))
	assert.Equal(t, "", prettyPayload(json.RawMessage(`{}`)))
	assert.Equal(t, "{\n  \"a\": 1\n}", prettyPayload(json.RawMessage(`{"a":1}`)))
}
