package help

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/paydash/internal/keys"
	"github.com/nhle/paydash/internal/model"
)

func TestView_ListsShortcuts(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 120, 40)

	out := m.View()
	assert.Contains(t, out, "Keyboard Shortcuts")
	assert.Contains(t, out, "mark all read")
	assert.NotContains(t, out, "Settings")
}

func TestView_ListsSettings(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.Backend.BaseURL = "https://gw.example.com"
	cfg.Channel.URL = ""

	m := New(keys.DefaultKeyMap(), 120, 40).WithSettings(SettingsFromConfig(cfg, "/tmp/paydash.yaml"))

	out := m.View()
	assert.Contains(t, out, "Settings")
	assert.Contains(t, out, "https://gw.example.com")
	assert.Contains(t, out, "(not set)")
	assert.Contains(t, out, "at most every 10s, fallback every 300s")
	assert.Contains(t, out, "/tmp/paydash.yaml")
}
