package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// BackendConfig holds the connection settings for the gateway API.
type BackendConfig struct {
	// BaseURL is the root URL of the gateway API (e.g., https://api.gateway.example.com).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP call.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// Timeout returns TimeoutSec as a duration.
func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// ChannelConfig holds settings for the live event channel.
type ChannelConfig struct {
	URL                 string `mapstructure:"url" yaml:"url"`
	ConnectTimeoutSec   int    `mapstructure:"connect_timeout_sec" yaml:"connect_timeout_sec"`
	ReconnectAttempts   int    `mapstructure:"reconnect_attempts" yaml:"reconnect_attempts"`
	ReconnectDelayMs    int    `mapstructure:"reconnect_delay_ms" yaml:"reconnect_delay_ms"`
	ReconnectDelayMaxMs int    `mapstructure:"reconnect_delay_max_ms" yaml:"reconnect_delay_max_ms"`

	// BufferSize caps the number of recent events kept in memory.
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
}

// NotificationsConfig holds refresh tuning for the notification stores.
type NotificationsConfig struct {
	PageSize              int `mapstructure:"page_size" yaml:"page_size"`
	DropdownSize          int `mapstructure:"dropdown_size" yaml:"dropdown_size"`
	MinRefreshIntervalSec int `mapstructure:"min_refresh_interval_sec" yaml:"min_refresh_interval_sec"`
	DebounceMs            int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	FallbackIntervalSec   int `mapstructure:"fallback_interval_sec" yaml:"fallback_interval_sec"`
}

// TransactionsConfig holds refresh tuning for the transaction feed.
type TransactionsConfig struct {
	PageSize              int `mapstructure:"page_size" yaml:"page_size"`
	MinRefreshIntervalSec int `mapstructure:"min_refresh_interval_sec" yaml:"min_refresh_interval_sec"`
}

// ProxyConfig holds settings for the HTTP API proxy.
type ProxyConfig struct {
	ListenAddr     string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme         string `mapstructure:"theme" yaml:"theme"`
	ToastTTLSec   int    `mapstructure:"toast_ttl_sec" yaml:"toast_ttl_sec"`
	ToastCapacity int    `mapstructure:"toast_capacity" yaml:"toast_capacity"`
}

// LoggingConfig controls log level and destination.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// File is where logs go in TUI mode. Empty means stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// StoreConfig holds settings for the local activity log.
type StoreConfig struct {
	Path           string `mapstructure:"path" yaml:"path"`
	EventRetention int    `mapstructure:"event_retention" yaml:"event_retention"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend       BackendConfig       `mapstructure:"backend" yaml:"backend"`
	Channel       ChannelConfig       `mapstructure:"channel" yaml:"channel"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Transactions  TransactionsConfig  `mapstructure:"transactions" yaml:"transactions"`
	Proxy         ProxyConfig         `mapstructure:"proxy" yaml:"proxy"`
	Display       DisplayConfig       `mapstructure:"display" yaml:"display"`
	Logging       LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
}

// envPrefix is prepended to every environment override, e.g.
// PAYDASH_BACKEND_BASE_URL.
const envPrefix = "PAYDASH"

// configDir returns ~/.config/paydash, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "paydash")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/paydash/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaults is the single source of default values. It feeds both viper
// (so env overrides work for keys absent from the file) and
// DefaultAppConfig.
var defaults = map[string]interface{}{
	"backend.base_url":                       "http://localhost:4000/api/v1",
	"backend.timeout_sec":                    30,
	"channel.url":                            "ws://localhost:4000/events",
	"channel.connect_timeout_sec":            20,
	"channel.reconnect_attempts":             5,
	"channel.reconnect_delay_ms":             1000,
	"channel.reconnect_delay_max_ms":         5000,
	"channel.buffer_size":                    50,
	"notifications.page_size":                20,
	"notifications.dropdown_size":            5,
	"notifications.min_refresh_interval_sec": 10,
	"notifications.debounce_ms":              1000,
	"notifications.fallback_interval_sec":    300,
	"transactions.page_size":                 20,
	"transactions.min_refresh_interval_sec":  5,
	"proxy.listen_addr":                      ":8080",
	"proxy.allowed_origins":                  []string{"http://localhost:3000"},
	"display.theme":                          "default",
	"display.toast_ttl_sec":                  5,
	"display.toast_capacity":                 3,
	"logging.level":                          "info",
	"logging.file":                           "",
	"store.path":                             "",
	"store.event_retention":                  500,
}

// DefaultAppConfig returns the configuration used when no file exists:
// the defaults plus PAYDASH_* overrides. If an override does not parse, it
// is logged and the plain defaults are returned instead.
func DefaultAppConfig() *AppConfig {
	cfg := &AppConfig{}
	if err := newViper().Unmarshal(cfg); err != nil {
		logrus.WithError(err).Warn("Ignoring invalid PAYDASH_* environment overrides")

		cfg = &AppConfig{}
		if err := newDefaultsViper().Unmarshal(cfg); err != nil {
			panic(fmt.Sprintf("built-in config defaults do not decode: %v", err))
		}
	}
	cfg.applyDerived()
	return cfg
}

func newDefaultsViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

func newViper() *viper.Viper {
	v := newDefaultsViper()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with PAYDASH_ override file values. If the
// file does not exist, defaults (plus env overrides) are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// applyDerived fills values that depend on the environment rather than on
// static defaults.
func (c *AppConfig) applyDerived() {
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(configDir(), "paydash.db")
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
}

// Validate checks the invariants the refresh machinery relies on.
func (c *AppConfig) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	if c.Notifications.PageSize <= 0 || c.Notifications.DropdownSize <= 0 {
		return errors.New("notifications page sizes must be positive")
	}
	if c.Transactions.PageSize <= 0 {
		return errors.New("transactions.page_size must be positive")
	}
	if c.Channel.BufferSize <= 0 {
		return errors.New("channel.buffer_size must be positive")
	}
	if c.Channel.ReconnectDelayMaxMs < c.Channel.ReconnectDelayMs {
		return errors.New("channel.reconnect_delay_max_ms must be >= reconnect_delay_ms")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("channel", cfg.Channel)
	v.Set("notifications", cfg.Notifications)
	v.Set("transactions", cfg.Transactions)
	v.Set("proxy", cfg.Proxy)
	v.Set("display", cfg.Display)
	v.Set("logging", cfg.Logging)
	v.Set("store", cfg.Store)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
