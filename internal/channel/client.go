// Package channel keeps the live event connection to the gateway and turns
// its named events into toasts and refresh signals.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nhle/paydash/internal/logging"
	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/ring"
)

// State is the connection state exposed to views.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrReconnectExhausted is returned by Run when every reconnect attempt
// failed.
var ErrReconnectExhausted = errors.New("event channel: reconnect attempts exhausted")

// AnyEvent registers a handler for every event name.
const AnyEvent = "*"

// Frame is the wire shape of one event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Handler receives one decoded event.
type Handler func(model.ChannelEvent)

// Recorder persists received events.
type Recorder interface {
	AppendEvent(ctx context.Context, ev model.ChannelEvent) error
}

// Options configures a Client. Zero durations and counts fall back to the
// defaults below.
type Options struct {
	URL   string
	Token string

	ConnectTimeout    time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration
	BufferSize        int

	Recorder Recorder
	Logger   *logrus.Logger
	Dialer   *websocket.Dialer
	Clock    func() time.Time
}

const (
	DefaultConnectTimeout    = 20 * time.Second
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second
	DefaultReconnectDelayMax = 5 * time.Second
	DefaultBufferSize        = 50
)

// OptionsFromConfig maps the channel section of the config file.
func OptionsFromConfig(cfg model.ChannelConfig, token string) Options {
	return Options{
		URL:               cfg.URL,
		Token:             token,
		ConnectTimeout:    time.Duration(cfg.ConnectTimeoutSec) * time.Second,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    time.Duration(cfg.ReconnectDelayMs) * time.Millisecond,
		ReconnectDelayMax: time.Duration(cfg.ReconnectDelayMaxMs) * time.Millisecond,
		BufferSize:        cfg.BufferSize,
	}
}

// Client is one persistent event connection with bounded reconnects.
type Client struct {
	opts   Options
	log    *logrus.Entry
	recent *ring.Ring[model.ChannelEvent]

	mu            gosync.RWMutex
	state         State
	handlers      map[string][]Handler
	stateHandlers []func(State)

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewClient creates a disconnected client.
func NewClient(opts Options) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReconnectAttempts < 0 {
		opts.ReconnectAttempts = 0
	} else if opts.ReconnectAttempts == 0 {
		opts.ReconnectAttempts = DefaultReconnectAttempts
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.ReconnectDelayMax < opts.ReconnectDelay {
		opts.ReconnectDelayMax = DefaultReconnectDelayMax
		if opts.ReconnectDelayMax < opts.ReconnectDelay {
			opts.ReconnectDelayMax = opts.ReconnectDelay
		}
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Client{
		opts:     opts,
		log:      logging.Component(opts.Logger, "channel"),
		recent:   ring.New[model.ChannelEvent](opts.BufferSize),
		handlers: make(map[string][]Handler),
	}
}

// On registers h for events named name, or for all events with AnyEvent.
func (c *Client) On(name string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[name] = append(c.handlers[name], h)
}

// OnStateChange registers fn to be called on every state transition.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandlers = append(c.stateHandlers, fn)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// StateName returns the current state as text, e.g. "connected".
func (c *Client) StateName() string {
	return c.State().String()
}

// Connected reports whether the connection is up.
func (c *Client) Connected() bool {
	return c.State() == Connected
}

// Recent returns the buffered events, most recent first.
func (c *Client) Recent() []model.ChannelEvent {
	return c.recent.Items()
}

// BufferSize returns how many recent events are kept.
func (c *Client) BufferSize() int {
	return c.recent.Cap()
}

// Seed pre-fills the recent buffer, e.g. from the activity log. events are
// expected newest first.
func (c *Client) Seed(events []model.ChannelEvent) {
	for i := len(events) - 1; i >= 0; i-- {
		c.recent.Push(events[i])
	}
}

// Backoff returns the delay before reconnect attempt n (1-based): linear
// in n and capped at the configured maximum.
func (c *Client) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := c.opts.ReconnectDelay * time.Duration(n)
	if d > c.opts.ReconnectDelayMax {
		d = c.opts.ReconnectDelayMax
	}
	return d
}

// Start runs the connection loop in the background until Close.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		err := c.Run(ctx)
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		if err != nil {
			c.log.WithError(err).Warn("Event channel stopped")
		}
	}()
}

// Close stops a started client and waits for the loop to exit.
func (c *Client) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Err returns why a started loop exited, or nil.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Run connects and reads events until ctx is done, reconnecting after
// drops. It returns nil when ctx is cancelled and ErrReconnectExhausted
// when the reconnect budget runs out.
func (c *Client) Run(ctx context.Context) error {
	failures := 0
	for {
		if failures > 0 {
			if failures > c.opts.ReconnectAttempts {
				c.setState(Disconnected)
				return ErrReconnectExhausted
			}
			delay := c.Backoff(failures)
			c.log.WithFields(logrus.Fields{"attempt": failures, "delay": delay}).
				Info("Reconnecting event channel")
			select {
			case <-ctx.Done():
				c.setState(Disconnected)
				return nil
			case <-time.After(delay):
			}
		}

		c.setState(Connecting)
		conn, err := c.dial(ctx)
		if err != nil {
			c.setState(Disconnected)
			if ctx.Err() != nil {
				return nil
			}
			c.log.WithError(err).Warn("connect_error")
			failures++
			continue
		}

		failures = 0
		c.setState(Connected)
		c.log.WithField("url", c.opts.URL).Info("Event channel connected")

		err = c.readLoop(ctx, conn)
		c.setState(Disconnected)
		if ctx.Err() != nil {
			return nil
		}
		c.log.WithError(err).Warn("disconnect")
		failures = 1
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	if c.opts.URL == "" {
		return nil, fmt.Errorf("event channel URL is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: HTTP %d: %w", c.opts.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", c.opts.URL, err)
	}
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(ctx, data)
	}
}

func (c *Client) dispatch(ctx context.Context, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		c.log.WithError(err).Debug("Dropping undecodable frame")
		return
	}
	if f.Event == "" {
		c.log.Debug("Dropping frame without event name")
		return
	}
	if len(f.Data) == 0 || string(f.Data) == "null" {
		f.Data = json.RawMessage(`{}`)
	}

	ev := model.ChannelEvent{
		ID:         uuid.NewString(),
		Name:       f.Event,
		Data:       f.Data,
		ReceivedAt: c.opts.Clock().UTC(),
	}
	c.recent.Push(ev)

	if c.opts.Recorder != nil {
		if err := c.opts.Recorder.AppendEvent(ctx, ev); err != nil {
			c.log.WithError(err).WithField("event", ev.Name).Warn("Recording event failed")
		}
	}

	c.mu.RLock()
	hs := append([]Handler(nil), c.handlers[ev.Name]...)
	hs = append(hs, c.handlers[AnyEvent]...)
	c.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	fns := append(([]func(State))(nil), c.stateHandlers...)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
