package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/store"
	"github.com/nhle/paydash/internal/testutil"
)

// wsServer accepts event-channel connections and hands them to the test.
type wsServer struct {
	server  *httptest.Server
	conns   chan *websocket.Conn
	dials   atomic.Int32
	reject  atomic.Bool
	token   string
	lastHdr atomic.Value
}

func newWSServer(t *testing.T, token string) *wsServer {
	t.Helper()
	s := &wsServer{conns: make(chan *websocket.Conn, 8), token: token}
	upgrader := websocket.Upgrader{}

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.dials.Add(1)
		s.lastHdr.Store(r.Header.Get("Authorization"))
		if s.reject.Load() || r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *wsServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("client did not connect")
		return nil
	}
}

func send(t *testing.T, conn *websocket.Conn, event string, data string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(Frame{Event: event, Data: json.RawMessage(data)}))
}

func testOptions(url string) Options {
	return Options{
		URL:               url,
		Token:             "tok",
		ConnectTimeout:    time.Second,
		ReconnectAttempts: 3,
		ReconnectDelay:    10 * time.Millisecond,
		ReconnectDelayMax: 30 * time.Millisecond,
	}
}

// stateLog records state transitions.
type stateLog struct {
	mu     gosync.Mutex
	states []State
}

func (l *stateLog) add(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func TestClient_ReceivesEventsMostRecentFirst(t *testing.T) {
	srv := newWSServer(t, "tok")
	rec := testutil.NewTestStore(t)

	opts := testOptions(srv.url())
	opts.Recorder = rec
	c := NewClient(opts)

	states := &stateLog{}
	c.OnStateChange(states.add)

	var mu gosync.Mutex
	var named, all []string
	c.On(EventPaymentCompleted, func(ev model.ChannelEvent) {
		mu.Lock()
		defer mu.Unlock()
		named = append(named, ev.Name)
	})
	c.On(AnyEvent, func(ev model.ChannelEvent) {
		mu.Lock()
		defer mu.Unlock()
		all = append(all, ev.Name)
	})

	c.Start(context.Background())
	t.Cleanup(c.Close)

	conn := srv.accept(t)
	assert.Eventually(t, c.Connected, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Bearer tok", srv.lastHdr.Load())

	send(t, conn, EventTransactionCreated, `{"reference":"ORD-1"}`)
	send(t, conn, EventPaymentCompleted, `{"reference":"ORD-1"}`)

	// Handlers run last, after buffering and recording.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(all) == 2
	}, time.Second, 5*time.Millisecond)

	recent := c.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, EventPaymentCompleted, recent[0].Name)
	assert.Equal(t, EventTransactionCreated, recent[1].Name)
	assert.JSONEq(t, `{"reference":"ORD-1"}`, string(recent[0].Data))

	mu.Lock()
	assert.Equal(t, []string{EventPaymentCompleted}, named)
	assert.Equal(t, []string{EventTransactionCreated, EventPaymentCompleted}, all)
	mu.Unlock()

	stored, err := rec.RecentEvents(context.Background(), store.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	assert.Equal(t, []State{Connecting, Connected}, states.all())
}

func TestClient_BufferIsBounded(t *testing.T) {
	srv := newWSServer(t, "tok")
	opts := testOptions(srv.url())
	opts.BufferSize = 3
	c := NewClient(opts)
	c.Start(context.Background())
	t.Cleanup(c.Close)

	conn := srv.accept(t)
	for i := 0; i < 5; i++ {
		send(t, conn, EventNotification, `{"seq":`+string(rune('0'+i))+`}`)
	}

	assert.Eventually(t, func() bool {
		r := c.Recent()
		return len(r) == 3 && string(r[0].Data) == `{"seq":4}`
	}, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"seq":2}`, string(c.Recent()[2].Data))
}

func TestClient_DropsBadFrames(t *testing.T) {
	srv := newWSServer(t, "tok")
	c := NewClient(testOptions(srv.url()))
	c.Start(context.Background())
	t.Cleanup(c.Close)

	conn := srv.accept(t)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)))
	send(t, conn, EventTenantCreated, `null`)

	assert.Eventually(t, func() bool { return len(c.Recent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, EventTenantCreated, c.Recent()[0].Name)
	assert.JSONEq(t, `{}`, string(c.Recent()[0].Data))
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	srv := newWSServer(t, "tok")
	c := NewClient(testOptions(srv.url()))
	c.Start(context.Background())
	t.Cleanup(c.Close)

	first := srv.accept(t)
	assert.Eventually(t, c.Connected, time.Second, 5*time.Millisecond)
	first.Close()

	second := srv.accept(t)
	assert.Eventually(t, c.Connected, time.Second, 5*time.Millisecond)
	send(t, second, EventNotification, `{"title":"after reconnect"}`)
	assert.Eventually(t, func() bool { return len(c.Recent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), srv.dials.Load())
}

func TestClient_GivesUpAfterBoundedAttempts(t *testing.T) {
	srv := newWSServer(t, "tok")
	srv.reject.Store(true)

	opts := testOptions(srv.url())
	opts.ReconnectAttempts = 2
	c := NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.Run(ctx)
	assert.ErrorIs(t, err, ErrReconnectExhausted)
	assert.Equal(t, int32(3), srv.dials.Load())
	assert.Equal(t, Disconnected, c.State())
}

func TestClient_RunStopsOnCancel(t *testing.T) {
	srv := newWSServer(t, "tok")
	c := NewClient(testOptions(srv.url()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	srv.accept(t)
	assert.Eventually(t, c.Connected, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, Disconnected, c.State())
}

func TestClient_Backoff(t *testing.T) {
	c := NewClient(Options{URL: "ws://unused"})

	assert.Equal(t, time.Second, c.Backoff(1))
	assert.Equal(t, 3*time.Second, c.Backoff(3))
	assert.Equal(t, 5*time.Second, c.Backoff(5))
	assert.Equal(t, 5*time.Second, c.Backoff(9))
	assert.Equal(t, time.Second, c.Backoff(0))
}

func TestClient_Seed(t *testing.T) {
	c := NewClient(Options{URL: "ws://unused", BufferSize: 2})
	c.Seed([]model.ChannelEvent{{ID: "3"}, {ID: "2"}, {ID: "1"}})

	recent := c.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "3", recent[0].ID)
	assert.Equal(t, "2", recent[1].ID)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := model.DefaultAppConfig().Channel
	c := NewClient(OptionsFromConfig(cfg, "tok"))

	assert.Equal(t, 20*time.Second, c.opts.ConnectTimeout)
	assert.Equal(t, 5, c.opts.ReconnectAttempts)
	assert.Equal(t, 50, c.recent.Cap())
}
