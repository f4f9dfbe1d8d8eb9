package channel

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/paydash/internal/bus"
	"github.com/nhle/paydash/internal/model"
)

type listenerHarness struct {
	listener *Listener
	toasts   []model.Toast
	signals  []bus.Topic
}

func newHarness() *listenerHarness {
	h := &listenerHarness{}
	b := bus.New()
	for _, topic := range []bus.Topic{bus.RefreshNotifications, bus.RefreshTransactions} {
		b.Subscribe(topic, func(ev bus.Event) { h.signals = append(h.signals, ev.Topic) })
	}
	h.listener = NewListener(b, func(t model.Toast) { h.toasts = append(h.toasts, t) }, nil)
	return h
}

func channelEvent(name, data string) model.ChannelEvent {
	return model.ChannelEvent{
		ID:         "ev-1",
		Name:       name,
		Data:       json.RawMessage(data),
		ReceivedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestListener_Routing(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		data     string
		severity model.Severity
		title    string
		body     string
		signals  []bus.Topic
	}{
		{
			name:     "transaction created",
			event:    EventTransactionCreated,
			data:     `{"reference":"ORD-7","amount":1250,"currency":"USD"}`,
			severity: model.SeverityInfo,
			title:    "Transaction created",
			body:     "ORD-7 · 12.50 USD",
			signals:  []bus.Topic{bus.RefreshNotifications, bus.RefreshTransactions},
		},
		{
			name:     "transaction updated",
			event:    EventTransactionUpdated,
			data:     `{"reference":"ORD-7","status":"refunded"}`,
			severity: model.SeverityInfo,
			title:    "Transaction updated",
			body:     "ORD-7 is now refunded",
			signals:  []bus.Topic{bus.RefreshTransactions},
		},
		{
			name:     "payment completed",
			event:    EventPaymentCompleted,
			data:     `{"reference":"ORD-8","amount":99,"currency":"EUR"}`,
			severity: model.SeveritySuccess,
			title:    "Payment completed",
			body:     "ORD-8 · 0.99 EUR",
			signals:  []bus.Topic{bus.RefreshNotifications, bus.RefreshTransactions},
		},
		{
			name:     "payment failed",
			event:    EventPaymentFailed,
			data:     `{"reference":"ORD-9","reason":"card declined"}`,
			severity: model.SeverityError,
			title:    "Payment failed",
			body:     "ORD-9: card declined",
			signals:  []bus.Topic{bus.RefreshNotifications, bus.RefreshTransactions},
		},
		{
			name:     "tenant created",
			event:    EventTenantCreated,
			data:     `{"name":"Acme"}`,
			severity: model.SeverityInfo,
			title:    "Tenant created",
			body:     "Acme",
		},
		{
			name:     "tenant updated",
			event:    EventTenantUpdated,
			data:     `{"name":"Acme"}`,
			severity: model.SeverityInfo,
			title:    "Tenant updated",
			body:     "Acme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.listener.Handle(channelEvent(tt.event, tt.data))

			require.Len(t, h.toasts, 1)
			toast := h.toasts[0]
			assert.Equal(t, tt.event, toast.EventName)
			assert.Equal(t, tt.severity, toast.Severity)
			assert.Equal(t, tt.title, toast.Title)
			assert.Equal(t, tt.body, toast.Body)
			assert.NotEmpty(t, toast.ID)
			assert.Equal(t, tt.signals, h.signals)
		})
	}
}

func TestListener_NotificationTakesSeverityFromPayload(t *testing.T) {
	h := newHarness()
	h.listener.Handle(channelEvent(EventNotification,
		`{"content":{"title":"Chargeback opened","body":"ORD-3","severity":"warning"}}`))

	require.Len(t, h.toasts, 1)
	assert.Equal(t, model.SeverityWarning, h.toasts[0].Severity)
	assert.Equal(t, "Chargeback opened", h.toasts[0].Title)
	assert.Equal(t, "ORD-3", h.toasts[0].Body)
	assert.Equal(t, []bus.Topic{bus.RefreshNotifications}, h.signals)
}

func TestListener_NotificationFallbacks(t *testing.T) {
	h := newHarness()
	h.listener.Handle(channelEvent(EventNotification, `{"message":"Settlement delayed","severity":"bogus"}`))

	require.Len(t, h.toasts, 1)
	assert.Equal(t, "New notification", h.toasts[0].Title)
	assert.Equal(t, "Settlement delayed", h.toasts[0].Body)
	assert.Equal(t, model.SeverityInfo, h.toasts[0].Severity)
}

func TestListener_IgnoresUnknownAndBadPayloads(t *testing.T) {
	h := newHarness()
	h.listener.Handle(channelEvent("user:login", `{}`))
	assert.Empty(t, h.toasts)
	assert.Empty(t, h.signals)

	h.listener.Handle(channelEvent(EventPaymentFailed, `[1,2]`))
	require.Len(t, h.toasts, 1)
	assert.Equal(t, "Payment failed", h.toasts[0].Title)
}

func TestListener_AttachRegistersEveryEvent(t *testing.T) {
	h := newHarness()
	c := NewClient(Options{URL: "ws://unused"})
	h.listener.Attach(c)

	for _, name := range EventNames() {
		c.dispatch(t.Context(), []byte(`{"event":"`+name+`","data":{}}`))
	}
	assert.Len(t, h.toasts, len(EventNames()))
}
