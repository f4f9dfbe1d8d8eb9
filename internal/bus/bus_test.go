package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversToTopicSubscribersOnly(t *testing.T) {
	b := New()

	var marked []Event
	var refreshes int
	b.Subscribe(NotificationMarkedAsRead, func(ev Event) { marked = append(marked, ev) })
	b.Subscribe(RefreshNotifications, func(Event) { refreshes++ })

	readAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b.Publish(Event{Topic: NotificationMarkedAsRead, NotificationID: "abc123", ReadAt: readAt})

	require.Len(t, marked, 1)
	assert.Equal(t, "abc123", marked[0].NotificationID)
	assert.Equal(t, readAt, marked[0].ReadAt)
	assert.Equal(t, 0, refreshes)
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() {
		b.Publish(Event{Topic: RefreshTransactions})
	})
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()

	var a, c int
	unsubA := b.Subscribe(RefreshNotifications, func(Event) { a++ })
	b.Subscribe(RefreshNotifications, func(Event) { c++ })
	assert.Equal(t, 2, b.Subscribers(RefreshNotifications))

	unsubA()
	unsubA()
	b.Publish(Event{Topic: RefreshNotifications})

	assert.Equal(t, 0, a)
	assert.Equal(t, 1, c)
	assert.Equal(t, 1, b.Subscribers(RefreshNotifications))
}

func TestBus_HandlersMayUnsubscribeDuringPublish(t *testing.T) {
	b := New()

	var calls int
	var unsub func()
	unsub = b.Subscribe(AllNotificationsMarkedAsRead, func(Event) {
		calls++
		unsub()
	})
	b.Subscribe(AllNotificationsMarkedAsRead, func(Event) { calls++ })

	b.Publish(Event{Topic: AllNotificationsMarkedAsRead})
	b.Publish(Event{Topic: AllNotificationsMarkedAsRead})

	assert.Equal(t, 3, calls)
}

func TestBus_Topics(t *testing.T) {
	b := New()
	unsub := b.Subscribe(RefreshTransactions, func(Event) {})
	b.Subscribe(NotificationMarkedAsRead, func(Event) {})

	assert.Equal(t, []Topic{NotificationMarkedAsRead, RefreshTransactions}, b.Topics())
	unsub()
	assert.Equal(t, []Topic{NotificationMarkedAsRead}, b.Topics())
}
