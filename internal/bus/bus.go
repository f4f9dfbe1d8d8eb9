// Package bus is the in-process signal bridge between independent views.
// Signals carry hints only; receivers re-fetch instead of trusting them.
package bus

import (
	"sort"
	gosync "sync"
	"time"
)

// Topic names a signal.
type Topic string

const (
	NotificationMarkedAsRead     Topic = "notificationMarkedAsRead"
	AllNotificationsMarkedAsRead Topic = "allNotificationsMarkedAsRead"
	RefreshNotifications         Topic = "refreshNotifications"
	RefreshTransactions          Topic = "refreshTransactions"
)

// Event is a published signal. NotificationID is set for
// NotificationMarkedAsRead only; ReadAt for the two mark topics.
type Event struct {
	Topic          Topic
	NotificationID string
	ReadAt         time.Time
	// Source identifies the publisher so it can ignore its own signals.
	Source string
}

// Handler receives events for a topic.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus delivers events synchronously to every handler subscribed to the
// event's topic. The zero value is not usable; call New.
type Bus struct {
	mu     gosync.RWMutex
	nextID int
	subs   map[Topic][]subscription
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[Topic][]subscription)}
}

// Subscribe registers fn for topic and returns a function that removes it.
// The returned function is safe to call more than once.
func (b *Bus) Subscribe(topic Topic, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once gosync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

// Publish delivers ev to the current subscribers of ev.Topic in
// subscription order. Handlers may subscribe or publish re-entrantly.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[ev.Topic]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// Subscribers returns the number of handlers registered for topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Topics lists topics with at least one subscriber.
func (b *Bus) Topics() []Topic {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Topic, 0, len(b.subs))
	for t, s := range b.subs {
		if len(s) > 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (b *Bus) remove(topic Topic, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s.id == id {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}
