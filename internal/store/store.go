package store

import (
	"context"

	"github.com/nhle/paydash/internal/model"
)

// EventFilter narrows RecentEvents.
type EventFilter struct {
	Name  string // exact event name, or "" for all
	Limit int    // 0 means DefaultEventLimit
}

// DefaultEventLimit caps RecentEvents when no limit is given.
const DefaultEventLimit = 50

// Store is the local activity log of live channel events. Notification
// records are never stored here; the gateway owns them.
type Store interface {
	AppendEvent(ctx context.Context, ev model.ChannelEvent) error
	RecentEvents(ctx context.Context, filter EventFilter) ([]model.ChannelEvent, error)
	CountEvents(ctx context.Context) (int, error)
	PruneEvents(ctx context.Context, keep int) (int64, error)
	Close() error
}
