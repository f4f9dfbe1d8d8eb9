package model

import (
	"encoding/json"
	"time"
)

// ChannelEvent is one named event pushed by the backend over the live event
// channel. These are distinct from the paged notification records.
type ChannelEvent struct {
	ID         string          `json:"id" db:"id"`
	Name       string          `json:"event" db:"name"`
	Data       json.RawMessage `json:"data" db:"data"`
	ReceivedAt time.Time       `json:"receivedAt" db:"received_at"`
}

// Toast is a transient alert derived from a channel event.
type Toast struct {
	ID        string
	EventName string
	Severity  Severity
	Title     string
	Body      string
	CreatedAt time.Time
}
