package model

import (
	"encoding/json"
	"time"
)

// NotificationType classifies what part of the gateway raised a notification.
type NotificationType string

const (
	NotificationTypeTransaction NotificationType = "transaction"
	NotificationTypeTenant      NotificationType = "tenant"
	NotificationTypePayment     NotificationType = "payment"
	NotificationTypeSystem      NotificationType = "system"
)

// Severity is the display severity of a notification or toast.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ParseSeverity maps a free-form severity string to a known Severity,
// falling back to SeverityInfo.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeveritySuccess, SeverityWarning, SeverityError:
		return Severity(s)
	default:
		return SeverityInfo
	}
}

// NotificationContent is the notification itself, shared by every delivery
// of it.
type NotificationContent struct {
	Type     NotificationType `json:"type"`
	Severity Severity         `json:"severity"`
	Title    string           `json:"title"`
	Body     string           `json:"body"`

	// Payload carries event and resource references. It is opaque to the
	// dashboard.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NotificationRecord is one delivery of a notification to one user. It is
// owned by the backend; the dashboard only reads it and asks the backend to
// mark it read.
type NotificationRecord struct {
	// ID identifies the delivery record, not the notification content.
	ID string `json:"id"`

	// NotificationID identifies the underlying notification content.
	NotificationID string `json:"notificationId"`

	UserID string `json:"userId"`

	// DeliveredAt is when the record became visible to the user.
	DeliveredAt time.Time `json:"deliveredAt"`

	// ReadAt is nil while unread. Once set it is never cleared.
	ReadAt *time.Time `json:"readAt"`

	// ArchivedAt is carried through but not used by the dashboard.
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	Content NotificationContent `json:"content"`
}

// IsRead reports whether the record carries a read timestamp.
func (n NotificationRecord) IsRead() bool {
	return n.ReadAt != nil
}

// NotificationPage is one page of notification records as returned by the
// backend.
type NotificationPage struct {
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
	Items []NotificationRecord `json:"items"`
}

// CountUnread returns the number of records without a read timestamp.
func CountUnread(items []NotificationRecord) int {
	n := 0
	for _, it := range items {
		if it.ReadAt == nil {
			n++
		}
	}
	return n
}
