package backend

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/paydash/internal/model"
)

// markAllResult is the data payload of PATCH /notifications/read-all.
type markAllResult struct {
	UpdatedCount int `json:"updated_count"`
}

// pageQuery builds the ?page=&limit= query string.
func pageQuery(page, limit int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q.Encode()
}

// ListNotifications fetches one page of notification records for the
// session's user.
func (c *Client) ListNotifications(
	ctx context.Context,
	page, limit int,
) (*model.NotificationPage, error) {
	var out model.NotificationPage
	if _, err := c.Get(ctx, "/notifications?"+pageQuery(page, limit), &out); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	if out.Items == nil {
		out.Items = []model.NotificationRecord{}
	}
	return &out, nil
}

// MarkNotificationRead marks one delivery record as read. The returned
// record is nil when the backend does not echo it.
func (c *Client) MarkNotificationRead(
	ctx context.Context,
	id string,
) (*model.NotificationRecord, error) {
	var rec model.NotificationRecord
	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(id))
	if _, err := c.Patch(ctx, path, nil, &rec); err != nil {
		return nil, fmt.Errorf("marking notification %s read: %w", id, err)
	}
	if rec.ID == "" {
		return nil, nil
	}
	return &rec, nil
}

// MarkAllNotificationsRead marks every unread record of the user as read
// and returns how many were updated.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var res markAllResult
	if _, err := c.Patch(ctx, "/notifications/read-all", nil, &res); err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	return res.UpdatedCount, nil
}

// ListTransactions fetches one page of transactions visible to the session.
func (c *Client) ListTransactions(
	ctx context.Context,
	page, limit int,
) (*model.TransactionPage, error) {
	var out model.TransactionPage
	if _, err := c.Get(ctx, "/transactions?"+pageQuery(page, limit), &out); err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	if out.Items == nil {
		out.Items = []model.Transaction{}
	}
	return &out, nil
}

// ValidateSession verifies the token by fetching a single notification.
func (c *Client) ValidateSession(ctx context.Context) error {
	if _, err := c.ListNotifications(ctx, 1, 1); err != nil {
		return fmt.Errorf("validating session: %w", err)
	}
	return nil
}
