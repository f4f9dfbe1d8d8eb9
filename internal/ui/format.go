package ui

import (
	"fmt"
	"strconv"
	"time"
)

// ActionMsg reports the outcome of a background store operation started by
// a view.
type ActionMsg struct {
	Surface string
	Op      string
	Err     error
}

// RelativeTime returns a human-friendly relative time string.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 02")
	}
}

// Badge renders an unread count, capped at "99+". Zero renders as "".
func Badge(n int) string {
	switch {
	case n <= 0:
		return ""
	case n > 99:
		return "99+"
	default:
		return strconv.Itoa(n)
	}
}

// PageInfo renders "page p of n" for a paged list.
func PageInfo(page, limit, total int) string {
	if limit <= 0 {
		return ""
	}
	pages := (total + limit - 1) / limit
	if pages < 1 {
		pages = 1
	}
	return fmt.Sprintf("page %d of %d", page, pages)
}

// HasNextPage reports whether another page follows page.
func HasNextPage(page, limit, total int) bool {
	return limit > 0 && page*limit < total
}
