package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/paydash/internal/model"
	appsync "github.com/nhle/paydash/internal/sync"
	"github.com/nhle/paydash/internal/ui/toast"
)

// ttl returns the configured toast lifetime.
func ttl(cfg model.DisplayConfig) time.Duration {
	if cfg.ToastTTLSec <= 0 {
		return toast.DefaultTTL
	}
	return time.Duration(cfg.ToastTTLSec) * time.Second
}

// syncSummary condenses the fallback refresher statuses for the header.
func syncSummary(statuses []appsync.SyncStatus) string {
	if len(statuses) == 0 {
		return ""
	}

	running := 0
	var stale []string
	for _, s := range statuses {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError:
			stale = append(stale, s.Name)
		}
	}

	if running > 0 {
		return fmt.Sprintf("syncing (%d)", running)
	}
	if len(stale) > 0 {
		return "⚠ unreachable: " + strings.Join(stale, ", ")
	}
	return ""
}
