package store_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/paydash/internal/model"
	"github.com/nhle/paydash/internal/store"
	"github.com/nhle/paydash/internal/testutil"
)

var base = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func event(i int, name string) model.ChannelEvent {
	return model.ChannelEvent{
		ID:         fmt.Sprintf("ev-%d", i),
		Name:       name,
		Data:       json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i)),
		ReceivedAt: base.Add(time.Duration(i) * time.Second),
	}
}

func TestMigrations_ApplyAll(t *testing.T) {
	s := testutil.NewTestStore(t)

	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMigrations_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "paydash.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.AppendEvent(context.Background(), event(1, "notification")))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAppendEvent_RecentEventsNewestFirst(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.AppendEvent(ctx, event(i, "transaction:created")))
	}

	events, err := s.RecentEvents(ctx, store.EventFilter{Limit: 3})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "ev-5", events[0].ID)
	assert.Equal(t, "ev-3", events[2].ID)
	assert.JSONEq(t, `{"seq":5}`, string(events[0].Data))
	assert.True(t, events[0].ReceivedAt.Equal(base.Add(5*time.Second)))
}

func TestAppendEvent_DuplicateIDKeepsFirst(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, event(1, "payment:completed")))
	require.NoError(t, s.AppendEvent(ctx, event(1, "payment:failed")))

	events, err := s.RecentEvents(ctx, store.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "payment:completed", events[0].Name)
}

func TestAppendEvent_FillsDefaults(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, model.ChannelEvent{Name: "tenant:created"}))

	events, err := s.RecentEvents(ctx, store.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.JSONEq(t, `{}`, string(events[0].Data))
	assert.False(t, events[0].ReceivedAt.IsZero())
}

func TestAppendEvent_Rejects(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.AppendEvent(ctx, model.ChannelEvent{}))
	assert.Error(t, s.AppendEvent(ctx, model.ChannelEvent{Name: "x", Data: json.RawMessage(`{`)}))
}

func TestRecentEvents_FilterByName(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, event(1, "payment:failed")))
	require.NoError(t, s.AppendEvent(ctx, event(2, "notification")))
	require.NoError(t, s.AppendEvent(ctx, event(3, "payment:failed")))

	events, err := s.RecentEvents(ctx, store.EventFilter{Name: "payment:failed"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-3", events[0].ID)
	assert.Equal(t, "ev-1", events[1].ID)
}

func TestPruneEvents_KeepsNewest(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		require.NoError(t, s.AppendEvent(ctx, event(i, "notification")))
	}

	removed, err := s.PruneEvents(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), removed)

	events, err := s.RecentEvents(ctx, store.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "ev-10", events[0].ID)
	assert.Equal(t, "ev-7", events[3].ID)
}
