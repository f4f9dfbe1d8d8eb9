package txfeed

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/paydash/internal/backend"
	"github.com/nhle/paydash/internal/bus"
	"github.com/nhle/paydash/internal/testutil"
)

func newFeed(t *testing.T, b *bus.Bus, txCount int) (*testutil.FakeGateway, *Feed) {
	t.Helper()
	gw := testutil.NewFakeGateway(t, "tok")
	gw.SetTransactions(testutil.MakeTransactions(txCount))
	f := New(backend.NewClient(gw.URL(), "tok"), b, 5, time.Minute, nil, nil)
	t.Cleanup(f.Close)
	return gw, f
}

func TestFeed_Fetch(t *testing.T) {
	_, f := newFeed(t, nil, 12)

	require.NoError(t, f.Fetch(context.Background(), 2, 5))
	st := f.Snapshot()
	assert.Len(t, st.Items, 5)
	assert.Equal(t, "tx-6", st.Items[0].ID)
	assert.Equal(t, 12, st.TotalCount)
	assert.Equal(t, 2, st.Page)

	assert.ErrorIs(t, f.Fetch(context.Background(), 0, 5), ErrInvalidPage)
}

func TestFeed_FailureKeepsItems(t *testing.T) {
	gw, f := newFeed(t, nil, 3)
	require.NoError(t, f.Fetch(context.Background(), 1, 5))

	gw.FailNext(testutil.RouteTransactions, http.StatusServiceUnavailable)
	require.Error(t, f.Fetch(context.Background(), 1, 5))

	st := f.Snapshot()
	assert.Len(t, st.Items, 3)
	assert.Equal(t, "transactions failed", st.ErrMessage())
}

func TestFeed_RefreshIsGuarded(t *testing.T) {
	gw, f := newFeed(t, nil, 3)

	ran, err := f.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = f.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1, gw.Calls(testutil.RouteTransactions))
}

func TestFeed_RefreshesOnSignal(t *testing.T) {
	b := bus.New()
	gw, f := newFeed(t, b, 4)

	b.Publish(bus.Event{Topic: bus.RefreshTransactions})

	assert.Eventually(t, func() bool { return len(f.Snapshot().Items) == 4 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, gw.Calls(testutil.RouteTransactions))

	f.Close()
	assert.Equal(t, 0, b.Subscribers(bus.RefreshTransactions))
}
