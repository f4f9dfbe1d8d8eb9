package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/paydash/internal/testutil"
)

func TestNewClient_TrimsBaseURL(t *testing.T) {
	c := NewClient("https://api.gateway.test/v1/", "tok")
	assert.Equal(t, "https://api.gateway.test/v1", c.baseURL)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.True(t, c.HasSession())
}

func TestClient_NoTokenFailsWithoutNetwork(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	_, err := c.ListNotifications(context.Background(), 1, 20)

	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, int32(0), hits.Load())
}

func TestClient_ListNotifications(t *testing.T) {
	gw := testutil.NewFakeGateway(t, "tok")
	gw.SetNotifications(testutil.MakeRecords(25, 5))
	gw.SetTotal(47)

	c := NewClient(gw.URL(), "tok")
	page, err := c.ListNotifications(context.Background(), 1, 20)
	require.NoError(t, err)

	assert.Equal(t, 47, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
	assert.Len(t, page.Items, 20)
	assert.Equal(t, "n-1", page.Items[0].ID)
	assert.Nil(t, page.Items[0].ReadAt)
	assert.NotNil(t, page.Items[10].ReadAt)
}

func TestClient_MarkNotificationRead(t *testing.T) {
	gw := testutil.NewFakeGateway(t, "tok")
	gw.SetNotifications(testutil.MakeRecords(3, 3))

	c := NewClient(gw.URL(), "tok")
	rec, err := c.MarkNotificationRead(context.Background(), "n-2")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "n-2", rec.ID)
	assert.NotNil(t, rec.ReadAt)

	gw.SetEchoRead(false)
	rec, err = c.MarkNotificationRead(context.Background(), "n-3")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestClient_MarkAllNotificationsRead(t *testing.T) {
	gw := testutil.NewFakeGateway(t, "tok")
	gw.SetNotifications(testutil.MakeRecords(10, 4))

	c := NewClient(gw.URL(), "tok")
	updated, err := c.MarkAllNotificationsRead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, updated)
}

func TestClient_UnauthorizedIsAuthError(t *testing.T) {
	gw := testutil.NewFakeGateway(t, "tok")

	c := NewClient(gw.URL(), "wrong")
	_, err := c.ListNotifications(context.Background(), 1, 20)

	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	code, ok := StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestClient_APIErrorCarriesEnvelopeMessage(t *testing.T) {
	gw := testutil.NewFakeGateway(t, "tok")
	gw.FailNext(testutil.RouteList, http.StatusInternalServerError)

	c := NewClient(gw.URL(), "tok")
	_, err := c.ListNotifications(context.Background(), 1, 20)

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "list failed", apiErr.Message)
	assert.Equal(t, "list failed", Describe(err))
}

func TestClient_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message": "ok", "data": {`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "tok")
	_, err := c.ListNotifications(context.Background(), 1, 20)

	require.Error(t, err)
	assert.False(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "unmarshaling")
}

func TestClient_ListTransactions(t *testing.T) {
	gw := testutil.NewFakeGateway(t, "tok")
	gw.SetTransactions(testutil.MakeTransactions(7))

	c := NewClient(gw.URL(), "tok")
	page, err := c.ListTransactions(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	assert.Len(t, page.Items, 2)
}

func TestClient_WithTokenCopies(t *testing.T) {
	c := NewClient("http://x", "")
	scoped := c.WithToken("abc")

	assert.False(t, c.HasSession())
	assert.True(t, scoped.HasSession())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
	assert.Contains(t, Describe(&AuthError{Message: "x"}), "paydash login")
	assert.Equal(t, "Gateway returned HTTP 502", Describe(&APIError{StatusCode: 502}))
}
