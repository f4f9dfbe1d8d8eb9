package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nhle/paydash/internal/model"
)

// Route names accepted by FakeGateway.Calls and FakeGateway.FailNext.
const (
	RouteList         = "list"
	RouteRead         = "read"
	RouteReadAll      = "read-all"
	RouteTransactions = "transactions"
)

// FakeGateway is an in-memory stand-in for the gateway API. It serves the
// notification and transaction endpoints with the {message, data} envelope
// and counts calls per route.
type FakeGateway struct {
	Server *httptest.Server
	Token  string

	mu           sync.Mutex
	records      []model.NotificationRecord
	total        int
	transactions []model.Transaction
	calls        map[string]int
	failNext     map[string]int
	listGate     chan struct{}
	echoRead     bool
}

// NewFakeGateway starts a fake gateway that accepts the given bearer token.
// The server is closed when the test completes.
func NewFakeGateway(t *testing.T, token string) *FakeGateway {
	t.Helper()

	g := &FakeGateway{
		Token:    token,
		calls:    make(map[string]int),
		failNext: make(map[string]int),
		echoRead: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /notifications", g.handleList)
	mux.HandleFunc("PATCH /notifications/read-all", g.handleReadAll)
	mux.HandleFunc("PATCH /notifications/{id}/read", g.handleRead)
	mux.HandleFunc("GET /transactions", g.handleTransactions)

	g.Server = httptest.NewServer(g.authenticate(mux))
	t.Cleanup(g.Server.Close)

	return g
}

// URL returns the base URL of the fake gateway.
func (g *FakeGateway) URL() string {
	return g.Server.URL
}

// SetNotifications replaces the stored records.
func (g *FakeGateway) SetNotifications(records []model.NotificationRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = append([]model.NotificationRecord(nil), records...)
}

// SetTotal overrides the total reported by the list endpoint. Zero means
// "number of stored records".
func (g *FakeGateway) SetTotal(total int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.total = total
}

// SetTransactions replaces the stored transactions.
func (g *FakeGateway) SetTransactions(txs []model.Transaction) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transactions = append([]model.Transaction(nil), txs...)
}

// SetEchoRead controls whether PATCH /notifications/{id}/read returns the
// updated record in its data field.
func (g *FakeGateway) SetEchoRead(echo bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.echoRead = echo
}

// Notifications returns a copy of the stored records.
func (g *FakeGateway) Notifications() []model.NotificationRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.NotificationRecord(nil), g.records...)
}

// Calls returns how many requests hit route.
func (g *FakeGateway) Calls(route string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[route]
}

// FailNext makes the next request on route fail with status.
func (g *FakeGateway) FailNext(route string, status int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext[route] = status
}

// HoldList makes list requests block until the returned release function
// is called.
func (g *FakeGateway) HoldList() (release func()) {
	gate := make(chan struct{})
	g.mu.Lock()
	g.listGate = gate
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.listGate = nil
			g.mu.Unlock()
			close(gate)
		})
	}
}

func (g *FakeGateway) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+g.Token {
			writeEnvelope(w, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// begin counts the call and reports an injected failure status, if any.
func (g *FakeGateway) begin(route string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[route]++
	status := g.failNext[route]
	delete(g.failNext, route)
	return status
}

func (g *FakeGateway) handleList(w http.ResponseWriter, r *http.Request) {
	status := g.begin(RouteList)

	g.mu.Lock()
	gate := g.listGate
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		writeEnvelope(w, status, "list failed", nil)
		return
	}

	page, limit := parsePage(r)

	g.mu.Lock()
	total := g.total
	if total == 0 {
		total = len(g.records)
	}
	start := (page - 1) * limit
	items := []model.NotificationRecord{}
	if start < len(g.records) {
		end := start + limit
		if end > len(g.records) {
			end = len(g.records)
		}
		items = append(items, g.records[start:end]...)
	}
	g.mu.Unlock()

	writeEnvelope(w, http.StatusOK, "ok", model.NotificationPage{
		Total: total,
		Page:  page,
		Limit: limit,
		Items: items,
	})
}

func (g *FakeGateway) handleRead(w http.ResponseWriter, r *http.Request) {
	if status := g.begin(RouteRead); status != 0 {
		writeEnvelope(w, status, "mark read failed", nil)
		return
	}

	id := r.PathValue("id")
	now := time.Now().UTC()

	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.records {
		if g.records[i].ID != id {
			continue
		}
		if g.records[i].ReadAt == nil {
			g.records[i].ReadAt = &now
		}
		if g.echoRead {
			writeEnvelope(w, http.StatusOK, "Notification marked as read", g.records[i])
		} else {
			writeEnvelope(w, http.StatusOK, "Notification marked as read", nil)
		}
		return
	}
	writeEnvelope(w, http.StatusNotFound, "Notification not found", nil)
}

func (g *FakeGateway) handleReadAll(w http.ResponseWriter, r *http.Request) {
	if status := g.begin(RouteReadAll); status != 0 {
		writeEnvelope(w, status, "mark all failed", nil)
		return
	}

	now := time.Now().UTC()
	updated := 0

	g.mu.Lock()
	for i := range g.records {
		if g.records[i].ReadAt == nil {
			g.records[i].ReadAt = &now
			updated++
		}
	}
	g.mu.Unlock()

	writeEnvelope(w, http.StatusOK, "All notifications marked as read",
		map[string]int{"updated_count": updated})
}

func (g *FakeGateway) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if status := g.begin(RouteTransactions); status != 0 {
		writeEnvelope(w, status, "transactions failed", nil)
		return
	}

	page, limit := parsePage(r)

	g.mu.Lock()
	items := []model.Transaction{}
	start := (page - 1) * limit
	if start < len(g.transactions) {
		end := start + limit
		if end > len(g.transactions) {
			end = len(g.transactions)
		}
		items = append(items, g.transactions[start:end]...)
	}
	total := len(g.transactions)
	g.mu.Unlock()

	writeEnvelope(w, http.StatusOK, "ok", model.TransactionPage{
		Total: total,
		Page:  page,
		Limit: limit,
		Items: items,
	})
}

func parsePage(r *http.Request) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 20
	}
	return page, limit
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{"message": message}
	if data != nil {
		body["data"] = data
	}
	_ = json.NewEncoder(w).Encode(body)
}

// MakeRecords builds n notification records, the first unread of which have
// no read timestamp. IDs are "n-1" … "n-<n>".
func MakeRecords(n, unread int) []model.NotificationRecord {
	base := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	records := make([]model.NotificationRecord, n)
	for i := range records {
		created := base.Add(-time.Duration(i) * time.Minute)
		records[i] = model.NotificationRecord{
			ID:             fmt.Sprintf("n-%d", i+1),
			NotificationID: fmt.Sprintf("c-%d", i+1),
			UserID:         "user-1",
			DeliveredAt:    created,
			CreatedAt:      created,
			Content: model.NotificationContent{
				Type:     model.NotificationTypePayment,
				Severity: model.SeverityInfo,
				Title:    fmt.Sprintf("Payment %d settled", i+1),
				Body:     "Settlement completed",
			},
		}
		if i >= unread {
			readAt := created.Add(time.Second)
			records[i].ReadAt = &readAt
		}
	}
	return records
}

// MakeTransactions builds n transactions with IDs "tx-1" … "tx-<n>".
func MakeTransactions(n int) []model.Transaction {
	base := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	txs := make([]model.Transaction, n)
	for i := range txs {
		txs[i] = model.Transaction{
			ID:        fmt.Sprintf("tx-%d", i+1),
			Reference: fmt.Sprintf("ORD-%04d", i+1),
			TenantID:  "tenant-1",
			Amount:    int64(1000 + i*25),
			Currency:  "USD",
			Status:    model.TransactionSucceeded,
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return txs
}
