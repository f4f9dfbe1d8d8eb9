package channel

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/paydash/internal/bus"
	"github.com/nhle/paydash/internal/logging"
	"github.com/nhle/paydash/internal/model"
)

// Event names the gateway pushes.
const (
	EventNotification       = "notification"
	EventTransactionCreated = "transaction:created"
	EventTransactionUpdated = "transaction:updated"
	EventPaymentCompleted   = "payment:completed"
	EventPaymentFailed      = "payment:failed"
	EventTenantCreated      = "tenant:created"
	EventTenantUpdated      = "tenant:updated"
)

// route says what one event name turns into.
type route struct {
	severity model.Severity // "" means take it from the payload
	title    string
	signals  []bus.Topic
}

var routes = map[string]route{
	EventNotification: {
		title:   "New notification",
		signals: []bus.Topic{bus.RefreshNotifications},
	},
	EventTransactionCreated: {
		severity: model.SeverityInfo,
		title:    "Transaction created",
		signals:  []bus.Topic{bus.RefreshNotifications, bus.RefreshTransactions},
	},
	EventTransactionUpdated: {
		severity: model.SeverityInfo,
		title:    "Transaction updated",
		signals:  []bus.Topic{bus.RefreshTransactions},
	},
	EventPaymentCompleted: {
		severity: model.SeveritySuccess,
		title:    "Payment completed",
		signals:  []bus.Topic{bus.RefreshNotifications, bus.RefreshTransactions},
	},
	EventPaymentFailed: {
		severity: model.SeverityError,
		title:    "Payment failed",
		signals:  []bus.Topic{bus.RefreshNotifications, bus.RefreshTransactions},
	},
	EventTenantCreated: {severity: model.SeverityInfo, title: "Tenant created"},
	EventTenantUpdated: {severity: model.SeverityInfo, title: "Tenant updated"},
}

// EventNames lists the events the listener handles.
func EventNames() []string {
	return []string{
		EventNotification,
		EventTransactionCreated,
		EventTransactionUpdated,
		EventPaymentCompleted,
		EventPaymentFailed,
		EventTenantCreated,
		EventTenantUpdated,
	}
}

// payload is the loose union of fields the toast text is built from.
type payload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
	Reference string `json:"reference"`
	Amount    *int64 `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	Name      string `json:"name"`

	Content *struct {
		Title    string `json:"title"`
		Body     string `json:"body"`
		Severity string `json:"severity"`
	} `json:"content"`
}

// Listener translates channel events into toasts and bus signals.
type Listener struct {
	bus     *bus.Bus
	onToast func(model.Toast)
	log     *logrus.Entry
}

// NewListener creates a listener. onToast may be nil.
func NewListener(b *bus.Bus, onToast func(model.Toast), logger *logrus.Logger) *Listener {
	return &Listener{
		bus:     b,
		onToast: onToast,
		log:     logging.Component(logger, "listener"),
	}
}

// Attach registers the listener on every handled event name of c.
func (l *Listener) Attach(c *Client) {
	for _, name := range EventNames() {
		c.On(name, l.Handle)
	}
}

// Handle processes one event. Unknown names are ignored.
func (l *Listener) Handle(ev model.ChannelEvent) {
	r, ok := routes[ev.Name]
	if !ok {
		return
	}

	var p payload
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			l.log.WithError(err).WithField("event", ev.Name).Debug("Event payload not decodable")
		}
	}

	toast := buildToast(ev, r, p)
	if l.onToast != nil {
		l.onToast(toast)
	}

	if l.bus == nil {
		return
	}
	for _, topic := range r.signals {
		l.bus.Publish(bus.Event{Topic: topic, Source: "channel"})
	}
}

func buildToast(ev model.ChannelEvent, r route, p payload) model.Toast {
	t := model.Toast{
		ID:        uuid.NewString(),
		EventName: ev.Name,
		Severity:  r.severity,
		Title:     r.title,
		CreatedAt: ev.ReceivedAt,
	}

	switch ev.Name {
	case EventNotification:
		title, body, sev := p.Title, firstNonEmpty(p.Body, p.Message), p.Severity
		if p.Content != nil {
			title = firstNonEmpty(p.Content.Title, title)
			body = firstNonEmpty(p.Content.Body, body)
			sev = firstNonEmpty(p.Content.Severity, sev)
		}
		t.Title = firstNonEmpty(title, t.Title)
		t.Body = body
		t.Severity = model.ParseSeverity(sev)

	case EventTransactionCreated, EventPaymentCompleted:
		t.Body = describeTransaction(p)

	case EventTransactionUpdated:
		t.Body = describeTransaction(p)
		if p.Status != "" {
			t.Body = strings.TrimSpace(t.Body + " is now " + p.Status)
		}

	case EventPaymentFailed:
		t.Body = describeTransaction(p)
		if p.Reason != "" {
			t.Body = strings.TrimSpace(t.Body + ": " + p.Reason)
		}

	case EventTenantCreated, EventTenantUpdated:
		t.Body = p.Name
	}

	if t.Body == "" {
		t.Body = firstNonEmpty(p.Message, p.Body)
	}
	return t
}

// describeTransaction renders "<reference> · <amount>" from whatever
// fields are present.
func describeTransaction(p payload) string {
	var parts []string
	if p.Reference != "" {
		parts = append(parts, p.Reference)
	}
	if p.Amount != nil && p.Currency != "" {
		tx := model.Transaction{Amount: *p.Amount, Currency: p.Currency}
		parts = append(parts, tx.FormatAmount())
	} else if p.Amount != nil {
		parts = append(parts, fmt.Sprintf("%d", *p.Amount))
	}
	return strings.Join(parts, " · ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
