package model

import (
	"fmt"
	"time"
)

// Transaction status values as reported by the gateway.
const (
	TransactionPending   = "pending"
	TransactionSucceeded = "succeeded"
	TransactionFailed    = "failed"
	TransactionRefunded  = "refunded"
)

// Transaction is a single payment transaction processed by the gateway for
// a tenant.
type Transaction struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	TenantID  string    `json:"tenantId"`
	Amount    int64     `json:"amount"` // minor units
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// FormatAmount renders the amount in major units with the currency code,
// e.g. "12.50 USD".
func (t Transaction) FormatAmount() string {
	sign := ""
	amount := t.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, t.Currency)
}

// TransactionPage is one page of transactions as returned by the backend.
type TransactionPage struct {
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Items []Transaction `json:"items"`
}
