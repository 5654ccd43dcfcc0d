package models

import (
	"github.com/reports-aggregator/internal/types"
	"github.com/shopspring/decimal"
)

// Transaction represents an account movement as returned by the transactions service
type Transaction struct {
	ID          string                `json:"id"`
	AccountID   string                `json:"accountId"`
	CustomerID  string                `json:"customerId"`
	Type        types.TransactionType `json:"transactionType"`
	Amount      decimal.Decimal       `json:"amount"`
	Timestamp   types.DateTime        `json:"transactionDate"`
	Description string                `json:"description,omitempty"`
}
