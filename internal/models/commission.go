package models

import (
	"github.com/reports-aggregator/internal/types"
	"github.com/shopspring/decimal"
)

// CommissionRecord is a single fee charged on a transaction
type CommissionRecord struct {
	AccountID       string            `json:"accountId"`
	ProductType     types.ProductType `json:"productType"`
	ProductName     string            `json:"productName"` // e.g. SAVINGS_ACCOUNT, CREDIT_CARD
	Fee             decimal.Decimal   `json:"fee"`
	TransactionDate types.DateTime    `json:"transactionDate"`
}
