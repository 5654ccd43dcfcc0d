package models

import (
	"github.com/reports-aggregator/internal/types"
	"github.com/shopspring/decimal"
)

// DailyBalanceSnapshot is the end-of-day state of one product on one calendar day
type DailyBalanceSnapshot struct {
	ProductID     string              `json:"productId"`
	AccountType   string              `json:"accountType"`
	ProductType   types.BalanceClass  `json:"productType"`
	Date          types.Date          `json:"date"`
	BalanceEOD    decimal.NullDecimal `json:"balanceEOD"`
	AmountUsedEOD decimal.NullDecimal `json:"amountUsedEOD"`
}
