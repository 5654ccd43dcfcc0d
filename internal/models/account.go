// Package models defines the records exchanged with the backend services and the derived reports.
package models

import (
	"github.com/reports-aggregator/internal/types"
	"github.com/shopspring/decimal"
)

// Account represents a bank product (deposit account, loan or card) as returned by the accounts service
type Account struct {
	ID                  string              `json:"id"`
	CustomerID          string              `json:"customerId"`
	AccountNumber       string              `json:"accountNumber,omitempty"`
	ProductType         types.ProductType   `json:"productType"`
	AccountType         types.AccountType   `json:"accountType,omitempty"`
	CreditType          types.CreditType    `json:"creditType,omitempty"`
	Balance             decimal.Decimal     `json:"balance"`
	AmountUsed          decimal.NullDecimal `json:"amountUsed"` // only meaningful for ACTIVE products
	OpeningDate         types.DateTime      `json:"openingDate"`
	MonthlyMovements    int                 `json:"monthlyMovements"`
	SpecificDepositDate *types.DateTime     `json:"specificDepositDate,omitempty"`
	Status              types.AccountStatus `json:"status,omitempty"`
	Holders             []string            `json:"holders,omitempty"`
	Signatories         []string            `json:"signatories,omitempty"`
}

// AmountUsedOrZero returns the used credit, treating an absent value as zero
func (a *Account) AmountUsedOrZero() decimal.Decimal {
	if a.AmountUsed.Valid {
		return a.AmountUsed.Decimal
	}
	return decimal.Zero
}
