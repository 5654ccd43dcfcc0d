// Package adapter provides the call contracts of the accounts, customers and transactions
// services and their HTTP implementations.
package adapter

import (
	"context"

	"github.com/reports-aggregator/internal/models"
	"github.com/reports-aggregator/internal/types"
)

// AccountsBackend is the accounts service contract
type AccountsBackend interface {
	// GetAccountsByCustomer returns every product held by the customer
	GetAccountsByCustomer(ctx context.Context, customerID string) ([]models.Account, error)

	// GetDailyBalancesByCustomer returns one end-of-day snapshot per product per day in
	// [start, end]. Days without activity may be missing.
	GetDailyBalancesByCustomer(ctx context.Context, customerID string, start, end types.Date) ([]models.DailyBalanceSnapshot, error)
}

// CustomersBackend is the customers service contract
type CustomersBackend interface {
	GetCustomerByID(ctx context.Context, customerID string) (*models.Customer, error)
}

// TransactionsBackend is the transactions service contract
type TransactionsBackend interface {
	GetTransactionsByAccount(ctx context.Context, accountID string) ([]models.Transaction, error)

	// GetCommissionsReportData returns the raw fee records charged in [start, end]
	GetCommissionsReportData(ctx context.Context, start, end types.Date) ([]models.CommissionRecord, error)
}

var (
	_ AccountsBackend     = (*AccountsClient)(nil)
	_ CustomersBackend    = (*CustomersClient)(nil)
	_ TransactionsBackend = (*TransactionsClient)(nil)
)
