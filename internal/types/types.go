// Package types provides common type definitions for the reports aggregator.
package types

import "strings"

// ProductType classifies an account or commission by the side of the balance sheet it sits on
type ProductType string

const (
	// ProductActive represents a credit product (funds owed to the bank)
	ProductActive ProductType = "ACTIVE"
	// ProductPassive represents a deposit product (funds held by the bank)
	ProductPassive ProductType = "PASSIVE"
)

// AccountType represents the kind of deposit account
type AccountType string

const (
	AccountSavings   AccountType = "SAVINGS"
	AccountChecking  AccountType = "CHECKING"
	AccountFixedTerm AccountType = "FIXED_TERM"
)

// CreditType represents the kind of credit product
type CreditType string

const (
	// CreditPersonal represents a personal loan
	CreditPersonal CreditType = "PERSONAL"
	// CreditBusiness represents a business loan
	CreditBusiness CreditType = "BUSINESS"
	// CreditCard represents a credit card
	CreditCard CreditType = "CREDIT_CARD"
)

// AccountStatus represents the lifecycle status of an account
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusInactive AccountStatus = "INACTIVE"
	AccountStatusBlocked  AccountStatus = "BLOCKED"
	AccountStatusClosed   AccountStatus = "CLOSED"
)

// TransactionType represents the kind of account movement
type TransactionType string

const (
	// TransactionDeposit represents money deposited into an account
	TransactionDeposit TransactionType = "DEPOSIT"
	// TransactionWithdrawal represents money withdrawn from an account
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
	// TransactionPayment represents a payment towards a credit
	TransactionPayment TransactionType = "PAYMENT"
	// TransactionConsumption represents a debit or credit card purchase
	TransactionConsumption TransactionType = "CONSUMPTION"
)

// CustomerType represents whether a customer is a person or a company
type CustomerType string

const (
	CustomerPersonal CustomerType = "PERSONAL"
	CustomerBusiness CustomerType = "BUSINESS"
)

// BalanceClass classifies a daily balance snapshot as reported by the daily balance history
// endpoint of the accounts service. It shares vocabulary with ProductType but comes from a
// different upstream classification and is kept separate on purpose.
type BalanceClass string

const (
	// BalanceClassPassive marks a deposit balance that counts towards the daily average
	BalanceClassPassive BalanceClass = "PASSIVE"
	// BalanceClassActive marks a credit balance, excluded from the daily average
	BalanceClassActive BalanceClass = "ACTIVE"
	// BalanceClassUnknown marks any value the upstream sent that is not recognised
	BalanceClassUnknown BalanceClass = "UNKNOWN"
)

// ParseBalanceClass normalizes the upstream string sentinel. Matching is exact, the same way
// the accounts service emits it; anything else is BalanceClassUnknown.
func ParseBalanceClass(s string) BalanceClass {
	switch strings.TrimSpace(s) {
	case string(BalanceClassPassive):
		return BalanceClassPassive
	case string(BalanceClassActive):
		return BalanceClassActive
	default:
		return BalanceClassUnknown
	}
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
