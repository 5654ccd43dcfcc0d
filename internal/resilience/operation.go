// Package resilience wraps outbound backend calls with timeout, circuit breaker and fallback
// policies. Every remote failure leaves this package as a BackendUnavailable error.
package resilience

import (
	"fmt"

	"github.com/reports-aggregator/internal/errors"
)

// Operation names a protected outbound call kind. Each kind has its own breaker and timeout.
type Operation string

const (
	OpBalances            Operation = "balances"
	OpTransactions        Operation = "transactions"
	OpCommissions         Operation = "commissions"
	OpDailyAverageBalance Operation = "daily-average-balance"
	OpSummaryCustomer     Operation = "summary-customer"
	OpSummaryAccounts     Operation = "summary-accounts"
)

// Operations lists every protected operation kind
func Operations() []Operation {
	return []Operation{
		OpBalances,
		OpTransactions,
		OpCommissions,
		OpDailyAverageBalance,
		OpSummaryCustomer,
		OpSummaryAccounts,
	}
}

// ParseOperation validates an operation name
func ParseOperation(s string) (Operation, error) {
	for _, op := range Operations() {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation '%s'", s)
}

// Fallback turns the failure of a protected call into the error returned to the caller.
// params are the identifying parameters passed to Execute.
type Fallback func(op Operation, params map[string]interface{}, cause error) error

var fallbackMessages = map[Operation]string{
	OpBalances:            "the quick reports service is temporarily unavailable",
	OpTransactions:        "the quick reports service is temporarily unavailable",
	OpCommissions:         "the commissions report service is down: raw commission data could not be retrieved",
	OpDailyAverageBalance: "the daily average balance service is down: historical balances could not be retrieved",
	OpSummaryCustomer:     SummaryUnavailableMessage,
	OpSummaryAccounts:     SummaryUnavailableMessage,
}

// SummaryUnavailableMessage is shared by both consolidated summary branches and the summary deadline
const SummaryUnavailableMessage = "the consolidated summary service is down: customer data could not be combined"

// FallbackMessage returns the user-facing unavailability message of an operation
func FallbackMessage(op Operation) string {
	if msg, ok := fallbackMessages[op]; ok {
		return msg
	}
	return fmt.Sprintf("the %s service is temporarily unavailable", op)
}

// DefaultFallbacks returns the fallback table for all operation kinds
func DefaultFallbacks() map[Operation]Fallback {
	fallbacks := make(map[Operation]Fallback, len(fallbackMessages))
	for _, op := range Operations() {
		message := FallbackMessage(op)
		fallbacks[op] = func(op Operation, params map[string]interface{}, cause error) error {
			return errors.NewBackendUnavailableError(string(op), message, cause)
		}
	}
	return fallbacks
}
