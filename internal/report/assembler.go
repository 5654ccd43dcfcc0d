// Package report assembles the outward-facing report shapes from aggregation results and
// request echo fields.
package report

import (
	"time"

	"github.com/reports-aggregator/internal/models"
	"github.com/reports-aggregator/internal/types"
	"github.com/shopspring/decimal"
)

// Clock returns the current time
type Clock func() time.Time

// SystemClock is the wall clock
func SystemClock() time.Time {
	return time.Now()
}

// NewDailyAverageBalanceReport echoes the request range next to the computed average
func NewDailyAverageBalanceReport(customerID string, start, end types.Date, average decimal.Decimal) *models.DailyAverageBalanceReport {
	return &models.DailyAverageBalanceReport{
		CustomerID:          customerID,
		StartDate:           start,
		EndDate:             end,
		DailyAverageBalance: average,
	}
}

// NewConsolidatedSummary joins a customer with its products, stamped with now in UTC.
// A nil product list becomes an empty one.
func NewConsolidatedSummary(customer *models.Customer, accounts []models.Account, now time.Time) *models.ConsolidatedSummary {
	if accounts == nil {
		accounts = []models.Account{}
	}
	return &models.ConsolidatedSummary{
		CustomerID:          customer.ID,
		FullName:            customer.FullName(),
		Products:            accounts,
		ProcessingTimestamp: now.UTC(),
	}
}
