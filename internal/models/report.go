package models

import (
	"encoding/json"
	"time"

	"github.com/reports-aggregator/internal/types"
	"github.com/shopspring/decimal"
)

// BalanceReport is the available balance of one account
type BalanceReport struct {
	AccountID        string            `json:"accountId"`
	ProductType      types.ProductType `json:"productType"`
	AvailableBalance decimal.Decimal   `json:"availableBalance"`
}

// CommissionReportItem is the total fees charged for one product name
type CommissionReportItem struct {
	ProductName string            `json:"productName"`
	ProductType types.ProductType `json:"productType"`
	TotalFees   decimal.Decimal   `json:"totalFees"`
}

// DailyAverageBalanceReport is the daily average balance (SPD) of a customer over a date range
type DailyAverageBalanceReport struct {
	CustomerID          string          `json:"customerId"`
	StartDate           types.Date      `json:"startDate"`
	EndDate             types.Date      `json:"endDate"`
	DailyAverageBalance decimal.Decimal `json:"dailyAverageBalance"`
}

// dailyAverageScale is the number of decimal places the daily average is reported with
const dailyAverageScale = 2

// MarshalJSON writes the daily average with exactly two decimal places, so 60 is "60.00".
// It honors decimal.MarshalJSONWithoutQuotes like decimal.Decimal does.
func (r DailyAverageBalanceReport) MarshalJSON() ([]byte, error) {
	type plain DailyAverageBalanceReport

	amount := r.DailyAverageBalance.StringFixed(dailyAverageScale)
	if !decimal.MarshalJSONWithoutQuotes {
		amount = `"` + amount + `"`
	}

	return json.Marshal(struct {
		plain
		DailyAverageBalance json.RawMessage `json:"dailyAverageBalance"`
	}{
		plain:               plain(r),
		DailyAverageBalance: json.RawMessage(amount),
	})
}

// ConsolidatedSummary joins a customer's identity with all of its products
type ConsolidatedSummary struct {
	CustomerID          string    `json:"customerId"`
	FullName            string    `json:"fullName"`
	Products            []Account `json:"products"`
	ProcessingTimestamp time.Time `json:"processingTimestamp"`
}
