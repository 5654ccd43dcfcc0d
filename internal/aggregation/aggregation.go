// Package aggregation holds the pure report calculations: available balances, commission
// roll-ups and the daily average balance. Nothing here performs I/O or returns errors.
package aggregation

import (
	"github.com/reports-aggregator/internal/models"
	"github.com/reports-aggregator/internal/types"
	"github.com/shopspring/decimal"
)

// AverageScale is the number of decimal places of the daily average balance
const AverageScale = 2

// AvailableBalance returns balance minus used credit for ACTIVE products and the plain
// balance for PASSIVE ones. A missing amountUsed counts as zero.
func AvailableBalance(account models.Account) decimal.Decimal {
	if account.ProductType == types.ProductActive {
		return account.Balance.Sub(account.AmountUsedOrZero())
	}
	return account.Balance
}

// MapBalances builds one BalanceReport per account, preserving input order
func MapBalances(accounts []models.Account) []models.BalanceReport {
	reports := make([]models.BalanceReport, 0, len(accounts))
	for _, account := range accounts {
		reports = append(reports, models.BalanceReport{
			AccountID:        account.ID,
			ProductType:      account.ProductType,
			AvailableBalance: AvailableBalance(account),
		})
	}
	return reports
}

// AggregateCommissions groups records by exact product name and sums their fees. Groups appear
// in order of first appearance and take the product type of their first record.
func AggregateCommissions(records []models.CommissionRecord) []models.CommissionReportItem {
	items := make([]models.CommissionReportItem, 0)
	index := make(map[string]int)

	for _, record := range records {
		if i, ok := index[record.ProductName]; ok {
			items[i].TotalFees = items[i].TotalFees.Add(record.Fee)
			continue
		}
		index[record.ProductName] = len(items)
		items = append(items, models.CommissionReportItem{
			ProductName: record.ProductName,
			ProductType: record.ProductType,
			TotalFees:   record.Fee,
		})
	}
	return items
}

// ProductTypeConflicts returns the product names whose records disagree on product type,
// in order of first appearance
func ProductTypeConflicts(records []models.CommissionRecord) []string {
	first := make(map[string]types.ProductType)
	flagged := make(map[string]bool)
	var conflicts []string

	for _, record := range records {
		pt, seen := first[record.ProductName]
		if !seen {
			first[record.ProductName] = record.ProductType
			continue
		}
		if pt != record.ProductType && !flagged[record.ProductName] {
			flagged[record.ProductName] = true
			conflicts = append(conflicts, record.ProductName)
		}
	}
	return conflicts
}

// DaysInclusive counts the calendar days from start to end, both included
func DaysInclusive(start, end types.Date) int64 {
	return start.DaysUntil(end) + 1
}

// CalculateDailyAverage averages the end-of-day balances of PASSIVE snapshots over every day
// of the range, rounded half-up to two places. Days with no snapshot count as zero, as do
// snapshots with no balance. ACTIVE and unclassified snapshots are ignored.
func CalculateDailyAverage(snapshots []models.DailyBalanceSnapshot, start, end types.Date) decimal.Decimal {
	days := DaysInclusive(start, end)
	if len(snapshots) == 0 || days <= 0 {
		return decimal.Zero
	}

	total := decimal.Zero
	for _, snapshot := range snapshots {
		if snapshot.ProductType != types.BalanceClassPassive {
			continue
		}
		if snapshot.BalanceEOD.Valid {
			total = total.Add(snapshot.BalanceEOD.Decimal)
		}
	}

	return total.DivRound(decimal.NewFromInt(days), AverageScale)
}
