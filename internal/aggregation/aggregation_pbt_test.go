package aggregation

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/reports-aggregator/internal/models"
	"github.com/reports-aggregator/internal/types"
	"github.com/shopspring/decimal"
)

var productNames = []string{"SAVINGS_ACCOUNT", "CHECKING_ACCOUNT", "FIXED_TERM", "CREDIT_CARD", "PERSONAL_LOAN"}

func buildCommissions(cents []int64, names []int) []models.CommissionRecord {
	n := len(cents)
	if len(names) < n {
		n = len(names)
	}
	records := make([]models.CommissionRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, models.CommissionRecord{
			AccountID:   fmt.Sprintf("acc-%d", i),
			ProductType: types.ProductPassive,
			ProductName: productNames[names[i]],
			Fee:         decimal.New(cents[i], -2),
		})
	}
	return records
}

func TestCommissionAggregationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	feeGen := gen.SliceOf(gen.Int64Range(0, 10_000_000))
	nameGen := gen.SliceOf(gen.IntRange(0, len(productNames)-1))

	properties.Property("total fees are conserved", prop.ForAll(
		func(cents []int64, names []int) bool {
			records := buildCommissions(cents, names)

			in := decimal.Zero
			for _, r := range records {
				in = in.Add(r.Fee)
			}
			out := decimal.Zero
			for _, item := range AggregateCommissions(records) {
				out = out.Add(item.TotalFees)
			}
			return in.Equal(out)
		},
		feeGen, nameGen,
	))

	properties.Property("one group per distinct product name", prop.ForAll(
		func(cents []int64, names []int) bool {
			records := buildCommissions(cents, names)

			distinct := make(map[string]struct{})
			for _, r := range records {
				distinct[r.ProductName] = struct{}{}
			}
			return len(AggregateCommissions(records)) == len(distinct)
		},
		feeGen, nameGen,
	))

	properties.TestingRun(t)
}

func TestAvailableBalanceProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	amountGen := gen.Int64Range(-1_000_000_000, 1_000_000_000)

	properties.Property("active balance subtracts amount used", prop.ForAll(
		func(balance, used int64) bool {
			account := models.Account{
				ProductType: types.ProductActive,
				Balance:     decimal.New(balance, -2),
				AmountUsed:  decimal.NewNullDecimal(decimal.New(used, -2)),
			}
			return AvailableBalance(account).Equal(decimal.New(balance-used, -2))
		},
		amountGen, amountGen,
	))

	properties.Property("active balance with null amount used is the balance", prop.ForAll(
		func(balance int64) bool {
			account := models.Account{ProductType: types.ProductActive, Balance: decimal.New(balance, -2)}
			return AvailableBalance(account).Equal(account.Balance)
		},
		amountGen,
	))

	properties.Property("passive balance ignores amount used", prop.ForAll(
		func(balance, used int64) bool {
			account := models.Account{
				ProductType: types.ProductPassive,
				Balance:     decimal.New(balance, -2),
				AmountUsed:  decimal.NewNullDecimal(decimal.New(used, -2)),
			}
			return AvailableBalance(account).Equal(account.Balance)
		},
		amountGen, amountGen,
	))

	properties.TestingRun(t)
}

func TestDailyAverageProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	start := types.NewDate(2025, time.January, 1)

	properties.Property("active snapshots never change the average", prop.ForAll(
		func(days int, passive, active []int64) bool {
			end := start.AddDays(days)
			var snapshots []models.DailyBalanceSnapshot
			for i, cents := range passive {
				snapshots = append(snapshots, models.DailyBalanceSnapshot{
					ProductType: types.BalanceClassPassive,
					Date:        start.AddDays(i % (days + 1)),
					BalanceEOD:  decimal.NewNullDecimal(decimal.New(cents, -2)),
				})
			}
			without := CalculateDailyAverage(snapshots, start, end)

			for _, cents := range active {
				snapshots = append(snapshots, models.DailyBalanceSnapshot{
					ProductType: types.BalanceClassActive,
					Date:        start,
					BalanceEOD:  decimal.NewNullDecimal(decimal.New(cents, -2)),
				})
			}
			return CalculateDailyAverage(snapshots, start, end).Equal(without)
		},
		gen.IntRange(0, 90),
		gen.SliceOf(gen.Int64Range(0, 100_000_000)),
		gen.SliceOf(gen.Int64Range(1, 100_000_000)),
	))

	properties.Property("average has at most two decimal places", prop.ForAll(
		func(days int, passive []int64) bool {
			var snapshots []models.DailyBalanceSnapshot
			for _, cents := range passive {
				snapshots = append(snapshots, models.DailyBalanceSnapshot{
					ProductType: types.BalanceClassPassive,
					BalanceEOD:  decimal.NewNullDecimal(decimal.New(cents, -3)),
				})
			}
			avg := CalculateDailyAverage(snapshots, start, start.AddDays(days))
			return avg.Equal(avg.Round(AverageScale))
		},
		gen.IntRange(0, 365),
		gen.SliceOf(gen.Int64Range(0, 100_000_000)),
	))

	properties.TestingRun(t)
}
