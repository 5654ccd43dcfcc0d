package service

import (
	"bytes"
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reports-aggregator/internal/circuitbreaker"
	"github.com/reports-aggregator/internal/errors"
	"github.com/reports-aggregator/internal/logging"
	"github.com/reports-aggregator/internal/models"
	"github.com/reports-aggregator/internal/resilience"
	"github.com/reports-aggregator/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock backends for testing

type mockAccounts struct {
	calls         atomic.Int32
	accounts      func(ctx context.Context, customerID string) ([]models.Account, error)
	dailyBalances func(ctx context.Context, customerID string, start, end types.Date) ([]models.DailyBalanceSnapshot, error)
}

func (m *mockAccounts) GetAccountsByCustomer(ctx context.Context, customerID string) ([]models.Account, error) {
	m.calls.Add(1)
	if m.accounts == nil {
		return []models.Account{}, nil
	}
	return m.accounts(ctx, customerID)
}

func (m *mockAccounts) GetDailyBalancesByCustomer(ctx context.Context, customerID string, start, end types.Date) ([]models.DailyBalanceSnapshot, error) {
	m.calls.Add(1)
	if m.dailyBalances == nil {
		return []models.DailyBalanceSnapshot{}, nil
	}
	return m.dailyBalances(ctx, customerID, start, end)
}

type mockCustomers struct {
	calls    atomic.Int32
	customer func(ctx context.Context, customerID string) (*models.Customer, error)
}

func (m *mockCustomers) GetCustomerByID(ctx context.Context, customerID string) (*models.Customer, error) {
	m.calls.Add(1)
	if m.customer == nil {
		return &models.Customer{ID: customerID}, nil
	}
	return m.customer(ctx, customerID)
}

type mockTransactions struct {
	calls        atomic.Int32
	transactions func(ctx context.Context, accountID string) ([]models.Transaction, error)
	commissions  func(ctx context.Context, start, end types.Date) ([]models.CommissionRecord, error)
}

func (m *mockTransactions) GetTransactionsByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	m.calls.Add(1)
	if m.transactions == nil {
		return []models.Transaction{}, nil
	}
	return m.transactions(ctx, accountID)
}

func (m *mockTransactions) GetCommissionsReportData(ctx context.Context, start, end types.Date) ([]models.CommissionRecord, error) {
	m.calls.Add(1)
	if m.commissions == nil {
		return []models.CommissionRecord{}, nil
	}
	return m.commissions(ctx, start, end)
}

type fixture struct {
	accounts     *mockAccounts
	customers    *mockCustomers
	transactions *mockTransactions
	registry     *circuitbreaker.Registry
	service      *ReportsService
}

func (f *fixture) remoteCalls() int32 {
	return f.accounts.calls.Load() + f.customers.calls.Load() + f.transactions.calls.Load()
}

func newFixture(t *testing.T, timeout time.Duration, opts ...Option) *fixture {
	t.Helper()

	configs := make([]*circuitbreaker.Config, 0)
	settings := make(map[resilience.Operation]resilience.Settings)
	for _, op := range resilience.Operations() {
		configs = append(configs, circuitbreaker.DefaultConfig(string(op)))
		settings[op] = resilience.Settings{Timeout: timeout}
	}
	registry, err := circuitbreaker.NewRegistry(configs, nil)
	require.NoError(t, err)
	policy, err := resilience.NewPolicy(registry, settings, nil)
	require.NoError(t, err)

	f := &fixture{
		accounts:     &mockAccounts{},
		customers:    &mockCustomers{},
		transactions: &mockTransactions{},
		registry:     registry,
	}
	f.service = NewReportsService(f.accounts, f.customers, f.transactions, policy, opts...)
	return f
}

func date(month time.Month, day int) types.Date {
	return types.NewDate(2025, month, day)
}

func TestGetBalances(t *testing.T) {
	f := newFixture(t, time.Second)
	f.accounts.accounts = func(ctx context.Context, customerID string) ([]models.Account, error) {
		assert.Equal(t, "c-1", customerID)
		return []models.Account{
			{ID: "a-1", ProductType: types.ProductActive, Balance: decimal.NewFromInt(1000), AmountUsed: decimal.NewNullDecimal(decimal.NewFromInt(400))},
			{ID: "a-2", ProductType: types.ProductPassive, Balance: decimal.NewFromInt(250)},
		}, nil
	}

	balances, err := f.service.GetBalances(context.Background(), "c-1")
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.True(t, decimal.NewFromInt(600).Equal(balances[0].AvailableBalance))
	assert.True(t, decimal.NewFromInt(250).Equal(balances[1].AvailableBalance))
}

func TestGetBalancesEmptyIsNotAnError(t *testing.T) {
	f := newFixture(t, time.Second)

	balances, err := f.service.GetBalances(context.Background(), "c-1")
	require.NoError(t, err)
	assert.NotNil(t, balances)
	assert.Empty(t, balances)
}

func TestGetBalancesBackendFailure(t *testing.T) {
	f := newFixture(t, time.Second)
	f.accounts.accounts = func(ctx context.Context, customerID string) ([]models.Account, error) {
		return nil, stderrors.New("accounts backend: GET /accounts returned 500")
	}

	_, err := f.service.GetBalances(context.Background(), "c-1")
	require.Error(t, err)
	assert.True(t, errors.IsBackendUnavailable(err))
	assert.Equal(t, resilience.FallbackMessage(resilience.OpBalances), errors.Categorize(err).Message)
}

func TestGetTransactions(t *testing.T) {
	f := newFixture(t, time.Second)
	f.transactions.transactions = func(ctx context.Context, accountID string) ([]models.Transaction, error) {
		return []models.Transaction{{ID: "t-1", AccountID: accountID, Type: types.TransactionPayment}}, nil
	}

	txs, err := f.service.GetTransactions(context.Background(), "a-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "a-1", txs[0].AccountID)

	f.transactions.transactions = func(ctx context.Context, accountID string) ([]models.Transaction, error) {
		return nil, nil
	}
	txs, err = f.service.GetTransactions(context.Background(), "a-1")
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
}

func TestValidationHappensBeforeAnyRemoteCall(t *testing.T) {
	f := newFixture(t, time.Second)
	ctx := context.Background()

	tests := []struct {
		name  string
		param string
		call  func() error
	}{
		{name: "balances blank customer", param: "customerId", call: func() error {
			_, err := f.service.GetBalances(ctx, "   ")
			return err
		}},
		{name: "transactions blank account", param: "accountId", call: func() error {
			_, err := f.service.GetTransactions(ctx, "")
			return err
		}},
		{name: "commissions start after end", param: "startDate", call: func() error {
			_, err := f.service.GetCommissionsReport(ctx, date(time.March, 2), date(time.March, 1))
			return err
		}},
		{name: "commissions missing start", param: "startDate", call: func() error {
			_, err := f.service.GetCommissionsReport(ctx, types.Date{}, date(time.March, 1))
			return err
		}},
		{name: "commissions missing end", param: "endDate", call: func() error {
			_, err := f.service.GetCommissionsReport(ctx, date(time.March, 1), types.Date{})
			return err
		}},
		{name: "daily average blank customer", param: "customerId", call: func() error {
			_, err := f.service.GetDailyAverageBalance(ctx, "", date(time.March, 1), date(time.March, 2))
			return err
		}},
		{name: "daily average start after end", param: "startDate", call: func() error {
			_, err := f.service.GetDailyAverageBalance(ctx, "c-1", date(time.April, 1), date(time.March, 1))
			return err
		}},
		{name: "summary blank customer", param: "customerId", call: func() error {
			_, err := f.service.GetConsolidatedSummary(ctx, "\t")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Equal(t, tt.param, errors.Categorize(err).Details["parameter"])
		})
	}

	assert.Zero(t, f.remoteCalls(), "validation failures must not reach any backend")
}

func TestGetCommissionsReport(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewLogger(logging.LevelInfo, logging.FormatJSON)
	logger.SetOutput(&logs)
	ctx := logging.WithLogger(context.Background(), logger)

	f := newFixture(t, time.Second)
	f.transactions.commissions = func(ctx context.Context, start, end types.Date) ([]models.CommissionRecord, error) {
		assert.Equal(t, date(time.January, 1), start)
		assert.Equal(t, date(time.January, 31), end)
		return []models.CommissionRecord{
			{ProductName: "CREDIT_CARD", ProductType: types.ProductActive, Fee: decimal.RequireFromString("10.10")},
			{ProductName: "SAVINGS_ACCOUNT", ProductType: types.ProductPassive, Fee: decimal.RequireFromString("1.00")},
			{ProductName: "CREDIT_CARD", ProductType: types.ProductPassive, Fee: decimal.RequireFromString("4.90")},
		}, nil
	}

	items, err := f.service.GetCommissionsReport(ctx, date(time.January, 1), date(time.January, 31))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "CREDIT_CARD", items[0].ProductName)
	assert.Equal(t, types.ProductActive, items[0].ProductType)
	assert.True(t, decimal.NewFromInt(15).Equal(items[0].TotalFees))

	assert.Contains(t, logs.String(), "disagree on product type")
	assert.Contains(t, logs.String(), `"productName":"CREDIT_CARD"`)
}

func TestGetCommissionsReportSameDayRange(t *testing.T) {
	f := newFixture(t, time.Second)

	items, err := f.service.GetCommissionsReport(context.Background(), date(time.May, 5), date(time.May, 5))
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int32(1), f.transactions.calls.Load())
}

func TestGetDailyAverageBalance(t *testing.T) {
	f := newFixture(t, time.Second)
	f.accounts.dailyBalances = func(ctx context.Context, customerID string, start, end types.Date) ([]models.DailyBalanceSnapshot, error) {
		snap := func(day int, class types.BalanceClass, amount int64) models.DailyBalanceSnapshot {
			return models.DailyBalanceSnapshot{
				ProductID:   "p-1",
				ProductType: class,
				Date:        date(time.January, day),
				BalanceEOD:  decimal.NewNullDecimal(decimal.NewFromInt(amount)),
			}
		}
		return []models.DailyBalanceSnapshot{
			snap(1, types.BalanceClassPassive, 100),
			snap(2, types.BalanceClassPassive, 200),
			snap(3, types.BalanceClassPassive, 300),
			snap(3, types.BalanceClassActive, 5000),
		}, nil
	}

	r, err := f.service.GetDailyAverageBalance(context.Background(), "c-1", date(time.January, 1), date(time.January, 10))
	require.NoError(t, err)
	assert.Equal(t, "c-1", r.CustomerID)
	assert.Equal(t, date(time.January, 1), r.StartDate)
	assert.Equal(t, date(time.January, 10), r.EndDate)
	assert.Equal(t, "60.00", r.DailyAverageBalance.StringFixed(2))
}

func TestGetDailyAverageBalanceEmptyHistory(t *testing.T) {
	f := newFixture(t, time.Second)

	r, err := f.service.GetDailyAverageBalance(context.Background(), "c-1", date(time.January, 1), date(time.January, 31))
	require.NoError(t, err)
	assert.True(t, r.DailyAverageBalance.IsZero())
}

func TestGetDailyAverageBalanceTimeout(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	f.accounts.dailyBalances = func(ctx context.Context, customerID string, start, end types.Date) ([]models.DailyBalanceSnapshot, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := f.service.GetDailyAverageBalance(context.Background(), "c-1", date(time.January, 1), date(time.January, 2))
	require.Error(t, err)
	assert.True(t, errors.IsBackendUnavailable(err))
	assert.True(t, errors.IsTimeout(err))
}

func TestGetConsolidatedSummary(t *testing.T) {
	now := time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, time.Second, WithClock(func() time.Time { return now }))
	f.customers.customer = func(ctx context.Context, customerID string) (*models.Customer, error) {
		return &models.Customer{ID: customerID, FirstName: "Ana", LastName: "Torres"}, nil
	}
	f.accounts.accounts = func(ctx context.Context, customerID string) ([]models.Account, error) {
		return []models.Account{{ID: "a-1", CustomerID: customerID}, {ID: "a-2", CustomerID: customerID}}, nil
	}

	summary, err := f.service.GetConsolidatedSummary(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", summary.CustomerID)
	assert.Equal(t, "Ana Torres", summary.FullName)
	assert.Len(t, summary.Products, 2)
	assert.Equal(t, now, summary.ProcessingTimestamp)
	assert.Equal(t, int32(1), f.customers.calls.Load())
	assert.Equal(t, int32(1), f.accounts.calls.Load())
}

func TestGetConsolidatedSummaryRunsBranchesConcurrently(t *testing.T) {
	f := newFixture(t, time.Second)

	// each branch waits for the other to start; a sequential join would time out
	customerStarted := make(chan struct{})
	accountsStarted := make(chan struct{})
	f.customers.customer = func(ctx context.Context, customerID string) (*models.Customer, error) {
		close(customerStarted)
		select {
		case <-accountsStarted:
			return &models.Customer{ID: customerID}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.accounts.accounts = func(ctx context.Context, customerID string) ([]models.Account, error) {
		close(accountsStarted)
		select {
		case <-customerStarted:
			return []models.Account{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	summary, err := f.service.GetConsolidatedSummary(context.Background(), "c-1")
	require.NoError(t, err)
	assert.NotNil(t, summary.Products)
}

func TestGetConsolidatedSummaryFailurePropagation(t *testing.T) {
	tests := []struct {
		name          string
		customerFails bool
		accountsFails bool
		wantOperation string
	}{
		{name: "customer lookup fails, accounts succeed", customerFails: true, wantOperation: "summary-customer"},
		{name: "accounts lookup fails, customer succeeds", accountsFails: true, wantOperation: "summary-accounts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Second)
			f.customers.customer = func(ctx context.Context, customerID string) (*models.Customer, error) {
				if tt.customerFails {
					return nil, stderrors.New("customers backend: 503")
				}
				return &models.Customer{ID: customerID}, nil
			}
			f.accounts.accounts = func(ctx context.Context, customerID string) ([]models.Account, error) {
				if tt.accountsFails {
					return nil, stderrors.New("accounts backend: connection reset")
				}
				return []models.Account{{ID: "a-1"}}, nil
			}

			summary, err := f.service.GetConsolidatedSummary(context.Background(), "c-1")
			require.Error(t, err)
			assert.Nil(t, summary, "no partial summary")
			assert.True(t, errors.IsBackendUnavailable(err))
			assert.Equal(t, tt.wantOperation, errors.Categorize(err).Details["operation"])
			assert.Equal(t, resilience.SummaryUnavailableMessage, errors.Categorize(err).Message)
		})
	}
}

func TestGetConsolidatedSummaryFirstFailureWins(t *testing.T) {
	f := newFixture(t, time.Minute, WithSummaryDeadline(time.Minute))

	release := make(chan struct{})
	defer close(release)

	f.customers.customer = func(ctx context.Context, customerID string) (*models.Customer, error) {
		return nil, stderrors.New("customers backend: 404")
	}
	f.accounts.accounts = func(ctx context.Context, customerID string) ([]models.Account, error) {
		<-release
		return []models.Account{}, nil
	}

	start := time.Now()
	_, err := f.service.GetConsolidatedSummary(context.Background(), "c-1")
	require.Error(t, err)
	assert.True(t, errors.IsBackendUnavailable(err))
	assert.Less(t, time.Since(start), 5*time.Second, "must not wait for the slow branch")
}

func TestGetConsolidatedSummarySiblingOutcomeReachesBreaker(t *testing.T) {
	f := newFixture(t, time.Minute, WithSummaryDeadline(time.Minute))

	release := make(chan struct{})
	finished := make(chan struct{})
	f.customers.customer = func(ctx context.Context, customerID string) (*models.Customer, error) {
		return nil, stderrors.New("customers backend: 404")
	}
	f.accounts.accounts = func(ctx context.Context, customerID string) ([]models.Account, error) {
		defer close(finished)
		select {
		case <-release:
			return nil, stderrors.New("accounts backend: 500")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.service.GetConsolidatedSummary(ctx, "c-1")
	require.Error(t, err)

	// the HTTP server cancels the request context once the handler returns
	cancel()
	close(release)
	<-finished

	cb, err := f.registry.Get(string(resilience.OpSummaryAccounts))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		stats := cb.GetStats()
		return stats.TotalCalls == 1 && stats.TotalFailures == 1
	}, time.Second, 5*time.Millisecond, "the sibling failure is recorded, not released as cancelled")
}

func TestGetConsolidatedSummaryDeadline(t *testing.T) {
	f := newFixture(t, time.Minute, WithSummaryDeadline(30*time.Millisecond))
	assert.Equal(t, 30*time.Millisecond, f.service.SummaryDeadline())

	release := make(chan struct{})
	defer close(release)
	f.customers.customer = func(ctx context.Context, customerID string) (*models.Customer, error) {
		<-release
		return &models.Customer{ID: customerID}, nil
	}

	_, err := f.service.GetConsolidatedSummary(context.Background(), "c-1")
	require.Error(t, err)
	assert.True(t, errors.IsBackendUnavailable(err))
	assert.True(t, errors.IsTimeout(err))
	assert.Equal(t, "consolidated-summary", errors.Categorize(err).Details["operation"])
}

func TestDefaultSummaryDeadline(t *testing.T) {
	f := newFixture(t, 2*time.Second)
	assert.Equal(t, 2500*time.Millisecond, f.service.SummaryDeadline())
}

func TestOpenBreakerSkipsBackend(t *testing.T) {
	f := newFixture(t, time.Second)
	f.transactions.transactions = func(ctx context.Context, accountID string) ([]models.Transaction, error) {
		return nil, stderrors.New("transactions backend: 500")
	}

	for i := 0; i < circuitbreaker.DefaultRequestVolumeThreshold; i++ {
		_, err := f.service.GetTransactions(context.Background(), "a-1")
		require.Error(t, err)
	}
	callsBefore := f.transactions.calls.Load()

	_, err := f.service.GetTransactions(context.Background(), "a-1")
	require.Error(t, err)
	assert.True(t, errors.IsCircuitOpen(err))
	assert.Equal(t, callsBefore, f.transactions.calls.Load())
}
