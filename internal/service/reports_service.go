package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/reports-aggregator/internal/adapter"
	"github.com/reports-aggregator/internal/aggregation"
	"github.com/reports-aggregator/internal/errors"
	"github.com/reports-aggregator/internal/logging"
	"github.com/reports-aggregator/internal/models"
	"github.com/reports-aggregator/internal/report"
	"github.com/reports-aggregator/internal/resilience"
	"github.com/reports-aggregator/internal/types"
)

// summaryJoinOverhead is added to the slowest summary branch budget to derive the default
// summary deadline
const summaryJoinOverhead = 500 * time.Millisecond

// summaryOperation names the joined consolidated summary in errors and logs
const summaryOperation = "consolidated-summary"

// ReportsService orchestrates backend calls into reports. Every backend call goes through
// the resilience policy.
type ReportsService struct {
	accounts        adapter.AccountsBackend
	customers       adapter.CustomersBackend
	transactions    adapter.TransactionsBackend
	policy          *resilience.Policy
	clock           report.Clock
	summaryDeadline time.Duration
}

// Option customizes a ReportsService
type Option func(*ReportsService)

// WithClock overrides the clock used to stamp consolidated summaries
func WithClock(clock report.Clock) Option {
	return func(s *ReportsService) {
		s.clock = clock
	}
}

// WithSummaryDeadline overrides the wall-clock bound of the consolidated summary join
func WithSummaryDeadline(d time.Duration) Option {
	return func(s *ReportsService) {
		if d > 0 {
			s.summaryDeadline = d
		}
	}
}

// NewReportsService creates a new reports service
func NewReportsService(
	accounts adapter.AccountsBackend,
	customers adapter.CustomersBackend,
	transactions adapter.TransactionsBackend,
	policy *resilience.Policy,
	opts ...Option,
) *ReportsService {
	s := &ReportsService{
		accounts:     accounts,
		customers:    customers,
		transactions: transactions,
		policy:       policy,
		clock:        report.SystemClock,
	}

	slowest := policy.Timeout(resilience.OpSummaryCustomer)
	if t := policy.Timeout(resilience.OpSummaryAccounts); t > slowest {
		slowest = t
	}
	s.summaryDeadline = slowest + summaryJoinOverhead

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SummaryDeadline returns the bound applied to the consolidated summary join
func (s *ReportsService) SummaryDeadline() time.Duration {
	return s.summaryDeadline
}

func requireID(param, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewValidationError(param, "must not be blank")
	}
	return nil
}

func validateRange(start, end types.Date) error {
	if start.IsZero() {
		return errors.NewValidationError("startDate", "is required")
	}
	if end.IsZero() {
		return errors.NewValidationError("endDate", "is required")
	}
	if start.After(end) {
		return errors.NewValidationError("startDate", "must not be after endDate")
	}
	return nil
}

// GetBalances returns the available balance of every product of a customer. A customer
// with no products yields an empty list.
func (s *ReportsService) GetBalances(ctx context.Context, customerID string) ([]models.BalanceReport, error) {
	if err := requireID("customerId", customerID); err != nil {
		return nil, err
	}

	params := map[string]interface{}{"customerId": customerID}
	accounts, err := resilience.Execute(ctx, s.policy, resilience.OpBalances, params,
		func(ctx context.Context) ([]models.Account, error) {
			return s.accounts.GetAccountsByCustomer(ctx, customerID)
		})
	if err != nil {
		return nil, err
	}

	return aggregation.MapBalances(accounts), nil
}

// GetTransactions returns the movements of an account. An account with no movements yields
// an empty list.
func (s *ReportsService) GetTransactions(ctx context.Context, accountID string) ([]models.Transaction, error) {
	if err := requireID("accountId", accountID); err != nil {
		return nil, err
	}

	params := map[string]interface{}{"accountId": accountID}
	transactions, err := resilience.Execute(ctx, s.policy, resilience.OpTransactions, params,
		func(ctx context.Context) ([]models.Transaction, error) {
			return s.transactions.GetTransactionsByAccount(ctx, accountID)
		})
	if err != nil {
		return nil, err
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	return transactions, nil
}

// GetCommissionsReport totals the fees charged in [start, end] per product name
func (s *ReportsService) GetCommissionsReport(ctx context.Context, start, end types.Date) ([]models.CommissionReportItem, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	params := map[string]interface{}{"startDate": start.String(), "endDate": end.String()}
	records, err := resilience.Execute(ctx, s.policy, resilience.OpCommissions, params,
		func(ctx context.Context) ([]models.CommissionRecord, error) {
			return s.transactions.GetCommissionsReportData(ctx, start, end)
		})
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)
	for _, name := range aggregation.ProductTypeConflicts(records) {
		logger.WithFields(map[string]interface{}{
			"productName": name,
			"startDate":   start.String(),
			"endDate":     end.String(),
		}).Warn("Commission records disagree on product type, using the first record's type")
	}

	items := aggregation.AggregateCommissions(records)
	logger.WithFields(map[string]interface{}{
		"records": len(records),
		"groups":  len(items),
	}).Debug("Commissions aggregated")
	return items, nil
}

// GetDailyAverageBalance computes the customer's average PASSIVE end-of-day balance over
// [start, end]
func (s *ReportsService) GetDailyAverageBalance(ctx context.Context, customerID string, start, end types.Date) (*models.DailyAverageBalanceReport, error) {
	if err := requireID("customerId", customerID); err != nil {
		return nil, err
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"customerId": customerID,
		"startDate":  start.String(),
		"endDate":    end.String(),
	}
	snapshots, err := resilience.Execute(ctx, s.policy, resilience.OpDailyAverageBalance, params,
		func(ctx context.Context) ([]models.DailyBalanceSnapshot, error) {
			return s.accounts.GetDailyBalancesByCustomer(ctx, customerID, start, end)
		})
	if err != nil {
		return nil, err
	}

	average := aggregation.CalculateDailyAverage(snapshots, start, end)
	logging.FromContext(ctx).WithFields(params).WithField("snapshots", len(snapshots)).
		Debugf("Daily average balance is %s", average.StringFixed(aggregation.AverageScale))

	return report.NewDailyAverageBalanceReport(customerID, start, end, average), nil
}

type branchResult[T any] struct {
	value T
	err   error
}

// GetConsolidatedSummary fetches the customer and its products concurrently and joins them.
// The first failing branch fails the whole summary; the other branch is left to finish on
// its own, its outcome still reaches its breaker and is otherwise discarded.
func (s *ReportsService) GetConsolidatedSummary(ctx context.Context, customerID string) (*models.ConsolidatedSummary, error) {
	if err := requireID("customerId", customerID); err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx).WithField("customerId", customerID)
	params := map[string]interface{}{"customerId": customerID}

	// Branches outlive the caller's context so a returning join never cuts the sibling short;
	// the summary deadline still bounds them.
	branchCtx, cancelBranches := context.WithTimeout(context.WithoutCancel(ctx), s.summaryDeadline)
	var branches sync.WaitGroup
	branches.Add(2)
	go func() {
		branches.Wait()
		cancelBranches()
	}()

	customerCh := make(chan branchResult[*models.Customer], 1)
	accountsCh := make(chan branchResult[[]models.Account], 1)

	go func() {
		defer branches.Done()
		c, err := resilience.Execute(branchCtx, s.policy, resilience.OpSummaryCustomer, params,
			func(ctx context.Context) (*models.Customer, error) {
				return s.customers.GetCustomerByID(ctx, customerID)
			})
		customerCh <- branchResult[*models.Customer]{value: c, err: err}
	}()
	go func() {
		defer branches.Done()
		a, err := resilience.Execute(branchCtx, s.policy, resilience.OpSummaryAccounts, params,
			func(ctx context.Context) ([]models.Account, error) {
				return s.accounts.GetAccountsByCustomer(ctx, customerID)
			})
		accountsCh <- branchResult[[]models.Account]{value: a, err: err}
	}()

	deadline := time.NewTimer(s.summaryDeadline)
	defer deadline.Stop()

	var (
		customer *models.Customer
		accounts []models.Account
	)
	for pending := 2; pending > 0; pending-- {
		select {
		case r := <-customerCh:
			if r.err != nil {
				logger.WithError(r.err).Error("Consolidated summary failed on customer lookup")
				return nil, r.err
			}
			if r.value == nil {
				err := errors.NewBackendUnavailableError(summaryOperation, resilience.SummaryUnavailableMessage,
					fmt.Errorf("customers backend returned no customer for '%s'", customerID))
				logger.WithError(err).Error("Consolidated summary failed on customer lookup")
				return nil, err
			}
			customer = r.value

		case r := <-accountsCh:
			if r.err != nil {
				logger.WithError(r.err).Error("Consolidated summary failed on accounts lookup")
				return nil, r.err
			}
			accounts = r.value

		case <-deadline.C:
			err := errors.NewBackendUnavailableError(summaryOperation, resilience.SummaryUnavailableMessage,
				errors.NewTimeoutError(summaryOperation, s.summaryDeadline))
			logger.WithError(err).Error("Consolidated summary deadline exceeded")
			return nil, err
		}
	}

	logger.WithField("products", len(accounts)).Debug("Consolidated summary assembled")
	return report.NewConsolidatedSummary(customer, accounts, s.clock()), nil
}
