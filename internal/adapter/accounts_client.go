package adapter

import (
	"context"
	"net/http"
	"net/url"

	"github.com/reports-aggregator/internal/models"
	"github.com/reports-aggregator/internal/types"
	"github.com/shopspring/decimal"
)

// AccountsClient calls the accounts service over HTTP
type AccountsClient struct {
	rest restClient
}

// NewAccountsClient creates an accounts service client. httpClient may be nil.
func NewAccountsClient(baseURL string, httpClient *http.Client) *AccountsClient {
	return &AccountsClient{rest: newRESTClient("accounts", baseURL, httpClient)}
}

// GetAccountsByCustomer calls GET /accounts?customerId=
func (c *AccountsClient) GetAccountsByCustomer(ctx context.Context, customerID string) ([]models.Account, error) {
	var accounts []models.Account
	query := url.Values{"customerId": {customerID}}
	if err := c.rest.getJSON(ctx, "/accounts", query, &accounts); err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	return accounts, nil
}

// snapshotDTO is the wire shape of a daily balance. productType arrives as a bare string
// and is normalized to a BalanceClass.
type snapshotDTO struct {
	ProductID     string              `json:"productId"`
	AccountType   string              `json:"accountType"`
	ProductType   string              `json:"productType"`
	Date          types.Date          `json:"date"`
	BalanceEOD    decimal.NullDecimal `json:"balanceEOD"`
	AmountUsedEOD decimal.NullDecimal `json:"amountUsedEOD"`
}

func (d snapshotDTO) toModel() models.DailyBalanceSnapshot {
	return models.DailyBalanceSnapshot{
		ProductID:     d.ProductID,
		AccountType:   d.AccountType,
		ProductType:   types.ParseBalanceClass(d.ProductType),
		Date:          d.Date,
		BalanceEOD:    d.BalanceEOD,
		AmountUsedEOD: d.AmountUsedEOD,
	}
}

// GetDailyBalancesByCustomer calls GET /accounts/daily-balances?customerId=&startDate=&endDate=
func (c *AccountsClient) GetDailyBalancesByCustomer(ctx context.Context, customerID string, start, end types.Date) ([]models.DailyBalanceSnapshot, error) {
	var dtos []snapshotDTO
	query := url.Values{
		"customerId": {customerID},
		"startDate":  {start.String()},
		"endDate":    {end.String()},
	}
	if err := c.rest.getJSON(ctx, "/accounts/daily-balances", query, &dtos); err != nil {
		return nil, err
	}

	snapshots := make([]models.DailyBalanceSnapshot, 0, len(dtos))
	for _, dto := range dtos {
		snapshots = append(snapshots, dto.toModel())
	}
	return snapshots, nil
}
