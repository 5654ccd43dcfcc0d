package adapter

import (
	"context"
	"net/http"
	"net/url"

	"github.com/reports-aggregator/internal/models"
	"github.com/reports-aggregator/internal/types"
)

// TransactionsClient calls the transactions service over HTTP
type TransactionsClient struct {
	rest restClient
}

// NewTransactionsClient creates a transactions service client. httpClient may be nil.
func NewTransactionsClient(baseURL string, httpClient *http.Client) *TransactionsClient {
	return &TransactionsClient{rest: newRESTClient("transactions", baseURL, httpClient)}
}

// GetTransactionsByAccount calls GET /transactions?accountId=
func (c *TransactionsClient) GetTransactionsByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	var transactions []models.Transaction
	query := url.Values{"accountId": {accountID}}
	if err := c.rest.getJSON(ctx, "/transactions", query, &transactions); err != nil {
		return nil, err
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	return transactions, nil
}

// GetCommissionsReportData calls GET /transactions/commissions?startDate=&endDate=
func (c *TransactionsClient) GetCommissionsReportData(ctx context.Context, start, end types.Date) ([]models.CommissionRecord, error) {
	var records []models.CommissionRecord
	query := url.Values{
		"startDate": {start.String()},
		"endDate":   {end.String()},
	}
	if err := c.rest.getJSON(ctx, "/transactions/commissions", query, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.CommissionRecord{}
	}
	return records, nil
}
