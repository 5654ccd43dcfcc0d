package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/reports-aggregator/internal/models"
)

// CustomersClient calls the customers service over HTTP
type CustomersClient struct {
	rest restClient
}

// NewCustomersClient creates a customers service client. httpClient may be nil.
func NewCustomersClient(baseURL string, httpClient *http.Client) *CustomersClient {
	return &CustomersClient{rest: newRESTClient("customers", baseURL, httpClient)}
}

// GetCustomerByID calls GET /customers/{customerId}
func (c *CustomersClient) GetCustomerByID(ctx context.Context, customerID string) (*models.Customer, error) {
	var customer models.Customer
	if err := c.rest.getJSON(ctx, "/customers/"+url.PathEscape(customerID), nil, &customer); err != nil {
		return nil, err
	}
	if customer.ID == "" {
		return nil, fmt.Errorf("customers backend returned a customer without id for '%s'", customerID)
	}
	return &customer, nil
}
