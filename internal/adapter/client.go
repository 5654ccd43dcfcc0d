package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reports-aggregator/internal/logging"
)

// DefaultHTTPTimeout bounds a single backend request when no client is supplied.
// The resilience policy normally enforces a tighter per-operation budget.
const DefaultHTTPTimeout = 10 * time.Second

// maxErrorBody caps how much of a non-2xx body ends up in a StatusError
const maxErrorBody = 512

// StatusError is returned when a backend answers with a non-2xx status
type StatusError struct {
	Service    string
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s backend: %s %s returned %d: %s", e.Service, e.Method, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s backend: %s %s returned %d", e.Service, e.Method, e.URL, e.StatusCode)
}

// restClient performs JSON GET requests against one backend base URL
type restClient struct {
	service    string
	baseURL    string
	httpClient *http.Client
}

func newRESTClient(service, baseURL string, httpClient *http.Client) restClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return restClient{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// getJSON issues GET baseURL+path?query and decodes the response body into out
func (c restClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s backend request failed: %w", c.service, err)
	}
	defer resp.Body.Close()

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"backend":  c.service,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("Backend request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Service:    c.service,
			Method:     http.MethodGet,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.service, err)
	}
	return nil
}
