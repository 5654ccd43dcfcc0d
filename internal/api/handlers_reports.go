package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/reports-aggregator/internal/errors"
	"github.com/reports-aggregator/internal/types"
)

// parseDateParam reads an optional YYYY-MM-DD query parameter. A missing value yields the zero
// date, which the service rejects as required.
func parseDateParam(r *http.Request, name string) (types.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return types.Date{}, nil
	}
	d, err := types.ParseDate(raw)
	if err != nil {
		return types.Date{}, errors.NewValidationError(name, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}

// parseDateRange reads the startDate and endDate query parameters
func parseDateRange(r *http.Request) (types.Date, types.Date, error) {
	start, err := parseDateParam(r, "startDate")
	if err != nil {
		return types.Date{}, types.Date{}, err
	}
	end, err := parseDateParam(r, "endDate")
	if err != nil {
		return types.Date{}, types.Date{}, err
	}
	return start, end, nil
}

// handleGetBalances handles GET /reports/balances?customerId=
func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customerId")

	balances, err := s.reports.GetBalances(r.Context(), customerID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if len(balances) == 0 {
		respondNotFound(w, fmt.Sprintf("no accounts found for customer %s", customerID), map[string]interface{}{
			"customerId": customerID,
		})
		return
	}

	respondJSON(w, http.StatusOK, balances)
}

// handleGetMovements handles GET /reports/movements?accountId=
func (s *Server) handleGetMovements(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")

	transactions, err := s.reports.GetTransactions(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if len(transactions) == 0 {
		respondNotFound(w, fmt.Sprintf("no movements found for account %s", accountID), map[string]interface{}{
			"accountId": accountID,
		})
		return
	}

	respondJSON(w, http.StatusOK, transactions)
}

// handleGetCommissions handles GET /reports/commissions?startDate=&endDate=
func (s *Server) handleGetCommissions(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	items, err := s.reports.GetCommissionsReport(r.Context(), start, end)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if len(items) == 0 {
		respondNotFound(w, fmt.Sprintf("no commissions found between %s and %s", start, end), map[string]interface{}{
			"startDate": start.String(),
			"endDate":   end.String(),
		})
		return
	}

	respondJSON(w, http.StatusOK, items)
}

// handleGetDailyAverageBalance handles GET /reports/daily-average-balance?customerId=&startDate=&endDate=
func (s *Server) handleGetDailyAverageBalance(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customerId")
	start, end, err := parseDateRange(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	report, err := s.reports.GetDailyAverageBalance(r.Context(), customerID, start, end)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// handleGetConsolidatedSummary handles GET /reports/consolidated/{customerId}
func (s *Server) handleGetConsolidatedSummary(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["customerId"]

	summary, err := s.reports.GetConsolidatedSummary(r.Context(), customerID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
