package api

import (
	"encoding/json"
	"net/http"

	"github.com/reports-aggregator/internal/errors"
	"github.com/reports-aggregator/internal/logging"
	"github.com/reports-aggregator/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondServiceError maps an error returned by the reports service to its HTTP response.
// Causes are logged, never written to the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := errors.Categorize(err)

	logger := logging.FromContext(r.Context()).WithFields(map[string]interface{}{
		"code":   catErr.Code,
		"status": catErr.StatusCode,
	}).WithError(err)
	if errors.IsUserError(catErr) {
		logger.Info("Request rejected")
	} else {
		logger.Error("Request failed")
	}

	message := catErr.Message
	if catErr.Category == errors.CategorySystem {
		message = "An internal error occurred"
	}
	respondError(w, catErr.StatusCode, catErr.Code, message, catErr.Details)
}

// respondNotFound reports an empty result set
func respondNotFound(w http.ResponseWriter, message string, details map[string]interface{}) {
	respondError(w, http.StatusNotFound, errors.CodeNotFound, message, details)
}
