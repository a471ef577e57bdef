package api

import (
	"encoding/json"
	"net/http"

	"github.com/scor-analyzer/internal/errors"
	"github.com/scor-analyzer/internal/logging"
	"github.com/scor-analyzer/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error *types.ServiceError `json:"error"`
}

// ErrCodeServiceUnavailable is returned for features that are switched off
const ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

var errSignupsDisabled = &errors.CategorizedError{
	Category:   errors.CategorySystem,
	StatusCode: http.StatusServiceUnavailable,
	Code:       ErrCodeServiceUnavailable,
	Message:    "signups are not enabled",
}

// respondError sends the categorized form of err. Only the short public
// message reaches the client; the full error goes to the log.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := errors.Categorize(err)

	logger := logging.FromContext(r.Context()).WithError(err).WithField("code", catErr.Code)
	if catErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("Request failed")
	} else {
		logger.Debug("Request rejected")
	}

	respondJSON(w, catErr.StatusCode, ErrorResponse{Error: catErr.ToServiceError()})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data) // nolint:errcheck // client went away
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return errors.NewInvalidParameterError("body", "malformed JSON")
	}
	return nil
}
