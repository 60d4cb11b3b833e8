package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opencode-ai/overseer/internal/history"
	"github.com/opencode-ai/overseer/internal/overseer"
	"github.com/opencode-ai/overseer/internal/session"
	"github.com/opencode-ai/overseer/internal/storage"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeCapacityExceeded = "CAPACITY_EXCEEDED"
	ErrCodeBusy             = "BUSY"
	ErrCodeUnsupported      = "UNSUPPORTED"
	ErrCodeProviderError    = "PROVIDER_ERROR"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

var (
	errInvalidRequest = errors.New("invalid request")
	errUnavailable    = errors.New("not available on this server")
)

// classify maps an error to an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, session.ErrInvalidMode),
		errors.Is(err, session.ErrInvalidPath):
		return http.StatusBadRequest, ErrCodeInvalidRequest
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, history.ErrSessionNotFound),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, session.ErrCapacityExceeded):
		return http.StatusConflict, ErrCodeCapacityExceeded
	case errors.Is(err, session.ErrBusy), errors.Is(err, overseer.ErrBusy):
		return http.StatusConflict, ErrCodeBusy
	case errors.Is(err, session.ErrUnsupported), errors.Is(err, errUnavailable):
		return http.StatusNotImplemented, ErrCodeUnsupported
	case errors.Is(err, overseer.ErrNoModel):
		return http.StatusServiceUnavailable, ErrCodeProviderError
	}
	return http.StatusInternalServerError, ErrCodeInternalError
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeErr writes err with the status and code it classifies as.
func writeErr(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err.Error())
}

// writeSuccess writes a success response.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errInvalidRequest
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errInvalidRequest, err)
	}
	return nil
}
