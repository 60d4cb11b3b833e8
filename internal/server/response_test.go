package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opencode-ai/overseer/internal/history"
	"github.com/opencode-ai/overseer/internal/overseer"
	"github.com/opencode-ai/overseer/internal/session"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]string{"message": "hello"})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}

	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result["message"] != "hello" {
		t.Errorf("Expected message 'hello', got '%s'", result["message"])
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid input")

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	var result ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.Error.Code != ErrCodeInvalidRequest {
		t.Errorf("Expected code %s, got %s", ErrCodeInvalidRequest, result.Error.Code)
	}
	if result.Error.Message != "Invalid input" {
		t.Errorf("Expected message 'Invalid input', got '%s'", result.Error.Message)
	}
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	writeSuccess(w)

	var result map[string]bool
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !result["success"] {
		t.Error("Expected success to be true")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("wrap: %w", session.ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{history.ErrSessionNotFound, http.StatusNotFound, ErrCodeNotFound},
		{session.ErrCapacityExceeded, http.StatusConflict, ErrCodeCapacityExceeded},
		{session.ErrBusy, http.StatusConflict, ErrCodeBusy},
		{overseer.ErrBusy, http.StatusConflict, ErrCodeBusy},
		{session.ErrUnsupported, http.StatusNotImplemented, ErrCodeUnsupported},
		{session.ErrInvalidMode, http.StatusBadRequest, ErrCodeInvalidRequest},
		{session.ErrInvalidPath, http.StatusBadRequest, ErrCodeInvalidRequest},
		{errors.Join(errInvalidRequest, errors.New("bad json")), http.StatusBadRequest, ErrCodeInvalidRequest},
		{overseer.ErrNoModel, http.StatusServiceUnavailable, ErrCodeProviderError},
		{errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		status, code := classify(tt.err)
		if status != tt.status || code != tt.code {
			t.Errorf("classify(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
		}
	}
}
