package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorResponse is the error body the table server sends, e.g. {"message": "Missing game ID"}.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http error (status %d)", e.StatusCode)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			apiErr.Message = errResp.Message
		} else {
			apiErr.Message = errResp.Error
		}
	}
	if apiErr.Message == "" && len(body) > 0 && len(body) <= 512 {
		apiErr.Message = string(body)
	}
	return apiErr
}
