package amocrm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is an amoCRM error response (application/problem+json).
type APIError struct {
	Status           int               `json:"status"                      yaml:"status"`
	Title            string            `json:"title"                       yaml:"title"`
	Type             string            `json:"type,omitempty"              yaml:"type,omitempty"`
	Detail           string            `json:"detail,omitempty"            yaml:"detail,omitempty"`
	Hint             string            `json:"hint,omitempty"              yaml:"hint,omitempty"`
	ValidationErrors []ValidationError `json:"validation-errors,omitempty" yaml:"validation_errors,omitempty"`
}

// ValidationError groups the field errors reported for one entity of a
// batch request.
type ValidationError struct {
	RequestID string       `json:"request_id" yaml:"request_id"`
	Errors    []FieldError `json:"errors"     yaml:"errors"`
}

// FieldError is a single validation failure.
type FieldError struct {
	Code   string `json:"code"   yaml:"code"`
	Path   string `json:"path"   yaml:"path"`
	Detail string `json:"detail" yaml:"detail"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Title
	if msg == "" {
		msg = http.StatusText(e.Status)
	}

	if e.Detail != "" {
		msg += ": " + e.Detail
	} else if e.Hint != "" {
		msg += ": " + e.Hint
	}

	if len(e.ValidationErrors) > 0 {
		var parts []string

		for _, ve := range e.ValidationErrors {
			for _, fe := range ve.Errors {
				parts = append(parts, fmt.Sprintf("%s: %s", fe.Path, fe.Detail))
			}
		}

		if len(parts) > 0 {
			msg += " [" + strings.Join(parts, "; ") + "]"
		}
	}

	return fmt.Sprintf("%s (status: %d)", msg, e.Status)
}

// ParseAPIError decodes an error body. The HTTP status is used when the body
// does not carry one, and a body that is not JSON becomes the detail.
func ParseAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{}

	err := json.Unmarshal(data, apiErr)
	if err != nil {
		apiErr = &APIError{Detail: strings.TrimSpace(string(data))}
	}

	if apiErr.Status == 0 {
		apiErr.Status = status
	}

	if apiErr.Title == "" {
		apiErr.Title = http.StatusText(status)
	}

	return apiErr
}

func hasStatus(err error, status int) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return apiErr.Status == status
	}

	return false
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized checks if the error is an unauthorized error.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden checks if the error is a forbidden error. amoCRM answers 403
// for blocked accounts and disabled API access.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsTooManyRequests checks if the error reports an exceeded request limit.
func IsTooManyRequests(err error) bool {
	return hasStatus(err, http.StatusTooManyRequests)
}

// IsValidation checks if the error carries validation errors.
func IsValidation(err error) bool {
	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		return len(apiErr.ValidationErrors) > 0
	}

	return false
}

// Static errors for err113 compliance.
var (
	ErrConfigRequired         = errors.New("config is required")
	ErrSubdomainRequired      = errors.New("subdomain or base URL is required")
	ErrInvalidClientType      = errors.New("invalid client type")
	ErrNoMoreItems            = errors.New("no more items")
	ErrCircuitBreakerOpen     = errors.New("circuit breaker is open")
	ErrRecordIDRequired       = errors.New("record id is required")
	ErrEmptyBatch             = errors.New("at least one record is required")
	ErrUnexpectedResponseSize = errors.New("unexpected number of records in response")
)
