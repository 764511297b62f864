package amocrm_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *amocrm.APIError
		expected string
	}{
		{
			name:     "title and detail",
			err:      &amocrm.APIError{Status: 404, Title: "Not Found", Detail: "Lead not found"},
			expected: "Not Found: Lead not found (status: 404)",
		},
		{
			name:     "hint without detail",
			err:      &amocrm.APIError{Status: 400, Title: "Bad Request", Hint: "Authorization code has expired"},
			expected: "Bad Request: Authorization code has expired (status: 400)",
		},
		{
			name:     "status text fallback",
			err:      &amocrm.APIError{Status: 402},
			expected: "Payment Required (status: 402)",
		},
		{
			name: "validation errors",
			err: &amocrm.APIError{
				Status: 400,
				Title:  "Bad Request",
				ValidationErrors: []amocrm.ValidationError{{
					RequestID: "0",
					Errors: []amocrm.FieldError{
						{Code: "NotSupportedChoice", Path: "custom_fields_values.0.field_id", Detail: "The value you selected is not a valid choice."},
					},
				}},
			},
			expected: "Bad Request [custom_fields_values.0.field_id: The value you selected is not a valid choice.] (status: 400)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestParseAPIError(t *testing.T) {
	t.Parallel()

	t.Run("problem json", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{
			"validation-errors": [{"request_id": "0", "errors": [{"code": "FieldMissing", "path": "name", "detail": "This field is missing."}]}],
			"title": "Bad Request",
			"type": "https://httpstatus.es/400",
			"status": 400,
			"detail": "Request validation failed"
		}`)

		apiErr := amocrm.ParseAPIError(http.StatusBadRequest, body)
		assert.Equal(t, 400, apiErr.Status)
		assert.Equal(t, "Request validation failed", apiErr.Detail)
		require.Len(t, apiErr.ValidationErrors, 1)
		assert.Equal(t, "name", apiErr.ValidationErrors[0].Errors[0].Path)
	})

	t.Run("body without status", func(t *testing.T) {
		t.Parallel()

		apiErr := amocrm.ParseAPIError(http.StatusUnauthorized, []byte(`{"hint": "Token has expired"}`))
		assert.Equal(t, 401, apiErr.Status)
		assert.Equal(t, "Unauthorized", apiErr.Title)
		assert.Equal(t, "Token has expired", apiErr.Hint)
	})

	t.Run("non json body", func(t *testing.T) {
		t.Parallel()

		apiErr := amocrm.ParseAPIError(http.StatusBadGateway, []byte("<html>bad gateway</html>\n"))
		assert.Equal(t, 502, apiErr.Status)
		assert.Equal(t, "<html>bad gateway</html>", apiErr.Detail)
	})
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	wrap := func(status int) error {
		return fmt.Errorf("getting lead: %w", &amocrm.APIError{Status: status})
	}

	assert.True(t, amocrm.IsNotFound(wrap(404)))
	assert.False(t, amocrm.IsNotFound(wrap(400)))
	assert.True(t, amocrm.IsUnauthorized(wrap(401)))
	assert.True(t, amocrm.IsForbidden(wrap(403)))
	assert.True(t, amocrm.IsTooManyRequests(wrap(429)))
	assert.False(t, amocrm.IsNotFound(errors.New("plain")))
	assert.False(t, amocrm.IsNotFound(nil))

	validation := fmt.Errorf("creating leads: %w", &amocrm.APIError{
		Status:           400,
		ValidationErrors: []amocrm.ValidationError{{Errors: []amocrm.FieldError{{Path: "price"}}}},
	})
	assert.True(t, amocrm.IsValidation(validation))
	assert.False(t, amocrm.IsValidation(wrap(400)))
}
