package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amohttp "github.com/fivetwenty-io/amocrm/internal/http"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTokens hands out token and swaps in refreshed on RefreshToken.
type stubTokens struct {
	mu         sync.Mutex
	token      string
	refreshed  string
	refreshErr error
	refreshes  int
}

func (m *stubTokens) GetToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.token, nil
}

func (m *stubTokens) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshes++
	if m.refreshErr != nil {
		return m.refreshErr
	}

	m.token = m.refreshed

	return nil
}

func (m *stubTokens) SetToken(token string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
}

type logLine struct {
	level, msg string
	fields     map[string]interface{}
}

type capturingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *capturingLogger) add(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lines = append(l.lines, logLine{level: level, msg: msg, fields: fields})
}

func (l *capturingLogger) Debug(msg string, fields map[string]interface{}) { l.add("debug", msg, fields) }
func (l *capturingLogger) Info(msg string, fields map[string]interface{})  { l.add("info", msg, fields) }
func (l *capturingLogger) Warn(msg string, fields map[string]interface{})  { l.add("warn", msg, fields) }
func (l *capturingLogger) Error(msg string, fields map[string]interface{}) { l.add("error", msg, fields) }

//nolint:funlen
func TestClient_Do(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		request *amohttp.Request
		status  int
		check   func(t *testing.T, resp *amohttp.Response, err error)
	}{
		{
			name: "authorized JSON GET",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/leads/7", r.URL.Path)
				assert.Equal(t, "Bearer long-lived", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Accept"))

				w.Header().Set("Content-Type", "application/hal+json")
				_, _ = io.WriteString(w, `{"id": 7, "name": "Website order", "price": 1500}`)
			},
			request: &amohttp.Request{Method: http.MethodGet, Path: "/leads/7"},
			status:  http.StatusOK,
			check: func(t *testing.T, resp *amohttp.Response, err error) {
				t.Helper()
				require.NoError(t, err)

				var lead amocrm.Lead

				require.NoError(t, json.Unmarshal(resp.Body, &lead))
				assert.Equal(t, 7, lead.ID)
				assert.Equal(t, "Website order", lead.Name)
			},
		},
		{
			name: "query string",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "contacts", r.URL.Query().Get("with"))
				assert.Equal(t, "2", r.URL.Query().Get("page"))
			},
			request: &amohttp.Request{
				Method: http.MethodGet,
				Path:   "/leads",
				Query:  url.Values{"with": {"contacts"}, "page": {"2"}},
			},
			status: http.StatusOK,
			check: func(t *testing.T, resp *amohttp.Response, err error) {
				t.Helper()
				require.NoError(t, err)
			},
		},
		{
			name: "JSON array body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var leads []map[string]any

				assert.NoError(t, json.NewDecoder(r.Body).Decode(&leads))
				assert.Equal(t, "Website order", leads[0]["name"])

				_, _ = io.WriteString(w, `{"_embedded": {"leads": [{"id": 11}]}}`)
			},
			request: &amohttp.Request{
				Method: http.MethodPost,
				Path:   "/leads",
				Body:   []map[string]any{{"name": "Website order"}},
			},
			status: http.StatusOK,
			check: func(t *testing.T, resp *amohttp.Response, err error) {
				t.Helper()
				require.NoError(t, err)
				assert.Contains(t, string(resp.Body), `"id": 11`)
			},
		},
		{
			name: "per-request headers",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "ru", r.Header.Get("Accept-Language"))
			},
			request: &amohttp.Request{
				Method:  http.MethodGet,
				Path:    "/users",
				Headers: map[string]string{"Accept-Language": "ru"},
			},
			status: http.StatusOK,
			check: func(t *testing.T, resp *amohttp.Response, err error) {
				t.Helper()
				require.NoError(t, err)
			},
		},
		{
			name: "problem+json error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/problem+json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{
					"title": "Bad Request",
					"status": 400,
					"detail": "Request validation failed",
					"validation-errors": [{"request_id": "0", "errors": [{"code": "NotSupportedChoice", "path": "custom_fields_values.0.values.0.enum_id", "detail": "The value you selected is not a valid choice."}]}]
				}`)
			},
			request: &amohttp.Request{Method: http.MethodPatch, Path: "/leads/7", Body: map[string]any{"name": "x"}},
			status:  http.StatusBadRequest,
			check: func(t *testing.T, resp *amohttp.Response, err error) {
				t.Helper()

				var apiErr *amocrm.APIError

				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "Request validation failed", apiErr.Detail)
				assert.True(t, amocrm.IsValidation(err))
				require.Len(t, apiErr.ValidationErrors, 1)
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			request: &amohttp.Request{Method: http.MethodGet, Path: "/contacts/404"},
			status:  http.StatusNotFound,
			check: func(t *testing.T, resp *amohttp.Response, err error) {
				t.Helper()
				assert.True(t, amocrm.IsNotFound(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := amohttp.NewClient(server.URL, &stubTokens{token: "long-lived"}, amohttp.WithRetryConfig(0, 0, 0))

			resp, err := client.Do(context.Background(), tt.request)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
			tt.check(t, resp, err)
		})
	}
}

func TestClient_DebugLogging(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"_embedded": {"pipelines": []}}`)
	}))
	defer server.Close()

	logger := &capturingLogger{}
	client := amohttp.NewClient(server.URL, nil, amohttp.WithLogger(logger), amohttp.WithDebug(true))

	_, err := client.Get(context.Background(), "/leads/pipelines", nil)
	require.NoError(t, err)

	require.Len(t, logger.lines, 2)
	assert.Equal(t, "HTTP Request", logger.lines[0].msg)
	assert.Equal(t, "HTTP Response", logger.lines[1].msg)
	assert.Equal(t, http.StatusOK, logger.lines[1].fields["status"])
}

func TestClient_Verbs(t *testing.T) {
	t.Parallel()

	calls := map[string]func(*amohttp.Client, context.Context) (*amohttp.Response, error){
		http.MethodGet:    func(c *amohttp.Client, ctx context.Context) (*amohttp.Response, error) { return c.Get(ctx, "/leads/1", nil) },
		http.MethodPost:   func(c *amohttp.Client, ctx context.Context) (*amohttp.Response, error) { return c.Post(ctx, "/leads/1", []int{1}) },
		http.MethodPut:    func(c *amohttp.Client, ctx context.Context) (*amohttp.Response, error) { return c.Put(ctx, "/leads/1", []int{1}) },
		http.MethodPatch:  func(c *amohttp.Client, ctx context.Context) (*amohttp.Response, error) { return c.Patch(ctx, "/leads/1", []int{1}) },
		http.MethodDelete: func(c *amohttp.Client, ctx context.Context) (*amohttp.Response, error) { return c.Delete(ctx, "/leads/1") },
	}

	for method, call := range calls {
		t.Run(method, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, method, r.Method)
				assert.Equal(t, "/leads/1", r.URL.Path)
			}))
			defer server.Close()

			resp, err := call(amohttp.NewClient(server.URL, nil), context.Background())
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}

func TestClient_Retries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		statuses []int
		attempts int32
		final    int
	}{
		{name: "server errors are retried", statuses: []int{http.StatusBadGateway, http.StatusInternalServerError, http.StatusOK}, attempts: 3, final: http.StatusOK},
		{name: "rate limit is retried", statuses: []int{http.StatusTooManyRequests, http.StatusOK}, attempts: 2, final: http.StatusOK},
		{name: "validation errors are not retried", statuses: []int{http.StatusBadRequest, http.StatusOK}, attempts: 1, final: http.StatusBadRequest},
		{name: "forbidden is not retried", statuses: []int{http.StatusForbidden, http.StatusOK}, attempts: 1, final: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var attempts atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := attempts.Add(1)
				w.WriteHeader(tt.statuses[min(int(n), len(tt.statuses))-1])
			}))
			defer server.Close()

			client := amohttp.NewClient(server.URL, nil, amohttp.WithRetryConfig(3, 5*time.Millisecond, 20*time.Millisecond))

			resp, _ := client.Get(context.Background(), "/leads", nil)
			require.NotNil(t, resp)
			assert.Equal(t, tt.final, resp.StatusCode)
			assert.Equal(t, tt.attempts, attempts.Load())
		})
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestClient_Unauthorized(t *testing.T) {
	t.Parallel()

	t.Run("refreshes and replays once", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			calls.Add(1)

			if request.Header.Get("Authorization") != "Bearer fresh" {
				writer.WriteHeader(http.StatusUnauthorized)
				_, _ = writer.Write([]byte(`{"title":"Unauthorized","status":401}`))

				return
			}

			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		tokenManager := &stubTokens{token: "stale", refreshed: "fresh"}
		client := amohttp.NewClient(server.URL, tokenManager)

		resp, err := client.Get(context.Background(), "/account", nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, 1, tokenManager.refreshes)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("refresh failure keeps original error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		tokenManager := &stubTokens{token: "stale", refreshErr: errors.New("no refresh token")}
		client := amohttp.NewClient(server.URL, tokenManager)

		resp, err := client.Get(context.Background(), "/account", nil)
		require.Error(t, err)
		assert.True(t, amocrm.IsUnauthorized(err))
		assert.Equal(t, 401, resp.StatusCode)
		assert.Equal(t, 1, tokenManager.refreshes)
	})
}

func TestClient_NoContent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := amohttp.NewClient(server.URL, nil)

	resp, err := client.Get(context.Background(), "/leads", url.Values{"page": {"9"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Body)
}

func TestClient_Interceptors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "integration-1", request.Header.Get("X-Integration"))

		if request.URL.Path == "/missing" {
			writer.WriteHeader(http.StatusNotFound)

			return
		}

		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	collector := amocrm.NewMetricsCollector()
	chain := amocrm.NewInterceptorChain().
		OnRequest(
			amocrm.HeaderInterceptor(map[string]string{"X-Integration": "integration-1"}),
			amocrm.MetricsRequestInterceptor(collector),
		).
		OnResponse(amocrm.MetricsResponseInterceptor(collector))

	client := amohttp.NewClient(server.URL, nil, amohttp.WithInterceptors(chain))

	_, err := client.Get(context.Background(), "/leads", nil)
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/missing", nil)
	require.Error(t, err)

	assert.Equal(t, int64(1), collector.GetMetrics("GET /leads").TotalRequests)
	assert.Equal(t, int64(1), collector.GetMetrics("GET /missing").TotalErrors)
}

func TestClient_RateLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := amohttp.NewClient(server.URL, nil, amohttp.WithRateLimit(1))

	_, err := client.Get(context.Background(), "/leads", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Get(ctx, "/leads", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}
