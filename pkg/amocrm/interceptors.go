package amocrm

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/amocrm/internal/constants"
	"golang.org/x/time/rate"
)

// Request is the view of an outgoing call that interceptors may inspect and
// amend. Path is relative to /api/v4.
type Request struct {
	Method   string
	Path     string
	Headers  http.Header
	Body     []byte
	Metadata map[string]interface{}
}

// Response is the view of a completed call. Error is set for transport
// failures and for amoCRM error responses.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Error      error
}

// RequestInterceptor runs before a request is sent. Returning an error
// cancels the request.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor runs after a response is received.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response) error

// InterceptorChain holds the hooks passed in Config.Interceptors. A nil chain
// is valid and runs nothing.
type InterceptorChain struct {
	before []RequestInterceptor
	after  []ResponseInterceptor
}

func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// OnRequest appends request hooks. They run in the order added.
func (c *InterceptorChain) OnRequest(interceptors ...RequestInterceptor) *InterceptorChain {
	c.before = append(c.before, interceptors...)

	return c
}

// OnResponse appends response hooks. They run in the order added.
func (c *InterceptorChain) OnResponse(interceptors ...ResponseInterceptor) *InterceptorChain {
	c.after = append(c.after, interceptors...)

	return c
}

// Len reports the number of registered hooks of both kinds.
func (c *InterceptorChain) Len() int {
	if c == nil {
		return 0
	}

	return len(c.before) + len(c.after)
}

// BeforeRequest runs the request hooks, stopping at the first error.
func (c *InterceptorChain) BeforeRequest(ctx context.Context, req *Request) error {
	if c == nil {
		return nil
	}

	for _, hook := range c.before {
		if err := hook(ctx, req); err != nil {
			return fmt.Errorf("request interceptor: %w", err)
		}
	}

	return nil
}

// AfterResponse runs the response hooks, stopping at the first error.
func (c *InterceptorChain) AfterResponse(ctx context.Context, req *Request, resp *Response) error {
	if c == nil {
		return nil
	}

	for _, hook := range c.after {
		if err := hook(ctx, req, resp); err != nil {
			return fmt.Errorf("response interceptor: %w", err)
		}
	}

	return nil
}

// LoggingInterceptor logs every outgoing call at debug level.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		logger.Debug("amoCRM request", map[string]interface{}{
			"endpoint": EndpointName(req.Method, req.Path),
			"bytes":    len(req.Body),
		})

		return nil
	}
}

// LoggingResponseInterceptor logs failures at error level, throttled calls
// at warn level and everything else at debug level.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		fields := map[string]interface{}{
			"endpoint": EndpointName(req.Method, req.Path),
			"status":   resp.StatusCode,
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			logger.Warn("amoCRM rate limit hit", fields)
		case resp.Error != nil:
			fields["error"] = resp.Error.Error()
			logger.Error("amoCRM request failed", fields)
		default:
			logger.Debug("amoCRM response", fields)
		}

		return nil
	}
}

// RateLimitInterceptor throttles requests to requestsPerSecond with a burst
// of one, waiting for a slot or ctx cancellation.
func RateLimitInterceptor(requestsPerSecond float64) RequestInterceptor {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), 1)

	return func(ctx context.Context, req *Request) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}

		return nil
	}
}

// HeaderInterceptor sets fixed headers on every request.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}

		for key, value := range headers {
			req.Headers.Set(key, value)
		}

		return nil
	}
}

// EndpointName groups calls by method and path with numeric segments
// replaced, so "/leads/7/links" and "/leads/8/links" share "GET /leads/{id}/links".
func EndpointName(method, path string) string {
	path, _, _ = strings.Cut(path, "?")

	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			segments[i] = "{id}"
		}
	}

	return method + " " + strings.Join(segments, "/")
}

// Metrics holds per-endpoint call statistics.
type Metrics struct {
	TotalRequests   int64
	TotalErrors     int64
	Throttled       int64
	TotalLatency    time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time
}

// MetricsCollector aggregates Metrics by EndpointName.
type MetricsCollector struct {
	mu       sync.Mutex
	metrics  map[string]*Metrics
	onChange func(endpoint string, metrics Metrics)
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{metrics: make(map[string]*Metrics)}
}

// SetOnChange registers a callback invoked after every recorded call with a
// snapshot of that endpoint's metrics.
func (m *MetricsCollector) SetOnChange(fn func(endpoint string, metrics Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onChange = fn
}

// GetMetrics returns a snapshot for an endpoint such as "GET /leads/{id}",
// or nil if it was never called.
func (m *MetricsCollector) GetMetrics(endpoint string) *Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics, ok := m.metrics[endpoint]
	if !ok {
		return nil
	}

	snapshot := *metrics

	return &snapshot
}

// Endpoints returns the endpoints seen so far in sorted order.
func (m *MetricsCollector) Endpoints() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	endpoints := make([]string, 0, len(m.metrics))
	for endpoint := range m.metrics {
		endpoints = append(endpoints, endpoint)
	}

	slices.Sort(endpoints)

	return endpoints
}

func (m *MetricsCollector) record(endpoint string, latency time.Duration, resp *Response) {
	m.mu.Lock()

	metrics, ok := m.metrics[endpoint]
	if !ok {
		metrics = &Metrics{}
		m.metrics[endpoint] = metrics
	}

	metrics.TotalRequests++
	metrics.LastRequestTime = time.Now()

	if latency > 0 {
		metrics.TotalLatency += latency
		metrics.AverageLatency = metrics.TotalLatency / time.Duration(metrics.TotalRequests)
	}

	if resp.Error != nil || resp.StatusCode >= http.StatusBadRequest {
		metrics.TotalErrors++
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.Throttled++
	}

	snapshot := *metrics
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(endpoint, snapshot)
	}
}

const metricsStartKey = "metrics_start"

// MetricsRequestInterceptor stamps the request start time.
func MetricsRequestInterceptor(collector *MetricsCollector) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}

		req.Metadata[metricsStartKey] = time.Now()

		return nil
	}
}

// MetricsResponseInterceptor records the call in collector.
func MetricsResponseInterceptor(collector *MetricsCollector) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		var latency time.Duration

		if start, ok := req.Metadata[metricsStartKey].(time.Time); ok {
			latency = time.Since(start)
		}

		collector.record(EndpointName(req.Method, req.Path), latency, resp)

		return nil
	}
}

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	Threshold        int           // consecutive failures that open the circuit
	Timeout          time.Duration // how long the circuit stays open
	SuccessThreshold int           // successes in half-open state that close it
}

// CircuitBreaker stops calling amoCRM after repeated server errors or rate
// limit responses. amoCRM blocks integrations that keep sending requests
// past the limit, so 429 counts as a failure here.
type CircuitBreaker struct {
	mu        sync.Mutex
	config    CircuitBreakerConfig
	failures  int
	successes int
	state     CircuitState
	openedAt  time.Time
}

// NewCircuitBreaker creates a closed breaker. A nil config uses the package
// defaults.
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	breaker := &CircuitBreaker{
		config: CircuitBreakerConfig{
			Threshold:        constants.CircuitBreakerThreshold,
			Timeout:          constants.CircuitBreakerTimeout,
			SuccessThreshold: constants.CircuitBreakerSuccessThreshold,
		},
	}

	if config != nil {
		breaker.config = *config
	}

	return breaker
}

func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

func (b *CircuitBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != CircuitOpen {
		return nil
	}

	if time.Since(b.openedAt) <= b.config.Timeout {
		return ErrCircuitBreakerOpen
	}

	b.state = CircuitHalfOpen
	b.successes = 0

	return nil
}

func (b *CircuitBreaker) observe(resp *Response) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := (resp.Error != nil && resp.StatusCode == 0) ||
		resp.StatusCode >= http.StatusInternalServerError ||
		resp.StatusCode == http.StatusTooManyRequests

	if failed {
		b.failures++

		if b.state == CircuitHalfOpen || b.failures >= b.config.Threshold {
			b.state = CircuitOpen
			b.openedAt = time.Now()
		}

		return
	}

	switch b.state {
	case CircuitHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = CircuitClosed
			b.failures = 0
		}
	case CircuitClosed:
		b.failures = 0
	case CircuitOpen:
	}
}

// CircuitBreakerRequestInterceptor rejects requests with
// ErrCircuitBreakerOpen while the circuit is open.
func CircuitBreakerRequestInterceptor(breaker *CircuitBreaker) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		return breaker.allow()
	}
}

// CircuitBreakerResponseInterceptor feeds responses into breaker.
func CircuitBreakerResponseInterceptor(breaker *CircuitBreaker) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		breaker.observe(resp)

		return nil
	}
}
