package sprest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Request is an outgoing HTTP request as seen by interceptors.
type Request struct {
	Method   string
	Path     string
	Headers  http.Header
	Body     []byte
	Metadata map[string]interface{}
}

// Response is a completed HTTP exchange as seen by interceptors.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Error      error
}

// RequestInterceptor is called before a request is sent.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor is called after a response is received.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response) error

// InterceptorChain manages a chain of interceptors.
type InterceptorChain struct {
	mu                   sync.RWMutex
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

// NewInterceptorChain creates a new interceptor chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{
		requestInterceptors:  make([]RequestInterceptor, 0),
		responseInterceptors: make([]ResponseInterceptor, 0),
	}
}

// AddRequestInterceptor adds a request interceptor to the chain.
func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestInterceptors = append(c.requestInterceptors, interceptor)
}

// AddResponseInterceptor adds a response interceptor to the chain.
func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.responseInterceptors = append(c.responseInterceptors, interceptor)
}

// ExecuteRequestInterceptors runs all request interceptors in order.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, req *Request) error {
	c.mu.RLock()
	interceptors := c.requestInterceptors
	c.mu.RUnlock()

	for _, interceptor := range interceptors {
		err := interceptor(ctx, req)
		if err != nil {
			return fmt.Errorf("request interceptor failed: %w", err)
		}
	}

	return nil
}

// ExecuteResponseInterceptors runs all response interceptors in order.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, req *Request, resp *Response) error {
	c.mu.RLock()
	interceptors := c.responseInterceptors
	c.mu.RUnlock()

	for _, interceptor := range interceptors {
		err := interceptor(ctx, req, resp)
		if err != nil {
			return fmt.Errorf("response interceptor failed: %w", err)
		}
	}

	return nil
}

// LoggingInterceptor logs requests.
func LoggingInterceptor(logger Logger) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		logger.Debug("SharePoint request", map[string]interface{}{
			"method":      req.Method,
			"path":        req.Path,
			"http_method": req.Headers.Get(HeaderHTTPMethod),
		})

		return nil
	}
}

// LoggingResponseInterceptor logs responses.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		fields := map[string]interface{}{
			"method":      req.Method,
			"path":        req.Path,
			"status_code": resp.StatusCode,
		}

		if resp.Error != nil || resp.StatusCode >= http.StatusBadRequest {
			logger.Error("SharePoint response error", fields)
		} else {
			logger.Debug("SharePoint response", fields)
		}

		return nil
	}
}

// HeaderInterceptor adds fixed headers to every request.
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

// RateLimitInterceptor allows at most requestsPerSecond requests per second.
// SharePoint Online throttles clients that exceed their quota with 429s.
// The refill goroutine stops when ctx is done.
func RateLimitInterceptor(ctx context.Context, requestsPerSecond int) RequestInterceptor {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}

	bucket := make(chan struct{}, requestsPerSecond)

	for range requestsPerSecond {
		bucket <- struct{}{}
	}

	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(requestsPerSecond))
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case bucket <- struct{}{}:
				default:
				}
			}
		}
	}()

	return func(reqCtx context.Context, req *Request) error {
		select {
		case <-bucket:
			return nil
		case <-reqCtx.Done():
			return reqCtx.Err()
		}
	}
}

// Metrics aggregates calls to one endpoint.
type Metrics struct {
	TotalRequests   int64
	TotalErrors     int64
	TotalLatency    time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time
}

// MetricsCollector collects per-endpoint metrics in memory.
type MetricsCollector struct {
	mu       sync.Mutex
	metrics  map[string]*Metrics
	onChange func(endpoint string, metrics Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*Metrics),
	}
}

// SetOnChange sets a callback invoked with a snapshot after each update.
func (m *MetricsCollector) SetOnChange(fn func(endpoint string, metrics Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onChange = fn
}

// GetMetrics returns a snapshot for an endpoint, or nil when it was never called.
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

// EndpointKey identifies an endpoint as "METHOD path" with the query removed.
// Tunneled verbs (X-HTTP-Method) replace the wire method.
func EndpointKey(req *Request) string {
	method := req.Method
	if tunneled := req.Headers.Get(HeaderHTTPMethod); tunneled != "" {
		method = tunneled
	}

	path, _, _ := strings.Cut(req.Path, "?")

	return method + " " + path
}

const startTimeKey = "start_time"

// MetricsRequestInterceptor records the request start time.
func MetricsRequestInterceptor(collector *MetricsCollector) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}

		req.Metadata[startTimeKey] = time.Now()

		return nil
	}
}

// MetricsResponseInterceptor records response metrics.
func MetricsResponseInterceptor(collector *MetricsCollector) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		endpoint := EndpointKey(req)

		collector.mu.Lock()

		metrics, ok := collector.metrics[endpoint]
		if !ok {
			metrics = &Metrics{}
			collector.metrics[endpoint] = metrics
		}

		metrics.TotalRequests++
		metrics.LastRequestTime = time.Now()

		if startTime, ok := req.Metadata[startTimeKey].(time.Time); ok {
			metrics.TotalLatency += time.Since(startTime)
			metrics.AverageLatency = metrics.TotalLatency / time.Duration(metrics.TotalRequests)
		}

		if resp.Error != nil || resp.StatusCode >= http.StatusBadRequest {
			metrics.TotalErrors++
		}

		snapshot := *metrics
		onChange := collector.onChange

		collector.mu.Unlock()

		if onChange != nil {
			onChange(endpoint, snapshot)
		}

		return nil
	}
}

// Circuit breaker states.
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half-open"
)

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	Threshold        int           // failures before opening
	Timeout          time.Duration // time before trying again
	SuccessThreshold int           // successes in half-open state before closing
}

// CircuitBreaker stops sending requests after repeated server failures.
type CircuitBreaker struct {
	mu          sync.Mutex
	config      *CircuitBreakerConfig
	failures    int
	successes   int
	state       string
	lastFailure time.Time
}

// Default circuit breaker settings.
const (
	DefaultCircuitBreakerThreshold        = 5
	DefaultCircuitBreakerTimeout          = 60 * time.Second
	DefaultCircuitBreakerSuccessThreshold = 2
)

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = &CircuitBreakerConfig{
			Threshold:        DefaultCircuitBreakerThreshold,
			Timeout:          DefaultCircuitBreakerTimeout,
			SuccessThreshold: DefaultCircuitBreakerSuccessThreshold,
		}
	}

	return &CircuitBreaker{
		config: config,
		state:  CircuitClosed,
	}
}

// State returns the current state.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// CircuitBreakerRequestInterceptor rejects requests while the circuit is open.
func CircuitBreakerRequestInterceptor(breaker *CircuitBreaker) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		breaker.mu.Lock()
		defer breaker.mu.Unlock()

		if breaker.state != CircuitOpen {
			return nil
		}

		if time.Since(breaker.lastFailure) <= breaker.config.Timeout {
			return ErrCircuitBreakerOpen
		}

		breaker.state = CircuitHalfOpen
		breaker.successes = 0

		return nil
	}
}

// CircuitBreakerResponseInterceptor updates circuit state from responses.
// Throttling (429) and server errors count as failures.
func CircuitBreakerResponseInterceptor(breaker *CircuitBreaker) ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		breaker.mu.Lock()
		defer breaker.mu.Unlock()

		failed := resp.Error != nil ||
			resp.StatusCode >= http.StatusInternalServerError ||
			resp.StatusCode == http.StatusTooManyRequests

		if failed {
			breaker.failures++
			breaker.lastFailure = time.Now()

			if breaker.failures >= breaker.config.Threshold || breaker.state == CircuitHalfOpen {
				breaker.state = CircuitOpen
			}

			return nil
		}

		switch breaker.state {
		case CircuitHalfOpen:
			breaker.successes++
			if breaker.successes >= breaker.config.SuccessThreshold {
				breaker.state = CircuitClosed
				breaker.failures = 0
			}
		case CircuitClosed:
			breaker.failures = 0
		}

		return nil
	}
}
