package sprest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "sprest"

// PrometheusMetrics exports request counts and latencies. Requests are
// labeled by effective method (tunneled verbs included) and status code.
type PrometheusMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collectors and registers them with
// registerer. A nil registerer skips registration.
func NewPrometheusMetrics(registerer prometheus.Registerer) (*PrometheusMetrics, error) {
	metrics := &PrometheusMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "SharePoint REST requests by method and status code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "SharePoint REST request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	if registerer == nil {
		return metrics, nil
	}

	for _, collector := range []prometheus.Collector{metrics.requests, metrics.duration} {
		err := registerer.Register(collector)
		if err != nil {
			return nil, fmt.Errorf("registering sprest metrics: %w", err)
		}
	}

	return metrics, nil
}

// RequestInterceptor records the request start time.
func (m *PrometheusMetrics) RequestInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Metadata == nil {
			req.Metadata = make(map[string]interface{})
		}

		req.Metadata[startTimeKey] = time.Now()

		return nil
	}
}

// ResponseInterceptor records the outcome of the request.
func (m *PrometheusMetrics) ResponseInterceptor() ResponseInterceptor {
	return func(ctx context.Context, req *Request, resp *Response) error {
		method := req.Method
		if tunneled := req.Headers.Get(HeaderHTTPMethod); tunneled != "" {
			method = tunneled
		}

		code := strconv.Itoa(resp.StatusCode)
		if resp.Error != nil && resp.StatusCode == 0 {
			code = "error"
		}

		m.requests.WithLabelValues(method, code).Inc()

		if startTime, ok := req.Metadata[startTimeKey].(time.Time); ok {
			m.duration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
		}

		return nil
	}
}

// Collectors returns the underlying collectors.
func (m *PrometheusMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.duration}
}
