// Package http is the retrying HTTP layer shared by every SharePoint service.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/sprest/internal/constants"
	"github.com/fivetwenty-io/sprest/pkg/sprest"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// TokenManager supplies bearer tokens.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// Request is a single HTTP request relative to the client's base URL.
type Request struct {
	Method string
	Path   string
	// Query is encoded with url.Values.Encode.
	Query url.Values
	// RawQuery is appended verbatim after Query.
	RawQuery string
	// Body is sent as is when it is a []byte and JSON encoded otherwise.
	Body    interface{}
	Headers map[string]string
}

// Response is a completed HTTP exchange.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client executes requests with retries, bearer authentication and
// interceptors.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	tokenManager TokenManager
	logger       sprest.Logger
	debug        bool
	userAgent    string
	interceptors *sprest.InterceptorChain
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for debug output and retry diagnostics.
func WithLogger(logger sprest.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithRetryConfig sets the retry budget and backoff bounds.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = retryMax
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithTimeout bounds a single HTTP attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.HTTPClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client, e.g. to supply a
// custom transport.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient.HTTPClient = httpClient
		}
	}
}

// WithInterceptors runs chain around every exchange.
func WithInterceptors(chain *sprest.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// NewClient creates a client for baseURL. tokenManager may be nil.
func NewClient(baseURL string, tokenManager TokenManager, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.Logger = nil
	// Return the last response instead of a generic error once retries are
	// exhausted so the OData error envelope can be parsed.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   retryClient,
		tokenManager: tokenManager,
		logger:       sprest.NopLogger{},
		userAgent:    constants.DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.logger == nil {
		client.logger = sprest.NopLogger{}
	}

	client.httpClient.RequestLogHook = client.logRetry

	return client
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes req. Non-2xx responses are returned together with a
// *sprest.ResponseError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, req, body)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.tokenManager != nil {
		refreshErr := c.tokenManager.RefreshToken(ctx)
		if refreshErr == nil {
			resp, err = c.do(ctx, req, body)
			if err != nil {
				return resp, err
			}
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return resp, sprest.ParseResponseError(resp.StatusCode, resp.Body)
	}

	return resp, nil
}

func (c *Client) do(ctx context.Context, req *Request, body []byte) (*Response, error) {
	path := req.Path
	if query := encodeQuery(req); query != "" {
		path += "?" + query
	}

	headers := http.Header{}
	headers.Set(sprest.HeaderAccept, sprest.ContentTypeVerbose)
	headers.Set("User-Agent", c.userAgent)
	headers.Set(constants.HeaderClientRequestID, uuid.NewString())

	if body != nil {
		headers.Set(sprest.HeaderContentType, sprest.ContentTypeVerbose)
	}

	for key, value := range req.Headers {
		headers.Set(key, value)
	}

	observed := &sprest.Request{Method: req.Method, Path: path, Headers: headers, Body: body}

	if c.interceptors != nil {
		err := c.interceptors.ExecuteRequestInterceptors(ctx, observed)
		if err != nil {
			return nil, err
		}
	}

	var rawBody interface{}
	if len(observed.Body) > 0 {
		rawBody = observed.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, observed.Method, c.baseURL+observed.Path, rawBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header = observed.Headers

	if c.tokenManager != nil {
		token, tokenErr := c.tokenManager.GetToken(ctx)
		if tokenErr != nil {
			return nil, fmt.Errorf("getting access token: %w", tokenErr)
		}

		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method":     observed.Method,
			"url":        httpReq.URL.String(),
			"request_id": httpReq.Header.Get(constants.HeaderClientRequestID),
		})
	}

	start := time.Now()

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		_ = c.observeResponse(ctx, observed, &sprest.Response{Error: err})

		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       data,
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status_code": resp.StatusCode,
			"duration":    time.Since(start).String(),
			"body_size":   len(data),
		})
	}

	err = c.observeResponse(ctx, observed, &sprest.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	})
	if err != nil {
		return resp, err
	}

	return resp, nil
}

// logRetry reports every attempt after the first.
func (c *Client) logRetry(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 {
		return
	}

	c.logger.Warn("retrying HTTP request", map[string]interface{}{
		"method":  req.Method,
		"url":     req.URL.Redacted(),
		"attempt": attempt,
	})
}

func (c *Client) observeResponse(ctx context.Context, req *sprest.Request, resp *sprest.Response) error {
	if c.interceptors == nil {
		return nil
	}

	return c.interceptors.ExecuteResponseInterceptors(ctx, req, resp)
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put performs a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch performs a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

func encodeQuery(req *Request) string {
	parts := make([]string, 0, 2)

	if len(req.Query) > 0 {
		parts = append(parts, req.Query.Encode())
	}

	if req.RawQuery != "" {
		parts = append(parts, req.RawQuery)
	}

	return strings.Join(parts, "&")
}

func encodeBody(body interface{}) ([]byte, error) {
	switch typed := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return typed, nil
	case json.RawMessage:
		return typed, nil
	case io.Reader:
		data, err := io.ReadAll(typed)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}

		return data, nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	return bytes.TrimSpace(data), nil
}

// IsTransportError reports whether err happened before a response arrived.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}

	respErr := &sprest.ResponseError{}

	return !errors.As(err, &respErr)
}
