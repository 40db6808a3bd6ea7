package sprest

import (
	"context"
	"net/http"
)

// Transport executes built requests. Implementations add the site address,
// authentication and request digests, and retry transient failures.
type Transport interface {
	Do(ctx context.Context, req *RequestDescriptor) (*TransportResponse, error)
}

// TransportResponse is a completed HTTP exchange.
type TransportResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *RequestDescriptor) (*TransportResponse, error)

// Do implements Transport.
func (f TransportFunc) Do(ctx context.Context, req *RequestDescriptor) (*TransportResponse, error) {
	return f(ctx, req)
}
