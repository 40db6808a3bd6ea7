package sprest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error kinds surfaced by list, search and user operations. Transport
// failures are returned unmodified, usually as a *ResponseError.
var (
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrBadResponse      = errors.New("bad response")
)

// Static errors for err113 compliance.
var (
	ErrConfigRequired       = errors.New("config is required")
	ErrSiteURLRequired      = errors.New("site URL is required")
	ErrTransportRequired    = errors.New("transport is required")
	ErrCircuitBreakerOpen   = errors.New("circuit breaker is open")
	ErrItemNotOwnedByList   = errors.New("item is not an instance of this list")
	ErrRealmDiscoveryFailed = errors.New("realm discovery request failed")
	ErrNoRealmInChallenge   = errors.New("no realm in WWW-Authenticate challenge")
)

// ResponseError is the OData error envelope returned with non-2xx responses.
//
//	{"error":{"code":"-2130575338, Microsoft.SharePoint.SPException","message":{"lang":"en-US","value":"..."}}}
type ResponseError struct {
	StatusCode int    `json:"-"       yaml:"status_code"`
	Code       string `json:"code"    yaml:"code"`
	Message    string `json:"message" yaml:"message"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if e.Message == "" && e.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}

	if e.Code == "" {
		return fmt.Sprintf("%s (status: %d)", e.Message, e.StatusCode)
	}

	return fmt.Sprintf("%s: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

type odataErrorEnvelope struct {
	Error *struct {
		Code    string          `json:"code"`
		Message json.RawMessage `json:"message"`
	} `json:"error"`
	// JSON light responses use "odata.error".
	LightError *struct {
		Code    string          `json:"code"`
		Message json.RawMessage `json:"message"`
	} `json:"odata.error"`
}

// ParseResponseError builds a ResponseError from a response body. Bodies that
// are not OData error envelopes still produce an error carrying the status.
func ParseResponseError(statusCode int, data []byte) *ResponseError {
	respErr := &ResponseError{StatusCode: statusCode}

	var envelope odataErrorEnvelope

	err := json.Unmarshal(data, &envelope)
	if err != nil {
		respErr.Message = http.StatusText(statusCode)

		return respErr
	}

	inner := envelope.Error
	if inner == nil {
		inner = envelope.LightError
	}

	if inner == nil {
		respErr.Message = http.StatusText(statusCode)

		return respErr
	}

	respErr.Code = inner.Code
	respErr.Message = decodeErrorMessage(inner.Message)

	return respErr
}

// decodeErrorMessage accepts both {"lang","value"} objects and bare strings.
func decodeErrorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var message struct {
		Value string `json:"value"`
	}

	if json.Unmarshal(raw, &message) == nil && message.Value != "" {
		return message.Value
	}

	var text string
	if json.Unmarshal(raw, &text) == nil {
		return text
	}

	return string(raw)
}

func hasStatus(err error, status int) bool {
	respErr := &ResponseError{}
	if errors.As(err, &respErr) {
		return respErr.StatusCode == status
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

// IsForbidden checks if the error is a forbidden error.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsPreconditionFailed reports an optimistic concurrency conflict: the item
// changed on the server since its ETag was read.
func IsPreconditionFailed(err error) bool {
	return hasStatus(err, http.StatusPreconditionFailed)
}

// IsInvalidArguments checks if the error was raised before any request was sent.
func IsInvalidArguments(err error) bool {
	return errors.Is(err, ErrInvalidArguments)
}

// IsBadResponse checks if the server answered with a payload of the wrong shape.
func IsBadResponse(err error) bool {
	return errors.Is(err, ErrBadResponse)
}
