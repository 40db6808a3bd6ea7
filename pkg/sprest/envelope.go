package sprest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	envelopeKey = "d"
	resultsKey  = "results"
)

// ResponseTransform turns a raw response body into the payload merged into
// results.
type ResponseTransform func(body []byte) (any, error)

// UnwrapResponse decodes a verbose OData body and strips the "d" envelope
// and then the "results" collection wrapper when present. An empty body
// yields an empty object.
func UnwrapResponse(body []byte) (any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}

	var data any

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	err := decoder.Decode(&data)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding response body: %w", ErrBadResponse, err)
	}

	_, err = decoder.Token()
	if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after response body", ErrBadResponse)
	}

	return unwrapEnvelope(data), nil
}

func unwrapEnvelope(data any) any {
	if object, ok := data.(map[string]any); ok {
		if inner, found := object[envelopeKey]; found {
			data = inner
		}
	}

	if object, ok := data.(map[string]any); ok {
		if inner, found := object[resultsKey]; found {
			data = inner
		}
	}

	if data == nil {
		return map[string]any{}
	}

	return data
}
