package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/sprest/internal/auth"
	"github.com/fivetwenty-io/sprest/internal/constants"
	sphttp "github.com/fivetwenty-io/sprest/internal/http"
	"github.com/fivetwenty-io/sprest/pkg/sprest"
)

// Signer turns request descriptors into signed REST calls against one site.
// It resolves addresses below /_api/, encodes the query, attaches the form
// digest to writes and routes host web requests through SP.AppContextSite.
type Signer struct {
	httpClient *sphttp.Client
	digests    *auth.DigestManager
	hostWebURL string
	logger     sprest.Logger
}

// NewSigner creates a signer. digests may be nil for read-only use.
func NewSigner(httpClient *sphttp.Client, digests *auth.DigestManager, hostWebURL string, logger sprest.Logger) *Signer {
	if logger == nil {
		logger = sprest.NopLogger{}
	}

	return &Signer{
		httpClient: httpClient,
		digests:    digests,
		hostWebURL: strings.TrimSuffix(hostWebURL, "/"),
		logger:     logger,
	}
}

// Do implements sprest.Transport.
func (s *Signer) Do(ctx context.Context, desc *sprest.RequestDescriptor) (*sprest.TransportResponse, error) {
	address, rawQuery, _ := strings.Cut(desc.URL, "?")

	if desc.HostWeb {
		if s.hostWebURL == "" {
			return nil, fmt.Errorf("%w: host web URL is not configured", sprest.ErrInvalidArguments)
		}

		address = fmt.Sprintf(constants.HostWebAddressFormat, strings.TrimPrefix(address, "/"))
		rawQuery = joinQuery(rawQuery, constants.HostWebTargetParam+"='"+strings.ReplaceAll(s.hostWebURL, "'", "''")+"'")
	}

	headers := make(map[string]string, len(desc.Headers)+1)
	for key := range desc.Headers {
		headers[key] = desc.Headers.Get(key)
	}

	signed := false

	if desc.Method != http.MethodGet && s.digests != nil {
		digest, err := s.digests.Digest(ctx)
		if err != nil {
			return nil, err
		}

		headers[sprest.HeaderRequestDigest] = digest
		signed = true
	}

	req := &sphttp.Request{
		Method:   desc.Method,
		Path:     APIPath(address),
		RawQuery: EncodeQuery(rawQuery),
		Headers:  headers,
	}

	if len(desc.Body) > 0 {
		req.Body = desc.Body
	}

	resp, err := s.httpClient.Do(ctx, req)
	if err != nil {
		// An expired or foreign digest is answered with 403.
		if signed && sprest.IsForbidden(err) {
			s.logger.Debug("discarding request digest after 403", map[string]interface{}{
				"url": desc.URL,
			})
			s.digests.Invalidate()
		}

		return nil, err
	}

	return &sprest.TransportResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}, nil
}

// APIPath resolves a REST address below /_api/ and escapes it for use as a
// URL path.
func APIPath(address string) string {
	path := constants.APIPathPrefix + strings.TrimPrefix(address, "/")

	return (&url.URL{Path: path}).EscapedPath()
}

// EncodeQuery percent-encodes the values of a raw "k=v&k=v" query. Keys are
// kept as written so OData options such as $select and aliases such as @v
// stay readable. Ampersands inside quoted literals do not split pairs.
func EncodeQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	pairs := splitQuery(rawQuery)
	encoded := make([]string, 0, len(pairs))

	for _, pair := range pairs {
		if pair == "" {
			continue
		}

		key, value, found := strings.Cut(pair, "=")
		if !found {
			encoded = append(encoded, key)

			continue
		}

		encoded = append(encoded, key+"="+strings.ReplaceAll(url.QueryEscape(value), "+", "%20"))
	}

	return strings.Join(encoded, "&")
}

func splitQuery(rawQuery string) []string {
	var (
		pairs  []string
		quoted bool
		start  int
	)

	for i := range len(rawQuery) {
		switch rawQuery[i] {
		case '\'':
			quoted = !quoted
		case '&':
			if !quoted {
				pairs = append(pairs, rawQuery[start:i])
				start = i + 1
			}
		}
	}

	return append(pairs, rawQuery[start:])
}

func joinQuery(rawQuery, pair string) string {
	if rawQuery == "" {
		return pair
	}

	return rawQuery + "&" + pair
}
