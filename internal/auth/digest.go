package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/sprest/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrNoDigestInResponse = errors.New("no form digest in context info response")
)

// ContextInfoFetcher posts to /_api/contextinfo and returns the response body.
type ContextInfoFetcher func(ctx context.Context) ([]byte, error)

// contextInfo covers both the verbose and the light JSON shape.
type contextInfo struct {
	D *struct {
		Info *contextWebInformation `json:"GetContextWebInformation"`
	} `json:"d"`
	contextWebInformation
}

type contextWebInformation struct {
	FormDigestValue          string `json:"FormDigestValue"`
	FormDigestTimeoutSeconds int    `json:"FormDigestTimeoutSeconds"`
}

// DigestManager caches the form digest that SharePoint requires on every
// write request.
type DigestManager struct {
	fetch ContextInfoFetcher
	now   func() time.Time

	mu        sync.Mutex
	digest    string
	expiresAt time.Time
}

// NewDigestManager creates a manager that fetches digests with fetch.
func NewDigestManager(fetch ContextInfoFetcher) *DigestManager {
	return &DigestManager{fetch: fetch, now: time.Now}
}

// Digest returns a cached digest or fetches a new one.
func (m *DigestManager) Digest(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.digest != "" && m.now().Before(m.expiresAt) {
		return m.digest, nil
	}

	body, err := m.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching request digest: %w", err)
	}

	digest, lifetime, err := ParseContextInfo(body)
	if err != nil {
		return "", err
	}

	ttl := lifetime - constants.DigestExpirationBuffer
	if ttl <= 0 {
		ttl = lifetime / 2
	}

	m.digest = digest
	m.expiresAt = m.now().Add(ttl)

	return digest, nil
}

// Invalidate drops the cached digest, e.g. after SharePoint rejected it.
func (m *DigestManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.digest = ""
	m.expiresAt = time.Time{}
}

// ParseContextInfo extracts the form digest and its lifetime from a
// contextinfo response.
func ParseContextInfo(body []byte) (string, time.Duration, error) {
	var info contextInfo

	err := json.Unmarshal(body, &info)
	if err != nil {
		return "", 0, fmt.Errorf("decoding context info: %w", err)
	}

	web := info.contextWebInformation
	if info.D != nil && info.D.Info != nil {
		web = *info.D.Info
	}

	if web.FormDigestValue == "" {
		return "", 0, ErrNoDigestInResponse
	}

	lifetime := time.Duration(web.FormDigestTimeoutSeconds) * time.Second
	if lifetime <= 0 {
		lifetime = constants.DefaultDigestLifetime
	}

	return web.FormDigestValue, lifetime, nil
}
