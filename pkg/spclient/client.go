// Package spclient provides the main entry point for creating SharePoint REST clients
package spclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/fivetwenty-io/sprest/internal/auth"
	"github.com/fivetwenty-io/sprest/internal/client"
	"github.com/fivetwenty-io/sprest/internal/constants"
	"github.com/fivetwenty-io/sprest/pkg/sprest"
)

// New creates a new SharePoint client. When client credentials are set
// without a token URL, the tenant is discovered from the site.
func New(ctx context.Context, config *sprest.Config) (sprest.Client, error) {
	if config == nil {
		return nil, sprest.ErrConfigRequired
	}

	if config.SiteURL == "" {
		return nil, sprest.ErrSiteURLRequired
	}

	normalized := *config
	normalized.SiteURL = NormalizeSiteURL(config.SiteURL)

	if normalized.HostWebURL != "" {
		normalized.HostWebURL = NormalizeSiteURL(normalized.HostWebURL)
	}

	err := normalized.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if needsTokenURL(&normalized) {
		tokenURL, err := DiscoverTokenURL(ctx, normalized.SiteURL)
		if err != nil {
			return nil, fmt.Errorf("discovering token endpoint: %w", err)
		}

		normalized.TokenURL = tokenURL
	}

	client, err := client.New(ctx, &normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return client, nil
}

// NormalizeSiteURL trims trailing slashes and defaults the scheme to https.
func NormalizeSiteURL(siteURL string) string {
	siteURL = strings.TrimRight(strings.TrimSpace(siteURL), "/")
	if !strings.HasPrefix(siteURL, "http://") && !strings.HasPrefix(siteURL, "https://") {
		siteURL = "https://" + siteURL
	}

	return siteURL
}

// needsTokenURL checks if the config authenticates with client credentials
// but names no token endpoint.
func needsTokenURL(config *sprest.Config) bool {
	return config.AccessToken == "" && config.ClientID != "" && config.TokenURL == ""
}

// DiscoverTokenURL asks the site for its tenant realm and returns the Azure
// AD v2 token endpoint of that tenant. SharePoint Online answers a request
// carrying an empty bearer token with a challenge such as
//
//	WWW-Authenticate: Bearer realm="<tenant id>",client_id="00000003-0000-0ff1-ce00-000000000000"
func DiscoverTokenURL(ctx context.Context, siteURL string) (string, error) {
	realm, err := DiscoverRealm(ctx, siteURL)
	if err != nil {
		return "", err
	}

	return auth.AzureADTokenURL(realm), nil
}

// DiscoverRealm returns the tenant realm advertised by siteURL.
func DiscoverRealm(ctx context.Context, siteURL string) (string, error) {
	httpClient := &http.Client{
		Timeout: constants.ShortHTTPTimeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, NormalizeSiteURL(siteURL)+constants.RealmDiscoveryPath, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set(constants.HeaderAuthorization, "Bearer ")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting realm: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			// Log error but don't return it to avoid masking original error
			fmt.Fprintf(os.Stderr, "Warning: failed to close response body: %v\n", err)
		}
	}()

	if resp.StatusCode != http.StatusUnauthorized {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return "", fmt.Errorf("%w with status %d: %s", sprest.ErrRealmDiscoveryFailed, resp.StatusCode, string(body))
	}

	for _, challenge := range resp.Header.Values("WWW-Authenticate") {
		if realm := ParseRealm(challenge); realm != "" {
			return realm, nil
		}
	}

	return "", sprest.ErrNoRealmInChallenge
}

// ParseRealm extracts the realm parameter of a Bearer challenge. It returns
// an empty string for other schemes or when no realm is present.
func ParseRealm(challenge string) string {
	scheme, params, _ := strings.Cut(strings.TrimSpace(challenge), " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	for _, param := range strings.Split(params, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(param), "=")
		if !found || !strings.EqualFold(key, "realm") {
			continue
		}

		return strings.Trim(value, `"`)
	}

	return ""
}

// NewWithSite creates a new client for a site without authentication.
func NewWithSite(ctx context.Context, siteURL string) (sprest.Client, error) {
	return New(ctx, &sprest.Config{
		SiteURL: siteURL,
	})
}

// NewWithToken creates a new client with a site URL and access token.
func NewWithToken(ctx context.Context, siteURL, token string) (sprest.Client, error) {
	return New(ctx, &sprest.Config{
		SiteURL:     siteURL,
		AccessToken: token,
	})
}

// NewWithClientCredentials creates a new client using the OAuth2 client
// credentials grant. The token endpoint is discovered from the site.
func NewWithClientCredentials(ctx context.Context, siteURL, clientID, clientSecret string) (sprest.Client, error) {
	return New(ctx, &sprest.Config{
		SiteURL:      siteURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}
