package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/sprest/internal/constants"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Static errors for err113 compliance.
var (
	ErrNoValidCredentials = errors.New("no valid credentials available")
	ErrStaticTokenRefresh = errors.New("static token cannot be refreshed")
)

// TokenManager supplies bearer tokens to the HTTP layer.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// OAuth2Config configures an OAuth2TokenManager.
type OAuth2Config struct {
	// TokenURL is the token endpoint, e.g.
	// https://login.microsoftonline.com/{tenant}/oauth2/v2.0/token.
	TokenURL     string
	ClientID     string
	ClientSecret string
	// Scopes requested with every grant, e.g. https://contoso.sharepoint.com/.default.
	Scopes []string
	// Resource is sent as the "resource" parameter for endpoints that still
	// use it, such as the ACS app-only endpoint.
	Resource string

	Username string
	Password string

	AccessToken  string
	RefreshToken string

	// HTTPClient is used for token requests.
	HTTPClient *http.Client
}

// OAuth2TokenManager obtains and renews tokens. A refresh token is preferred
// over the password grant, which is preferred over client credentials.
type OAuth2TokenManager struct {
	config *OAuth2Config
	store  *TokenStore
	mu     sync.Mutex
}

// NewOAuth2TokenManager creates a manager. A configured AccessToken is used
// until it is rejected or refreshed.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	if config == nil {
		config = &OAuth2Config{}
	}

	manager := &OAuth2TokenManager{
		config: config,
		store:  NewTokenStore(),
	}

	if config.AccessToken != "" {
		manager.store.Set(&Token{
			AccessToken:  config.AccessToken,
			RefreshToken: config.RefreshToken,
			TokenType:    "bearer",
		})
	}

	return manager
}

// NewAzureADTokenManager creates a client credentials manager against the
// v2 endpoint of tenant, scoped to the SharePoint resource of siteURL.
func NewAzureADTokenManager(tenant, clientID, clientSecret, siteURL string) (*OAuth2TokenManager, error) {
	site, err := url.Parse(siteURL)
	if err != nil || site.Host == "" {
		return nil, fmt.Errorf("parsing site URL %q: %w", siteURL, ErrNoValidCredentials)
	}

	return NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     AzureADTokenURL(tenant),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{site.Scheme + "://" + site.Host + "/.default"},
	}), nil
}

// AzureADTokenURL returns the v2 token endpoint of tenant.
func AzureADTokenURL(tenant string) string {
	return fmt.Sprintf(constants.AzureADTokenURLFormat, strings.Trim(tenant, "/"))
}

// GetToken returns a valid access token, obtaining a new one if needed.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if token.Valid() {
		return token.AccessToken, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have renewed the token while we waited.
	token = m.store.Get()
	if token.Valid() {
		return token.AccessToken, nil
	}

	err := m.renew(ctx, token)
	if err != nil {
		return "", err
	}

	return m.store.Get().AccessToken, nil
}

// RefreshToken obtains a new token regardless of the current one.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.renew(ctx, m.store.Get())
}

// SetToken stores a token obtained elsewhere.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	refreshToken := m.config.RefreshToken
	if current := m.store.Get(); current != nil && current.RefreshToken != "" {
		refreshToken = current.RefreshToken
	}

	m.store.Set(&Token{
		AccessToken:  token,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
	})
}

// Current returns the stored token or nil.
func (m *OAuth2TokenManager) Current() *Token {
	return m.store.Get()
}

func (m *OAuth2TokenManager) renew(ctx context.Context, current *Token) error {
	refreshToken := m.config.RefreshToken
	if current != nil && current.RefreshToken != "" {
		refreshToken = current.RefreshToken
	}

	if m.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.config.HTTPClient)
	} else {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: constants.ShortHTTPTimeout})
	}

	var (
		token *oauth2.Token
		err   error
	)

	switch {
	case m.config.TokenURL == "":
		return ErrNoValidCredentials
	case refreshToken != "":
		token, err = m.oauth2Config().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	case m.config.Username != "" && m.config.Password != "":
		token, err = m.oauth2Config().PasswordCredentialsToken(ctx, m.config.Username, m.config.Password)
	case m.config.ClientID != "" && m.config.ClientSecret != "":
		token, err = m.clientCredentialsConfig().Token(ctx)
	default:
		return ErrNoValidCredentials
	}

	if err != nil {
		return fmt.Errorf("requesting token from %s: %w", m.config.TokenURL, err)
	}

	stored := &Token{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    int(token.ExpiresIn),
		ExpiresAt:    token.Expiry,
	}

	// Refresh responses may omit the refresh token; keep the old one.
	if stored.RefreshToken == "" {
		stored.RefreshToken = refreshToken
	}

	m.store.Set(stored)

	return nil
}

func (m *OAuth2TokenManager) endpointParams() url.Values {
	if m.config.Resource == "" {
		return nil
	}

	return url.Values{"resource": []string{m.config.Resource}}
}

func (m *OAuth2TokenManager) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.config.ClientID,
		ClientSecret: m.config.ClientSecret,
		Scopes:       m.config.Scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL:  m.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (m *OAuth2TokenManager) clientCredentialsConfig() *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:       m.config.ClientID,
		ClientSecret:   m.config.ClientSecret,
		TokenURL:       m.config.TokenURL,
		Scopes:         m.config.Scopes,
		EndpointParams: m.endpointParams(),
		AuthStyle:      oauth2.AuthStyleInHeader,
	}
}

// StaticTokenManager returns a fixed token, e.g. one handed over by an app
// launch or copied from a browser session.
type StaticTokenManager struct {
	mu    sync.RWMutex
	token string
}

// NewStaticTokenManager creates a manager for token.
func NewStaticTokenManager(token string) *StaticTokenManager {
	return &StaticTokenManager{token: token}
}

// GetToken returns the token.
func (m *StaticTokenManager) GetToken(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == "" {
		return "", ErrNoValidCredentials
	}

	return m.token, nil
}

// RefreshToken always fails: a static token has no renewal source.
func (m *StaticTokenManager) RefreshToken(context.Context) error {
	return ErrStaticTokenRefresh
}

// SetToken replaces the token. expiresAt is ignored.
func (m *StaticTokenManager) SetToken(token string, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
}
