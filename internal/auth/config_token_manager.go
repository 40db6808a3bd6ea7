package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/sprest/pkg/sprest"
)

// Static errors for err113 compliance.
var (
	ErrNoConfigPersister = errors.New("no config persister configured")
)

// ConfigPersister defines the interface for persisting config changes.
type ConfigPersister interface {
	UpdateSiteToken(siteURL, token string, expiresAt time.Time, refreshToken string) error
}

// ConfigTokenManager wraps OAuth2TokenManager and persists every renewed
// token for the site it authenticates against.
type ConfigTokenManager struct {
	oauth2Manager   *OAuth2TokenManager
	configPersister ConfigPersister
	siteURL         string
	logger          sprest.Logger
	mutex           sync.Mutex
	lastToken       string
	lastExpiry      time.Time
}

// NewConfigTokenManager creates a new config-persisting token manager.
// initialToken, when set, is used until it expires.
func NewConfigTokenManager(config *OAuth2Config, configPersister ConfigPersister, siteURL string, initialToken string, initialExpiry time.Time, logger sprest.Logger) *ConfigTokenManager {
	oauth2Manager := NewOAuth2TokenManager(config)

	if initialToken != "" {
		oauth2Manager.SetToken(initialToken, initialExpiry)
	}

	if logger == nil {
		logger = sprest.NopLogger{}
	}

	return &ConfigTokenManager{
		oauth2Manager:   oauth2Manager,
		configPersister: configPersister,
		siteURL:         siteURL,
		logger:          logger,
		lastToken:       initialToken,
		lastExpiry:      initialExpiry,
	}
}

// GetToken returns a valid access token, renewing and persisting it if
// necessary.
func (m *ConfigTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	token, err := m.oauth2Manager.GetToken(ctx)
	if err != nil {
		return "", err
	}

	m.persistIfChanged()

	return token, nil
}

// RefreshToken forces a token renewal and persists the result.
func (m *ConfigTokenManager) RefreshToken(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	err := m.oauth2Manager.RefreshToken(ctx)
	if err != nil {
		return err
	}

	m.persistIfChanged()

	return nil
}

// SetToken manually sets the access token without persisting it.
func (m *ConfigTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.oauth2Manager.SetToken(token, expiresAt)
	m.lastToken = token
	m.lastExpiry = expiresAt
}

// IsTokenExpiringSoon returns true if the token expires within the given duration.
func (m *ConfigTokenManager) IsTokenExpiringSoon(within time.Duration) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	token := m.oauth2Manager.Current()
	if token == nil {
		return true
	}

	if token.ExpiresAt.IsZero() {
		return false
	}

	return time.Now().Add(within).After(token.ExpiresAt)
}

// GetTokenExpiry returns the current token's expiration time.
func (m *ConfigTokenManager) GetTokenExpiry() time.Time {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	token := m.oauth2Manager.Current()
	if token == nil {
		return time.Time{}
	}

	return token.ExpiresAt
}

// persistIfChanged must be called with m.mutex held. Persist failures are
// logged and never fail the request.
func (m *ConfigTokenManager) persistIfChanged() {
	current := m.oauth2Manager.Current()
	if current == nil {
		return
	}

	if current.AccessToken == m.lastToken && current.ExpiresAt.Equal(m.lastExpiry) {
		return
	}

	err := m.persistToken(current)
	if err != nil {
		m.logger.Warn("failed to persist refreshed token", map[string]interface{}{
			"site":  m.siteURL,
			"error": err.Error(),
		})
	}

	m.lastToken = current.AccessToken
	m.lastExpiry = current.ExpiresAt
}

// persistToken saves the token to config.
func (m *ConfigTokenManager) persistToken(token *Token) error {
	if m.configPersister == nil {
		return ErrNoConfigPersister
	}

	err := m.configPersister.UpdateSiteToken(m.siteURL, token.AccessToken, token.ExpiresAt, token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to update site token: %w", err)
	}

	return nil
}
