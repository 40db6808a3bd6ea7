package commands

import (
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/sprest/internal/constants"
)

// ConfigPersister implements the auth.ConfigPersister interface.
type ConfigPersister struct {
	mutex sync.Mutex
}

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{}
}

// UpdateSiteToken stores a renewed token of the site named siteKey.
func (p *ConfigPersister) UpdateSiteToken(siteKey, token string, expiresAt time.Time, refreshToken string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config, err := loadConfig()
	if err != nil {
		return err
	}

	site, exists := config.Sites[siteKey]
	if !exists {
		return fmt.Errorf("site configuration for '%s': %w", siteKey, constants.ErrSiteNotFound)
	}

	site.Token = token
	if !expiresAt.IsZero() {
		site.TokenExpiresAt = &expiresAt
	}

	if refreshToken != "" {
		site.RefreshToken = refreshToken
	}

	now := time.Now()
	site.LastRefreshed = &now

	return saveConfigStruct(config)
}
