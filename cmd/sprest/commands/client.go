package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fivetwenty-io/sprest/internal/auth"
	"github.com/fivetwenty-io/sprest/internal/client"
	"github.com/fivetwenty-io/sprest/internal/constants"
	"github.com/fivetwenty-io/sprest/pkg/spclient"
	"github.com/fivetwenty-io/sprest/pkg/sprest"
	"github.com/spf13/viper"
)

// session is a client bound to one configured site.
type session struct {
	client    sprest.Client
	siteKey   string
	publisher *sprest.NATSPublisher
}

// Close releases the change event connection, if any.
func (s *session) Close() {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
}

// createClient builds a client for the resolved site. A --token flag wins
// over stored client credentials, which win over a stored token.
func createClient(ctx context.Context) (*session, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}

	key, site, err := resolveSite(config, viper.GetString("site"))
	if err != nil {
		return nil, err
	}

	logger := newLogger()

	spConfig := &sprest.Config{
		SiteURL:      site.URL,
		HostWebURL:   site.HostWebURL,
		Debug:        viper.GetBool("verbose"),
		Logger:       logger,
		UserAgent:    "sprest-cli",
		Interceptors: newInterceptors(ctx),
	}

	current := &session{siteKey: key}

	if natsURL := viper.GetString("nats_url"); natsURL != "" {
		publisher, err := sprest.NewNATSPublisher(&sprest.NATSConfig{
			URL:           natsURL,
			SubjectPrefix: viper.GetString("nats_subject_prefix"),
			Name:          "sprest-cli",
			Timeout:       constants.ShortHTTPTimeout,
		})
		if err != nil {
			return nil, err
		}

		current.publisher = publisher
		spConfig.Events = publisher
	}

	current.client, err = newSiteClient(ctx, spConfig, key, site)
	if err != nil {
		current.Close()

		return nil, err
	}

	return current, nil
}

func newSiteClient(ctx context.Context, spConfig *sprest.Config, key string, site *SiteConfig) (sprest.Client, error) {
	if token := viper.GetString("token"); token != "" {
		spConfig.AccessToken = token

		return spclient.New(ctx, spConfig)
	}

	if site.ClientID != "" && site.ClientSecret != "" {
		manager, err := createTokenManager(ctx, key, site, spConfig.Logger)
		if err != nil {
			return nil, err
		}

		spClient, err := client.NewWithTokenManager(spConfig, manager)
		if err != nil {
			return nil, fmt.Errorf("failed to create client with token manager: %w", err)
		}

		return spClient, nil
	}

	if site.Token != "" {
		if site.TokenExpiresAt != nil && time.Now().After(*site.TokenExpiresAt) {
			return nil, fmt.Errorf("%w: stored token expired at %s", constants.ErrNotAuthenticated, site.TokenExpiresAt.Format(time.RFC3339))
		}

		spConfig.AccessToken = site.Token

		return spclient.New(ctx, spConfig)
	}

	return nil, constants.ErrNotAuthenticated
}

// createTokenManager returns a token manager that writes renewed tokens
// back to the configuration file.
func createTokenManager(ctx context.Context, key string, site *SiteConfig, logger sprest.Logger) (auth.TokenManager, error) {
	tokenURL := site.TokenURL
	if tokenURL == "" {
		discovered, err := spclient.DiscoverTokenURL(ctx, site.URL)
		if err != nil {
			return nil, err
		}

		tokenURL = discovered
	}

	oauthConfig := &auth.OAuth2Config{
		TokenURL:     tokenURL,
		ClientID:     site.ClientID,
		ClientSecret: site.ClientSecret,
		Scopes:       client.DefaultScopes(site.URL),
	}

	var expiry time.Time
	if site.TokenExpiresAt != nil {
		expiry = *site.TokenExpiresAt
	}

	return auth.NewConfigTokenManager(oauthConfig, NewConfigPersister(), key, site.Token, expiry, logger), nil
}

func newInterceptors(ctx context.Context) *sprest.InterceptorChain {
	chain := sprest.NewInterceptorChain()
	chain.AddRequestInterceptor(sprest.RateLimitInterceptor(ctx, constants.DefaultRateLimit))

	return chain
}
