// Package client implements sprest.Client over the retrying HTTP layer.
package client

import (
	"context"
	"net/url"

	"github.com/fivetwenty-io/sprest/internal/auth"
	"github.com/fivetwenty-io/sprest/internal/constants"
	sphttp "github.com/fivetwenty-io/sprest/internal/http"
	"github.com/fivetwenty-io/sprest/pkg/sprest"
)

// Client implements the sprest.Client interface.
type Client struct {
	httpClient   *sphttp.Client
	tokenManager auth.TokenManager
	digests      *auth.DigestManager
	signer       *Signer
	siteURL      string
	logger       sprest.Logger
	events       sprest.EventPublisher

	lists        *listsClient
	search       *sprest.Search
	userProfiles *sprest.UserProfiles
}

// New creates a client, choosing a token manager from the configured
// credentials.
func New(_ context.Context, config *sprest.Config) (*Client, error) {
	if config == nil {
		return nil, sprest.ErrConfigRequired
	}

	return NewWithTokenManager(config, createTokenManager(config))
}

// NewWithTokenManager creates a client that authenticates with
// tokenManager. A nil tokenManager sends unauthenticated requests.
func NewWithTokenManager(config *sprest.Config, tokenManager auth.TokenManager) (*Client, error) {
	if config == nil {
		return nil, sprest.ErrConfigRequired
	}

	if config.SiteURL == "" {
		return nil, sprest.ErrSiteURLRequired
	}

	logger := config.Logger
	if logger == nil {
		logger = sprest.NopLogger{}
	}

	httpClient := sphttp.NewClient(config.SiteURL, tokenManager, createHTTPClientOptions(config, logger)...)

	digests := auth.NewDigestManager(func(ctx context.Context) ([]byte, error) {
		resp, err := httpClient.Post(ctx, constants.ContextInfoPath, nil)
		if err != nil {
			return nil, err
		}

		return resp.Body, nil
	})

	client := &Client{
		httpClient:   httpClient,
		tokenManager: tokenManager,
		digests:      digests,
		signer:       NewSigner(httpClient, digests, config.HostWebURL, logger),
		siteURL:      httpClient.BaseURL(),
		logger:       logger,
		events:       config.Events,
	}

	err := client.initializeServices()
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (c *Client) initializeServices() error {
	search, err := sprest.NewSearch(c.signer, c.logger)
	if err != nil {
		return err
	}

	userProfiles, err := sprest.NewUserProfiles(c.signer, c.logger)
	if err != nil {
		return err
	}

	c.lists = &listsClient{transport: c.signer, logger: c.logger, events: c.events}
	c.search = search
	c.userProfiles = userProfiles

	return nil
}

// createTokenManager creates appropriate token manager based on config.
func createTokenManager(config *sprest.Config) auth.TokenManager {
	if config.AccessToken != "" {
		return auth.NewStaticTokenManager(config.AccessToken)
	}

	if config.ClientID != "" && config.ClientSecret != "" {
		scopes := config.Scopes
		if len(scopes) == 0 {
			scopes = DefaultScopes(config.SiteURL)
		}

		return auth.NewOAuth2TokenManager(&auth.OAuth2Config{
			TokenURL:     config.TokenURL,
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Scopes:       scopes,
		})
	}

	return nil // No authentication
}

// DefaultScopes returns the ".default" scope of the SharePoint host of siteURL.
func DefaultScopes(siteURL string) []string {
	site, err := url.Parse(siteURL)
	if err != nil || site.Host == "" {
		return nil
	}

	return []string{site.Scheme + "://" + site.Host + "/.default"}
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *sprest.Config, logger sprest.Logger) []sphttp.Option {
	httpOpts := []sphttp.Option{sphttp.WithLogger(logger)}

	if config.Debug {
		httpOpts = append(httpOpts, sphttp.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, sphttp.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, sphttp.WithTimeout(config.HTTPTimeout))
	}

	if config.Interceptors != nil {
		httpOpts = append(httpOpts, sphttp.WithInterceptors(config.Interceptors))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, sphttp.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	return httpOpts
}

// GetTokenManager returns the token manager for this client.
func (c *Client) GetTokenManager() auth.TokenManager {
	return c.tokenManager
}

// SiteURL returns the site the client talks to.
func (c *Client) SiteURL() string {
	return c.siteURL
}

// Lists implements sprest.Client.Lists.
func (c *Client) Lists() sprest.ListsClient {
	return c.lists
}

// Search implements sprest.Client.Search.
func (c *Client) Search() *sprest.Search {
	return c.search
}

// UserProfiles implements sprest.Client.UserProfiles.
func (c *Client) UserProfiles() *sprest.UserProfiles {
	return c.userProfiles
}

// Transport implements sprest.Client.Transport.
func (c *Client) Transport() sprest.Transport {
	return c.signer
}

type listsClient struct {
	transport sprest.Transport
	logger    sprest.Logger
	events    sprest.EventPublisher
}

// Define implements sprest.ListsClient.Define. Options without a logger or
// publisher inherit the client's.
func (l *listsClient) Define(title string, opts *sprest.ListOptions) (*sprest.List, error) {
	options := sprest.ListOptions{}
	if opts != nil {
		options = *opts
	}

	if options.Logger == nil {
		options.Logger = l.logger
	}

	if options.Events == nil {
		options.Events = l.events
	}

	return sprest.NewList(l.transport, title, &options)
}
