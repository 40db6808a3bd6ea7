package sprest

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// ListsClient defines resource types for lists.
type ListsClient interface {
	// Define returns the resource type of the list titled title. Defining
	// the same title twice returns independent types.
	Define(title string, opts *ListOptions) (*List, error)
}

// Client is a SharePoint site client.
type Client interface {
	Lists() ListsClient
	Search() *Search
	UserProfiles() *UserProfiles
	// Transport returns the signed transport used by all services.
	Transport() Transport
}

// Config represents client configuration for building a sprest.Client.
//
// # Authentication precedence
//
// The concrete client (see pkg/spclient and internal/client) applies:
//  1. AccessToken: used directly as a static Bearer token.
//  2. ClientID/ClientSecret: OAuth2 client_credentials grant against TokenURL.
//     If TokenURL is empty, spclient.New discovers the tenant from the
//     Bearer realm SharePoint advertises on /_vti_bin/client.svc.
//  3. No credentials: requests are sent without authentication, which only
//     works against sites that accept anonymous or cookie-less access.
//
// Write requests additionally carry a form digest fetched from
// /_api/contextinfo and cached until it expires.
type Config struct {
	// SiteURL is the web the client talks to, e.g.
	// "https://contoso.sharepoint.com/sites/team". spclient.New trims a
	// trailing slash and adds "https://" if no scheme is present.
	SiteURL string
	// HostWebURL is the host web of an app. Lists defined with InHostWeb
	// are addressed through SP.AppContextSite(@target).
	HostWebURL string

	// AccessToken is used directly as a Bearer token.
	AccessToken string
	// ClientID and ClientSecret enable the client_credentials grant.
	ClientID     string
	ClientSecret string
	// TokenURL is the OAuth2 token endpoint. When empty, spclient.New
	// discovers the tenant of the site and uses its Azure AD v2 endpoint.
	TokenURL string
	// Scopes requested with the client_credentials grant. Defaults to
	// "{scheme}://{host}/.default" of SiteURL.
	Scopes []string

	// RetryMax is the maximum number of retries for 5xx, 429 and connection
	// errors. If 0, a default is used.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// HTTPTimeout bounds a single HTTP attempt.
	HTTPTimeout time.Duration
	// Debug enables request/response logging through Logger.
	Debug bool
	// Logger is used by the HTTP layer and the list diagnostics.
	Logger Logger
	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// Interceptors run around every HTTP exchange.
	Interceptors *InterceptorChain
	// Events receives change events of lists defined through this client
	// unless their ListOptions name another publisher.
	Events EventPublisher
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SiteURL, validation.Required, is.URL),
		validation.Field(&c.HostWebURL, is.URL),
		validation.Field(&c.ClientSecret, validation.When(c.ClientID != "", validation.Required)),
		validation.Field(&c.TokenURL, is.URL),
		validation.Field(&c.RetryMax, validation.Min(0)),
		validation.Field(&c.RetryWaitMax, validation.When(c.RetryWaitMin > 0, validation.Min(c.RetryWaitMin))),
	)
}
