package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as token requests.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 5

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// HTTP headers and identification.
const (
	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "sprest-go/1.0"

	// HeaderClientRequestID correlates a request with SharePoint ULS logs.
	HeaderClientRequestID = "client-request-id"

	// HeaderAuthorization carries the bearer token.
	HeaderAuthorization = "Authorization"
)

// SharePoint REST addressing.
const (
	// APIPathPrefix is the root of the REST API below a site URL.
	APIPathPrefix = "/_api/"

	// ContextInfoPath returns the form digest of a site.
	ContextInfoPath = "/_api/contextinfo"

	// HostWebAddressFormat addresses the host web of an app.
	HostWebAddressFormat = "SP.AppContextSite(@target)/%s"

	// HostWebTargetParam names the host web URL parameter.
	HostWebTargetParam = "@target"

	// RealmDiscoveryPath answers an empty bearer token with a challenge
	// naming the tenant realm.
	RealmDiscoveryPath = "/_vti_bin/client.svc"

	// AzureADTokenURLFormat is the v2 token endpoint of a tenant.
	AzureADTokenURLFormat = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
)

// Token and digest lifetimes.
const (
	// TokenExpirationBuffer is the buffer time before token expiration.
	TokenExpirationBuffer = 30 * time.Second

	// DigestExpirationBuffer renews form digests before SharePoint rejects them.
	DigestExpirationBuffer = 60 * time.Second

	// DefaultDigestLifetime is used when contextinfo omits the timeout.
	DefaultDigestLifetime = 1800 * time.Second
)

// Concurrency limits.
const (
	// DefaultRateLimit is the default number of requests per second for the CLI.
	DefaultRateLimit = 10
)

// Format constants.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2
)

// Command argument counts.
const (
	// OneArgumentRequired indicates commands requiring exactly one argument.
	OneArgumentRequired = 1

	// TwoArgumentsRequired indicates commands requiring exactly two arguments.
	TwoArgumentsRequired = 2
)

// UI and display constants.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"

	// StringTruncationLength is the default length for truncating strings.
	StringTruncationLength = 60

	// DefaultSearchRowLimit is the number of search rows shown by default.
	DefaultSearchRowLimit = 10
)

// Boolean string constants.
const (
	// BooleanTrue string representation.
	BooleanTrue = "true"

	// BooleanFalse string representation.
	BooleanFalse = "false"
)
