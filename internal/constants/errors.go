package constants

import "errors"

// Configuration errors.
var (
	ErrNoSiteConfigured    = errors.New("no site configured, use 'sprest config set site <url>' or --site")
	ErrUnknownConfigKey    = errors.New("unknown configuration key")
	ErrNotAuthenticated    = errors.New("not authenticated, use 'sprest login' or set a token")
	ErrNoClientCredentials = errors.New("client ID, client secret and token URL are required")
)

// Validation errors.
var (
	ErrInvalidFieldFormat  = errors.New("fields must be given as key=value")
	ErrInvalidOutputFormat = errors.New("unsupported output format")
	ErrInvalidItemID       = errors.New("item ID must be a positive integer")
	ErrFieldsRequired      = errors.New("at least one --field or --data is required")
)

// Output errors.
var (
	ErrJQNoResult = errors.New("jq expression produced no result")
)

// Site configuration errors.
var (
	ErrSiteNotFound       = errors.New("site not found in configuration")
	ErrTokenFieldsManaged = errors.New("token fields are managed by 'sprest login' and 'sprest logout'")
)
