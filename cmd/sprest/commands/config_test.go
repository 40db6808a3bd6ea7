package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fivetwenty-io/sprest/internal/constants"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTempConfig points the CLI at a config file in a temporary directory.
// Tests using it change viper state and must not run in parallel.
func useTempConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nested", "config.yml")

	viper.Reset()
	viper.Set("config", path)
	t.Cleanup(viper.Reset)

	return path
}

func TestSiteKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url      string
		expected string
	}{
		{url: "https://contoso.sharepoint.com/sites/team", expected: "contoso.sharepoint.com/sites/team"},
		{url: "https://contoso.sharepoint.com/sites/team/", expected: "contoso.sharepoint.com/sites/team"},
		{url: "contoso.sharepoint.com", expected: "contoso.sharepoint.com"},
		{url: "http://127.0.0.1:8080", expected: "127.0.0.1:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, siteKey(tt.url))
		})
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestResolveSite(t *testing.T) {
	t.Parallel()

	team := &SiteConfig{URL: "https://contoso.sharepoint.com/sites/team"}
	hr := &SiteConfig{URL: "https://contoso.sharepoint.com/sites/hr"}

	t.Run("by flag name", func(t *testing.T) {
		t.Parallel()

		config := &Config{Sites: map[string]*SiteConfig{"contoso.sharepoint.com/sites/team": team}}

		key, site, err := resolveSite(config, "contoso.sharepoint.com/sites/team")
		require.NoError(t, err)
		assert.Equal(t, "contoso.sharepoint.com/sites/team", key)
		assert.Same(t, team, site)
	})

	t.Run("by flag url", func(t *testing.T) {
		t.Parallel()

		config := &Config{Sites: map[string]*SiteConfig{"contoso.sharepoint.com/sites/team": team}}

		_, site, err := resolveSite(config, "https://contoso.sharepoint.com/sites/team/")
		require.NoError(t, err)
		assert.Same(t, team, site)
	})

	t.Run("unknown flag url is used without credentials", func(t *testing.T) {
		t.Parallel()

		config := &Config{Sites: map[string]*SiteConfig{}}

		key, site, err := resolveSite(config, "fabrikam.sharepoint.com")
		require.NoError(t, err)
		assert.Equal(t, "fabrikam.sharepoint.com", key)
		assert.Equal(t, "https://fabrikam.sharepoint.com", site.URL)
		assert.Empty(t, site.Token)
	})

	t.Run("current site", func(t *testing.T) {
		t.Parallel()

		config := &Config{
			Sites: map[string]*SiteConfig{
				"contoso.sharepoint.com/sites/team": team,
				"contoso.sharepoint.com/sites/hr":   hr,
			},
			CurrentSite: "contoso.sharepoint.com/sites/hr",
		}

		_, site, err := resolveSite(config, "")
		require.NoError(t, err)
		assert.Same(t, hr, site)
	})

	t.Run("only site", func(t *testing.T) {
		t.Parallel()

		config := &Config{Sites: map[string]*SiteConfig{"contoso.sharepoint.com/sites/team": team}}

		_, site, err := resolveSite(config, "")
		require.NoError(t, err)
		assert.Same(t, team, site)
	})

	t.Run("ambiguous", func(t *testing.T) {
		t.Parallel()

		config := &Config{Sites: map[string]*SiteConfig{
			"contoso.sharepoint.com/sites/team": team,
			"contoso.sharepoint.com/sites/hr":   hr,
		}}

		_, _, err := resolveSite(config, "")
		require.ErrorIs(t, err, constants.ErrNoSiteConfigured)
	})

	t.Run("stale current site", func(t *testing.T) {
		t.Parallel()

		config := &Config{Sites: map[string]*SiteConfig{}, CurrentSite: "gone.sharepoint.com"}

		_, _, err := resolveSite(config, "")
		require.ErrorIs(t, err, constants.ErrSiteNotFound)
	})
}

func TestLoadConfig_Missing(t *testing.T) {
	useTempConfig(t)

	config, err := loadConfig()
	require.NoError(t, err)
	assert.Empty(t, config.Sites)
	assert.NotNil(t, config.Sites)
}

func TestSaveConfigStruct_RoundTrip(t *testing.T) {
	path := useTempConfig(t)

	expires := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	config := &Config{
		Sites: map[string]*SiteConfig{
			"contoso.sharepoint.com/sites/team": {
				URL:            "https://contoso.sharepoint.com/sites/team",
				ClientID:       "client",
				ClientSecret:   "secret",
				Token:          "token",
				TokenExpiresAt: &expires,
			},
		},
		CurrentSite: "contoso.sharepoint.com/sites/team",
		Output:      constants.FormatJSON,
	}

	require.NoError(t, saveConfigStruct(config))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(constants.ConfigFilePerm), info.Mode().Perm())

	loaded, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.CurrentSite, loaded.CurrentSite)
	assert.Equal(t, constants.FormatJSON, loaded.Output)

	site := loaded.Sites["contoso.sharepoint.com/sites/team"]
	require.NotNil(t, site)
	assert.Equal(t, "secret", site.ClientSecret)
	require.NotNil(t, site.TokenExpiresAt)
	assert.True(t, expires.Equal(*site.TokenExpiresAt))
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestSetGlobalConfig(t *testing.T) {
	t.Parallel()

	t.Run("site adds and selects a site", func(t *testing.T) {
		t.Parallel()

		config := &Config{Sites: map[string]*SiteConfig{}}

		require.NoError(t, setGlobalConfig(config, "site", "contoso.sharepoint.com/sites/team/"))
		assert.Equal(t, "contoso.sharepoint.com/sites/team", config.CurrentSite)
		assert.Equal(t, "https://contoso.sharepoint.com/sites/team", config.Sites["contoso.sharepoint.com/sites/team"].URL)
	})

	t.Run("site selects an existing site", func(t *testing.T) {
		t.Parallel()

		existing := &SiteConfig{URL: "https://contoso.sharepoint.com", Token: "kept"}
		config := &Config{Sites: map[string]*SiteConfig{"contoso.sharepoint.com": existing}}

		require.NoError(t, setGlobalConfig(config, "site", "https://contoso.sharepoint.com"))
		assert.Same(t, existing, config.Sites["contoso.sharepoint.com"])
	})

	t.Run("output", func(t *testing.T) {
		t.Parallel()

		config := &Config{Sites: map[string]*SiteConfig{}}

		require.NoError(t, setGlobalConfig(config, "output", constants.FormatYAML))
		assert.Equal(t, constants.FormatYAML, config.Output)

		err := setGlobalConfig(config, "output", "xml")
		require.ErrorIs(t, err, constants.ErrInvalidOutputFormat)
	})

	t.Run("no color", func(t *testing.T) {
		t.Parallel()

		config := &Config{Sites: map[string]*SiteConfig{}}

		require.NoError(t, setGlobalConfig(config, "no_color", constants.BooleanTrue))
		assert.True(t, config.NoColor)

		require.NoError(t, unsetGlobalConfig(config, "no_color"))
		assert.False(t, config.NoColor)
	})

	t.Run("unknown key", func(t *testing.T) {
		t.Parallel()

		config := &Config{Sites: map[string]*SiteConfig{}}

		require.ErrorIs(t, setGlobalConfig(config, "colour", "x"), constants.ErrUnknownConfigKey)
		require.ErrorIs(t, unsetGlobalConfig(config, "colour"), constants.ErrUnknownConfigKey)
	})
}

func TestSetSiteConfig(t *testing.T) {
	t.Parallel()

	site := &SiteConfig{URL: "https://contoso.sharepoint.com/sites/app"}
	config := &Config{Sites: map[string]*SiteConfig{"contoso.sharepoint.com/sites/app": site}}

	require.NoError(t, setSiteConfig(config, "contoso.sharepoint.com/sites/app", "host_web_url", "contoso.sharepoint.com/sites/host"))
	require.NoError(t, setSiteConfig(config, "https://contoso.sharepoint.com/sites/app", "client_id", "client"))
	assert.Equal(t, "https://contoso.sharepoint.com/sites/host", site.HostWebURL)
	assert.Equal(t, "client", site.ClientID)

	require.NoError(t, unsetSiteConfig(config, "contoso.sharepoint.com/sites/app", "client_id"))
	assert.Empty(t, site.ClientID)

	require.ErrorIs(t, setSiteConfig(config, "contoso.sharepoint.com/sites/app", "token", "x"), constants.ErrTokenFieldsManaged)
	require.ErrorIs(t, unsetSiteConfig(config, "contoso.sharepoint.com/sites/app", "refresh_token"), constants.ErrTokenFieldsManaged)
	require.ErrorIs(t, setSiteConfig(config, "contoso.sharepoint.com/sites/app", "colour", "x"), constants.ErrUnknownConfigKey)
	require.ErrorIs(t, setSiteConfig(config, "fabrikam.sharepoint.com", "client_id", "x"), constants.ErrSiteNotFound)
}

func TestRedactConfig(t *testing.T) {
	t.Parallel()

	site := &SiteConfig{URL: "https://contoso.sharepoint.com", ClientSecret: "secret", Token: "token"}
	config := &Config{Sites: map[string]*SiteConfig{"contoso.sharepoint.com": site}}

	redacted := redactConfig(config)

	assert.Equal(t, constants.MaskedSecret, redacted.Sites["contoso.sharepoint.com"].ClientSecret)
	assert.Equal(t, constants.MaskedSecret, redacted.Sites["contoso.sharepoint.com"].Token)
	assert.Empty(t, redacted.Sites["contoso.sharepoint.com"].RefreshToken)
	assert.Equal(t, "secret", site.ClientSecret, "original must be untouched")
}

func TestConfigPersister_UpdateSiteToken(t *testing.T) {
	useTempConfig(t)

	require.NoError(t, saveConfigStruct(&Config{Sites: map[string]*SiteConfig{
		"contoso.sharepoint.com": {URL: "https://contoso.sharepoint.com", ClientID: "client", ClientSecret: "secret"},
	}}))

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	persister := NewConfigPersister()

	require.NoError(t, persister.UpdateSiteToken("contoso.sharepoint.com", "renewed", expires, "refresh"))

	config, err := loadConfig()
	require.NoError(t, err)

	site := config.Sites["contoso.sharepoint.com"]
	assert.Equal(t, "renewed", site.Token)
	assert.Equal(t, "refresh", site.RefreshToken)
	require.NotNil(t, site.TokenExpiresAt)
	assert.True(t, expires.Equal(*site.TokenExpiresAt))
	assert.NotNil(t, site.LastRefreshed)
	assert.Equal(t, "secret", site.ClientSecret)

	err = persister.UpdateSiteToken("fabrikam.sharepoint.com", "x", expires, "")
	require.ErrorIs(t, err, constants.ErrSiteNotFound)
}

func TestConfigCommands(t *testing.T) {
	path := useTempConfig(t)
	viper.Set("output", constants.FormatJSON)

	_, err := executeCommand(t, NewConfigCommand(), "set", "site", "contoso.sharepoint.com/sites/team")
	require.NoError(t, err)

	_, err = executeCommand(t, NewConfigCommand(), "set", "--site", "contoso.sharepoint.com/sites/team", "client_secret", "hidden")
	require.NoError(t, err)

	out, err := executeCommand(t, NewConfigCommand(), "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"current_site": "contoso.sharepoint.com/sites/team"`)
	assert.Contains(t, out, `"client_secret": "***"`)
	assert.NotContains(t, out, "hidden")

	_, err = executeCommand(t, NewConfigCommand(), "clear", "--site", "contoso.sharepoint.com/sites/team")
	require.NoError(t, err)

	config, err := loadConfig()
	require.NoError(t, err)
	assert.Empty(t, config.Sites)
	assert.Empty(t, config.CurrentSite)

	_, err = executeCommand(t, NewConfigCommand(), "clear")
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
