package spclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fivetwenty-io/sprest/internal/sptest"
	"github.com/fivetwenty-io/sprest/pkg/spclient"
	"github.com/fivetwenty-io/sprest/pkg/sprest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestNew(t *testing.T) {
	t.Parallel()
	t.Run("creates client with config", func(t *testing.T) {
		t.Parallel()

		client, err := spclient.New(context.Background(), &sprest.Config{
			SiteURL:     "https://contoso.sharepoint.com/sites/team",
			AccessToken: "token",
		})
		require.NoError(t, err)
		assert.NotNil(t, client.Lists())
		assert.NotNil(t, client.Search())
		assert.NotNil(t, client.UserProfiles())
	})

	t.Run("requires config", func(t *testing.T) {
		t.Parallel()

		_, err := spclient.New(context.Background(), nil)
		require.ErrorIs(t, err, sprest.ErrConfigRequired)
	})

	t.Run("requires site URL", func(t *testing.T) {
		t.Parallel()

		_, err := spclient.New(context.Background(), &sprest.Config{})
		require.ErrorIs(t, err, sprest.ErrSiteURLRequired)
	})

	t.Run("rejects invalid configuration", func(t *testing.T) {
		t.Parallel()

		_, err := spclient.New(context.Background(), &sprest.Config{
			SiteURL:  "https://contoso.sharepoint.com",
			ClientID: "client-id",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ClientSecret")
	})

	t.Run("does not modify the caller's config", func(t *testing.T) {
		t.Parallel()

		config := &sprest.Config{SiteURL: "contoso.sharepoint.com/sites/team/"}

		_, err := spclient.New(context.Background(), config)
		require.NoError(t, err)
		assert.Equal(t, "contoso.sharepoint.com/sites/team/", config.SiteURL)
	})

	t.Run("discovers token endpoint for client credentials", func(t *testing.T) {
		t.Parallel()

		server := sptest.New(t, sptest.WithToken("token"))

		client, err := spclient.NewWithClientCredentials(context.Background(), server.URL, "client-id", "client-secret")
		require.NoError(t, err)
		assert.NotNil(t, client)

		requests := server.Requests()
		require.Len(t, requests, 1)
		assert.Equal(t, "/_vti_bin/client.svc", requests[0].Path)
		assert.Equal(t, "Bearer", requests[0].Headers.Get("Authorization"))
	})

	t.Run("skips discovery when token URL is set", func(t *testing.T) {
		t.Parallel()

		server := sptest.New(t, sptest.WithToken("token"))

		_, err := spclient.New(context.Background(), &sprest.Config{
			SiteURL:      server.URL,
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			TokenURL:     "https://login.microsoftonline.com/tenant/oauth2/v2.0/token",
		})
		require.NoError(t, err)
		assert.Empty(t, server.Requests())
	})

	t.Run("fails when discovery fails", func(t *testing.T) {
		t.Parallel()

		server := sptest.New(t)

		_, err := spclient.NewWithClientCredentials(context.Background(), server.URL, "client-id", "client-secret")
		require.ErrorIs(t, err, sprest.ErrRealmDiscoveryFailed)
	})
}

func TestNewWithSite(t *testing.T) {
	t.Parallel()

	client, err := spclient.NewWithSite(context.Background(), "https://contoso.sharepoint.com")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewWithToken(t *testing.T) {
	t.Parallel()

	server := sptest.New(t, sptest.WithToken("test-token"))
	server.AddProfile(sptest.DefaultUser, "Jane Doe", "jane@contoso.com", nil)

	client, err := spclient.NewWithToken(context.Background(), server.URL+"/", "test-token")
	require.NoError(t, err)

	me, err := client.UserProfiles().Current(context.Background())
	require.NoError(t, err)
	require.NoError(t, me.Wait(context.Background()))
	assert.Equal(t, "Jane Doe", me.Value().DisplayName)
}

func TestNormalizeSiteURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{input: "https://contoso.sharepoint.com/sites/team", expected: "https://contoso.sharepoint.com/sites/team"},
		{input: "https://contoso.sharepoint.com/sites/team/", expected: "https://contoso.sharepoint.com/sites/team"},
		{input: "contoso.sharepoint.com", expected: "https://contoso.sharepoint.com"},
		{input: " http://intranet/ ", expected: "http://intranet"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, spclient.NormalizeSiteURL(tt.input))
		})
	}
}

func TestParseRealm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		challenge string
		expected  string
	}{
		{
			name:      "sharepoint online challenge",
			challenge: `Bearer realm="3b6a1f2c-0000-4000-8000-000000000001",client_id="00000003-0000-0ff1-ce00-000000000000",trusted_issuers="00000001-0000-0000-c000-000000000000@*"`,
			expected:  "3b6a1f2c-0000-4000-8000-000000000001",
		},
		{
			name:      "spaces between parameters",
			challenge: `Bearer client_id="abc", realm="tenant"`,
			expected:  "tenant",
		},
		{
			name:      "other scheme",
			challenge: `NTLM`,
			expected:  "",
		},
		{
			name:      "no realm",
			challenge: `Bearer client_id="abc"`,
			expected:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, spclient.ParseRealm(tt.challenge))
		})
	}
}

func TestDiscoverTokenURL(t *testing.T) {
	t.Parallel()

	t.Run("uses realm of the site", func(t *testing.T) {
		t.Parallel()

		server := sptest.New(t, sptest.WithToken("token"))

		tokenURL, err := spclient.DiscoverTokenURL(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "https://login.microsoftonline.com/00000000-0000-0000-0000-000000000001/oauth2/v2.0/token", tokenURL)
	})

	t.Run("challenge without realm", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("WWW-Authenticate", `NTLM`)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := spclient.DiscoverTokenURL(context.Background(), server.URL)
		require.ErrorIs(t, err, sprest.ErrNoRealmInChallenge)
	})
}
