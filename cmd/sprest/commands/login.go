package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fivetwenty-io/sprest/internal/auth"
	"github.com/fivetwenty-io/sprest/internal/client"
	"github.com/fivetwenty-io/sprest/internal/constants"
	"github.com/fivetwenty-io/sprest/pkg/spclient"
	"github.com/fivetwenty-io/sprest/pkg/sprest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		siteURL      string
		hostWebURL   string
		clientID     string
		clientSecret string
		tokenURL     string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to a SharePoint site",
		Long: `Store credentials for a SharePoint site.

With --token the bearer token is verified against the user profile service
and stored as is. Otherwise an app registration's client ID and secret are
exchanged for a token. The token endpoint is discovered from the site when
--token-url is not given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			reader := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			if siteURL == "" {
				siteURL = viper.GetString("site")
			}

			if siteURL == "" {
				siteURL = prompt(reader, out, "Site URL: ")
			}

			if siteURL == "" {
				return constants.ErrNoSiteConfigured
			}

			site := &SiteConfig{
				URL:        spclient.NormalizeSiteURL(siteURL),
				HostWebURL: hostWebURL,
				TokenURL:   tokenURL,
			}

			if site.HostWebURL != "" {
				site.HostWebURL = spclient.NormalizeSiteURL(site.HostWebURL)
			}

			var err error

			if token := viper.GetString("token"); token != "" {
				err = loginWithToken(ctx, out, site, token)
			} else {
				if clientID == "" {
					clientID = prompt(reader, out, "Client ID: ")
				}

				if clientSecret == "" {
					clientSecret, err = readSecret(out, "Client secret: ")
					if err != nil {
						return err
					}
				}

				site.ClientID = clientID
				site.ClientSecret = clientSecret

				err = loginWithClientCredentials(ctx, site)
			}

			if err != nil {
				return err
			}

			key, err := storeSite(site)
			if err != nil {
				return err
			}

			printSuccess(out, "Logged in to %s", site.URL)
			writeLine(out, "Site saved as %s", key)

			return nil
		},
	}

	cmd.Flags().StringVar(&siteURL, "url", "", "site URL (defaults to --site)")
	cmd.Flags().StringVar(&hostWebURL, "host-web", "", "host web URL for app webs")
	cmd.Flags().StringVar(&clientID, "client-id", "", "app registration client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "app registration client secret")
	cmd.Flags().StringVar(&tokenURL, "token-url", "", "OAuth2 token endpoint (discovered when empty)")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored tokens of a site",
		Long:  "Remove the stored tokens of the current site or of --site. Client credentials are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}

			siteFlag := viper.GetString("site")

			var (
				key  string
				site *SiteConfig
			)

			if siteFlag != "" {
				key, site, err = findSite(config, siteFlag)
			} else {
				key, site, err = resolveSite(config, "")
			}

			if err != nil {
				return err
			}

			site.Token = ""
			site.RefreshToken = ""
			site.TokenExpiresAt = nil
			site.LastRefreshed = nil

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			printSuccess(cmd.OutOrStdout(), "Logged out of %s", key)

			return nil
		},
	}
}

// loginWithToken checks that the token is accepted by loading the profile
// of the signed-in user.
func loginWithToken(ctx context.Context, out io.Writer, site *SiteConfig, token string) error {
	spClient, err := spclient.New(ctx, &sprest.Config{
		SiteURL:     site.URL,
		HostWebURL:  site.HostWebURL,
		AccessToken: token,
		Logger:      newLogger(),
	})
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	pending, err := spClient.UserProfiles().Current(ctx)
	if err != nil {
		return err
	}

	err = pending.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify token: %w", err)
	}

	if name := pending.Value().DisplayName; name != "" {
		writeLine(out, "Authenticated as %s", name)
	}

	site.Token = token

	return nil
}

// loginWithClientCredentials acquires a first token so that bad
// credentials are reported at login rather than on first use.
func loginWithClientCredentials(ctx context.Context, site *SiteConfig) error {
	if site.ClientID == "" || site.ClientSecret == "" {
		return constants.ErrNoClientCredentials
	}

	if site.TokenURL == "" {
		discovered, err := spclient.DiscoverTokenURL(ctx, site.URL)
		if err != nil {
			return err
		}

		site.TokenURL = discovered
	}

	manager := auth.NewOAuth2TokenManager(&auth.OAuth2Config{
		TokenURL:     site.TokenURL,
		ClientID:     site.ClientID,
		ClientSecret: site.ClientSecret,
		Scopes:       client.DefaultScopes(site.URL),
	})

	_, err := manager.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire token: %w", err)
	}

	if token := manager.Current(); token != nil {
		site.Token = token.AccessToken
		site.RefreshToken = token.RefreshToken

		if !token.ExpiresAt.IsZero() {
			expiresAt := token.ExpiresAt
			site.TokenExpiresAt = &expiresAt
		}
	}

	now := time.Now()
	site.LastRefreshed = &now

	return nil
}

// storeSite saves site under its key and makes it current when no other
// site is.
func storeSite(site *SiteConfig) (string, error) {
	config, err := loadConfig()
	if err != nil {
		return "", err
	}

	key := siteKey(site.URL)
	config.Sites[key] = site

	if config.CurrentSite == "" {
		config.CurrentSite = key
	}

	return key, saveConfigStruct(config)
}

func prompt(reader *bufio.Reader, out io.Writer, label string) string {
	_, _ = fmt.Fprint(out, label)

	line, _ := reader.ReadString('\n')

	return strings.TrimSpace(line)
}

func readSecret(out io.Writer, label string) (string, error) {
	_, _ = fmt.Fprint(out, label)

	// #nosec G115 -- file descriptors fit in an int
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	_, _ = fmt.Fprintln(out)

	return string(secret), nil
}
