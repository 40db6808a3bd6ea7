package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fivetwenty-io/sprest/internal/constants"
	"github.com/fivetwenty-io/sprest/pkg/spclient"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration.
type Config struct {
	Sites       map[string]*SiteConfig `json:"sites,omitempty"        yaml:"sites,omitempty"`
	CurrentSite string                 `json:"current_site,omitempty" yaml:"current_site,omitempty"`

	// Global settings
	Output  string `json:"output,omitempty" yaml:"output,omitempty"`
	NoColor bool   `json:"no_color"         yaml:"no_color"`
}

// SiteConfig represents configuration for a single SharePoint site.
type SiteConfig struct {
	URL            string     `json:"url"                        yaml:"url"`
	HostWebURL     string     `json:"host_web_url,omitempty"     yaml:"host_web_url,omitempty"`
	TokenURL       string     `json:"token_url,omitempty"        yaml:"token_url,omitempty"`
	ClientID       string     `json:"client_id,omitempty"        yaml:"client_id,omitempty"`
	ClientSecret   string     `json:"client_secret,omitempty"    yaml:"client_secret,omitempty"`
	Token          string     `json:"token,omitempty"            yaml:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	RefreshToken   string     `json:"refresh_token,omitempty"    yaml:"refresh_token,omitempty"`
	LastRefreshed  *time.Time `json:"last_refreshed,omitempty"   yaml:"last_refreshed,omitempty"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage sprest CLI configuration including sites and settings",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())
	cmd.AddCommand(newConfigClearCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the CLI configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}

			redacted := redactConfig(config)

			return renderOutput(cmd.OutOrStdout(), redacted, func(table *tablewriter.Table) error {
				return fillConfigTable(table, redacted)
			})
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	var siteFlag string

	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long: `Set a global configuration value (site, output, no_color) or, with --site,
a value of one configured site (url, host_web_url, token_url, client_id, client_secret).

Setting "site" to a URL that is not configured yet adds it.`,
		Args: cobra.ExactArgs(constants.TwoArgumentsRequired),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}

			if siteFlag != "" {
				err = setSiteConfig(config, siteFlag, args[0], args[1])
			} else {
				err = setGlobalConfig(config, args[0], args[1])
			}

			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			printSuccess(cmd.OutOrStdout(), "Set %s", args[0])

			return nil
		},
	}

	cmd.Flags().StringVar(&siteFlag, "site", "", "configure a specific site")

	return cmd
}

func newConfigUnsetCommand() *cobra.Command {
	var siteFlag string

	cmd := &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a global configuration value or, with --site, a value of one configured site",
		Args:  cobra.ExactArgs(constants.OneArgumentRequired),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}

			if siteFlag != "" {
				err = unsetSiteConfig(config, siteFlag, args[0])
			} else {
				err = unsetGlobalConfig(config, args[0])
			}

			if err != nil {
				return err
			}

			err = saveConfigStruct(config)
			if err != nil {
				return err
			}

			printSuccess(cmd.OutOrStdout(), "Unset %s", args[0])

			return nil
		},
	}

	cmd.Flags().StringVar(&siteFlag, "site", "", "configure a specific site")

	return cmd
}

func newConfigClearCommand() *cobra.Command {
	var siteFlag string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear configuration",
		Long:  "Remove all configuration or, with --site, a single site",
		RunE: func(cmd *cobra.Command, args []string) error {
			if siteFlag != "" {
				config, err := loadConfig()
				if err != nil {
					return err
				}

				key, _, err := findSite(config, siteFlag)
				if err != nil {
					return err
				}

				delete(config.Sites, key)

				if config.CurrentSite == key {
					config.CurrentSite = ""
				}

				err = saveConfigStruct(config)
				if err != nil {
					return err
				}

				printSuccess(cmd.OutOrStdout(), "Removed site %s", key)

				return nil
			}

			path, err := configFilePath()
			if err != nil {
				return err
			}

			err = os.Remove(path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to remove config file: %w", err)
			}

			printSuccess(cmd.OutOrStdout(), "Cleared all configuration")

			return nil
		},
	}

	cmd.Flags().StringVar(&siteFlag, "site", "", "remove a specific site only")

	return cmd
}

// configFilePath returns the --config file or ~/.sprest/config.yml.
func configFilePath() (string, error) {
	if path := viper.GetString("config"); path != "" {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".sprest", "config.yml"), nil
}

// loadConfig reads the configuration file. Site keys contain dots, so the
// file is decoded directly rather than through viper's key space.
func loadConfig() (*Config, error) {
	config := &Config{Sites: make(map[string]*SiteConfig)}

	path, err := configFilePath()
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- the path is the user's own configuration file
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if config.Sites == nil {
		config.Sites = make(map[string]*SiteConfig)
	}

	return config, nil
}

func saveConfigStruct(config *Config) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// siteKey names a site in the configuration: its URL without the scheme.
func siteKey(siteURL string) string {
	normalized := spclient.NormalizeSiteURL(siteURL)
	if _, rest, found := strings.Cut(normalized, "://"); found {
		return rest
	}

	return normalized
}

// findSite looks a configured site up by key or by URL.
func findSite(config *Config, nameOrURL string) (string, *SiteConfig, error) {
	if site, ok := config.Sites[nameOrURL]; ok {
		return nameOrURL, site, nil
	}

	key := siteKey(nameOrURL)
	if site, ok := config.Sites[key]; ok {
		return key, site, nil
	}

	return "", nil, fmt.Errorf("%w: %s", constants.ErrSiteNotFound, nameOrURL)
}

// resolveSite picks the site a command runs against: --site, then the
// current site, then the only configured site. A --site URL that is not
// configured is used without stored credentials.
func resolveSite(config *Config, siteFlag string) (string, *SiteConfig, error) {
	if siteFlag != "" {
		key, site, err := findSite(config, siteFlag)
		if err == nil {
			return key, site, nil
		}

		normalized := spclient.NormalizeSiteURL(siteFlag)

		return siteKey(normalized), &SiteConfig{URL: normalized}, nil
	}

	if config.CurrentSite != "" {
		return findSite(config, config.CurrentSite)
	}

	if len(config.Sites) == 1 {
		for key, site := range config.Sites {
			return key, site, nil
		}
	}

	return "", nil, constants.ErrNoSiteConfigured
}

func setGlobalConfig(config *Config, key, value string) error {
	switch key {
	case "site", "current_site":
		normalized := spclient.NormalizeSiteURL(value)

		name, _, err := findSite(config, value)
		if err != nil {
			name = siteKey(normalized)
			config.Sites[name] = &SiteConfig{URL: normalized}
		}

		config.CurrentSite = name
	case "output":
		switch value {
		case constants.FormatJSON, constants.FormatYAML, constants.FormatTable:
			config.Output = value
		default:
			return fmt.Errorf("%w: %s", constants.ErrInvalidOutputFormat, value)
		}
	case "no_color", "no-color":
		config.NoColor = parseBoolValue(value)
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	return nil
}

func unsetGlobalConfig(config *Config, key string) error {
	switch key {
	case "site", "current_site":
		config.CurrentSite = ""
	case "output":
		config.Output = ""
	case "no_color", "no-color":
		config.NoColor = false
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	return nil
}

func setSiteConfig(config *Config, nameOrURL, key, value string) error {
	_, site, err := findSite(config, nameOrURL)
	if err != nil {
		return err
	}

	switch key {
	case "url":
		site.URL = spclient.NormalizeSiteURL(value)
	case "host_web_url":
		site.HostWebURL = spclient.NormalizeSiteURL(value)
	case "token_url":
		site.TokenURL = value
	case "client_id":
		site.ClientID = value
	case "client_secret":
		site.ClientSecret = value
	case "token", "refresh_token", "token_expires_at":
		return fmt.Errorf("%w: %s", constants.ErrTokenFieldsManaged, key)
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	return nil
}

func unsetSiteConfig(config *Config, nameOrURL, key string) error {
	_, site, err := findSite(config, nameOrURL)
	if err != nil {
		return err
	}

	switch key {
	case "host_web_url":
		site.HostWebURL = ""
	case "token_url":
		site.TokenURL = ""
	case "client_id":
		site.ClientID = ""
	case "client_secret":
		site.ClientSecret = ""
	case "token", "refresh_token", "token_expires_at":
		return fmt.Errorf("%w: %s", constants.ErrTokenFieldsManaged, key)
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	return nil
}

func parseBoolValue(value string) bool {
	parsed, err := strconv.ParseBool(value)

	return err == nil && parsed
}

// redactConfig returns a copy of config with secrets masked.
func redactConfig(config *Config) *Config {
	redacted := *config
	redacted.Sites = make(map[string]*SiteConfig, len(config.Sites))

	for key, site := range config.Sites {
		copied := *site
		copied.ClientSecret = maskSecret(copied.ClientSecret)
		copied.Token = maskSecret(copied.Token)
		copied.RefreshToken = maskSecret(copied.RefreshToken)
		redacted.Sites[key] = &copied
	}

	return &redacted
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}

	return constants.MaskedSecret
}

func fillConfigTable(table *tablewriter.Table, config *Config) error {
	table.Header("Site", "URL", "Host Web", "Client ID", "Token Expires", "Current")

	keys := make([]string, 0, len(config.Sites))
	for key := range config.Sites {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		site := config.Sites[key]

		err := table.Append([]string{
			key,
			site.URL,
			formatConfigValue(site.HostWebURL),
			formatConfigValue(site.ClientID),
			formatExpiry(site.TokenExpiresAt),
			formatCurrentIndicator(key == config.CurrentSite),
		})
		if err != nil {
			return fmt.Errorf("failed to append table row: %w", err)
		}
	}

	return nil
}

func formatConfigValue(value string) string {
	if value == "" {
		return "-"
	}

	return value
}

func formatExpiry(expiresAt *time.Time) string {
	if expiresAt == nil {
		return "-"
	}

	return expiresAt.Local().Format(time.RFC3339)
}

func formatCurrentIndicator(isCurrent bool) string {
	if isCurrent {
		return "*"
	}

	return ""
}

// writeLine prints a plain status line.
func writeLine(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
