package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fivetwenty-io/sprest/internal/constants"
	"github.com/fivetwenty-io/sprest/internal/sptest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliToken = "eyJ0eXAiOiJKV1QiLCJhbGciOiJub25lIn0"

// findSubcommand finds a subcommand by name within a cobra command.
func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

// executeCommand runs cmd with args and returns its standard output.
func executeCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer

	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := cmd.Execute()

	return out.String(), err
}

// useSite starts a fake site and points the CLI at it with a bearer token
// and JSON output.
func useSite(t *testing.T) *sptest.Server {
	t.Helper()

	useTempConfig(t)

	server := sptest.New(t, sptest.WithToken(cliToken))
	server.AddList("Team Tasks", false)

	viper.Set("site", server.URL)
	viper.Set("token", cliToken)
	viper.Set("output", constants.FormatJSON)

	return server
}

func TestNewItemsCommand(t *testing.T) {
	t.Parallel()

	cmd := NewItemsCommand()
	assert.Equal(t, "items", cmd.Use)
	assert.Equal(t, []string{"item", "i"}, cmd.Aliases)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("host-web"))

	for _, name := range []string{"list", "get", "create", "update", "delete"} {
		sub := findSubcommand(cmd, name)
		require.NotNil(t, sub, "subcommand %s should exist", name)
		assert.NotNil(t, sub.RunE)
		assert.NotNil(t, sub.Args)
	}

	list := findSubcommand(cmd, "list")
	for _, flag := range []string{"select", "filter", "orderby", "expand", "top", "skip", "single"} {
		assert.NotNil(t, list.Flags().Lookup(flag), "flag %s should exist", flag)
	}

	update := findSubcommand(cmd, "update")
	assert.Equal(t, "update LIST_TITLE ITEM_ID", update.Use)
	assert.Equal(t, "false", update.Flags().Lookup("force").DefValue)
	assert.Equal(t, "f", update.Flags().Lookup("field").Shorthand)
}

func TestNewSearchCommand(t *testing.T) {
	t.Parallel()

	cmd := NewSearchCommand()
	assert.Equal(t, "search QUERY", cmd.Use)

	rowLimit := cmd.Flags().Lookup("rowlimit")
	require.NotNil(t, rowLimit)
	assert.Equal(t, "10", rowLimit.DefValue)

	for _, flag := range []string{"select", "refine", "sort", "source", "startrow", "post", "suggest"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %s should exist", flag)
	}
}

func TestNewUsersCommand(t *testing.T) {
	t.Parallel()

	cmd := NewUsersCommand()
	assert.Equal(t, "users", cmd.Use)
	assert.NotNil(t, findSubcommand(cmd, "me"))
	assert.NotNil(t, findSubcommand(cmd, "get"))
}

func TestNewConfigCommand(t *testing.T) {
	t.Parallel()

	cmd := NewConfigCommand()
	assert.Equal(t, "config", cmd.Use)

	for _, name := range []string{"show", "set", "unset", "clear"} {
		assert.NotNil(t, findSubcommand(cmd, name), "subcommand %s should exist", name)
	}
}

func TestNewLoginCommand(t *testing.T) {
	t.Parallel()

	cmd := NewLoginCommand()
	assert.Equal(t, "login", cmd.Use)

	for _, flag := range []string{"url", "host-web", "client-id", "client-secret", "token-url"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %s should exist", flag)
	}

	assert.Equal(t, "logout", NewLogoutCommand().Use)
}

func TestVersionCommand(t *testing.T) {
	useTempConfig(t)
	viper.Set("output", constants.FormatJSON)

	out, err := executeCommand(t, NewVersionCommand("1.2.3", "abc123", "2026-10-19"))
	require.NoError(t, err)

	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.NotEmpty(t, info.GoVersion)
}

func TestItemsCreate(t *testing.T) {
	server := useSite(t)

	out, err := executeCommand(t, NewItemsCommand(),
		"create", "Team Tasks", "--field", "Title=Write report", "--field", "Priority:=2")
	require.NoError(t, err)

	var created map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "Write report", created["Title"])
	assert.InDelta(t, 1, created["Id"], 0)

	fields, version, ok := server.Item("Team Tasks", 1)
	require.True(t, ok)
	assert.Equal(t, 1, version)
	assert.Equal(t, "Write report", fields["Title"])
}

func TestItemsList(t *testing.T) {
	server := useSite(t)
	server.AddItem("Team Tasks", map[string]any{"Title": "Alpha", "Status": "Open"})
	server.AddItem("Team Tasks", map[string]any{"Title": "Beta", "Status": "Open"})
	server.AddItem("Team Tasks", map[string]any{"Title": "Gamma", "Status": "Closed"})

	viper.Set("jq", ".[].Title")

	out, err := executeCommand(t, NewItemsCommand(),
		"list", "Team Tasks", "--filter", "Status eq 'Open'", "--orderby", "Title desc", "--select", "Id,Title")
	require.NoError(t, err)
	assert.Equal(t, "Beta\nAlpha\n", out)

	requests := server.Requests()
	last := requests[len(requests)-1]
	assert.Equal(t, "Status eq 'Open'", last.Query.Get("$filter"))
	assert.Equal(t, "Title desc", last.Query.Get("$orderby"))
	assert.Equal(t, "Id,Title", last.Query.Get("$select"))
}

func TestItemsListTable(t *testing.T) {
	server := useSite(t)
	server.AddItem("Team Tasks", map[string]any{"Title": "Alpha"})

	viper.Set("output", constants.FormatTable)

	out, err := executeCommand(t, NewItemsCommand(), "list", "Team Tasks")
	require.NoError(t, err)
	assert.Contains(t, out, "Alpha")
}

func TestItemsGet(t *testing.T) {
	server := useSite(t)
	id := server.AddItem("Team Tasks", map[string]any{"Title": "Draft"})

	viper.Set("output", constants.FormatYAML)

	out, err := executeCommand(t, NewItemsCommand(), "get", "Team Tasks", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.Contains(t, out, "Title: Draft")
	assert.Contains(t, out, "etag:")

	_, err = executeCommand(t, NewItemsCommand(), "get", "Team Tasks", "abc")
	require.ErrorIs(t, err, constants.ErrInvalidItemID)
}

func TestItemsUpdate(t *testing.T) {
	server := useSite(t)
	server.AddItem("Team Tasks", map[string]any{"Title": "Draft", "Status": "Open"})

	_, err := executeCommand(t, NewItemsCommand(), "update", "Team Tasks", "1", "--field", "Title=Final")
	require.NoError(t, err)

	fields, version, ok := server.Item("Team Tasks", 1)
	require.True(t, ok)
	assert.Equal(t, 2, version)
	assert.Equal(t, "Final", fields["Title"])
	assert.Equal(t, "Open", fields["Status"])

	requests := server.Requests()
	assert.Equal(t, `"1"`, requests[len(requests)-1].Headers.Get("If-Match"))
}

func TestItemsUpdateForce(t *testing.T) {
	server := useSite(t)
	server.AddItem("Team Tasks", map[string]any{"Title": "Draft"})
	server.TouchItem("Team Tasks", 1, map[string]any{"Title": "Edited elsewhere"})

	_, err := executeCommand(t, NewItemsCommand(), "update", "Team Tasks", "1", "--force", "--data", `{"Title":"Mine"}`)
	require.NoError(t, err)

	fields, _, ok := server.Item("Team Tasks", 1)
	require.True(t, ok)
	assert.Equal(t, "Mine", fields["Title"])

	for _, request := range server.Requests() {
		assert.NotEqual(t, http.MethodGet, request.Method, "forced updates do not read the item")
	}

	requests := server.Requests()
	assert.Equal(t, "*", requests[len(requests)-1].Headers.Get("If-Match"))
}

func TestItemsDelete(t *testing.T) {
	server := useSite(t)
	server.AddItem("Team Tasks", map[string]any{"Title": "Obsolete"})

	out, err := executeCommand(t, NewItemsCommand(), "delete", "Team Tasks", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted item 1 from Team Tasks")

	_, _, ok := server.Item("Team Tasks", 1)
	assert.False(t, ok)
}

func TestItemsRequiresFields(t *testing.T) {
	useSite(t)

	_, err := executeCommand(t, NewItemsCommand(), "create", "Team Tasks")
	require.ErrorIs(t, err, constants.ErrFieldsRequired)
}

func TestSearch(t *testing.T) {
	server := useSite(t)
	server.SetSearchRows(
		map[string]string{"Title": "Budget 2026", "Path": "https://contoso.sharepoint.com/budget.xlsx", "Rank": "14.5"},
	)

	viper.Set("jq", ".relevantResults[0].Title")

	out, err := executeCommand(t, NewSearchCommand(), "budget's", "--rowlimit", "5")
	require.NoError(t, err)
	assert.Equal(t, "Budget 2026\n", out)

	requests := server.Requests()
	last := requests[len(requests)-1]
	assert.Equal(t, "'budget''s'", last.Query.Get("querytext"))
	assert.Equal(t, "5", last.Query.Get("rowlimit"))
}

func TestUsersMe(t *testing.T) {
	server := useSite(t)
	server.AddProfile(sptest.DefaultUser, "Jane Doe", "jane@contoso.com", map[string]string{"Department": "Finance"})

	out, err := executeCommand(t, NewUsersCommand(), "me")
	require.NoError(t, err)

	var profile map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &profile))
	assert.Equal(t, "Jane Doe", profile["displayName"])
	assert.Equal(t, map[string]any{"Department": "Finance"}, profile["profileProperties"])
}

func TestClientRequiresAuthentication(t *testing.T) {
	useTempConfig(t)

	viper.Set("site", "https://contoso.sharepoint.com")

	_, err := executeCommand(t, NewUsersCommand(), "me")
	require.ErrorIs(t, err, constants.ErrNotAuthenticated)
}

func TestClientRequiresSite(t *testing.T) {
	useTempConfig(t)

	_, err := executeCommand(t, NewUsersCommand(), "me")
	require.ErrorIs(t, err, constants.ErrNoSiteConfigured)
}

func TestLoginWithTokenAndLogout(t *testing.T) {
	server := useSite(t)
	server.AddProfile(sptest.DefaultUser, "Jane Doe", "jane@contoso.com", nil)

	out, err := executeCommand(t, NewLoginCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "Authenticated as Jane Doe")

	key := siteKey(server.URL)

	config, err := loadConfig()
	require.NoError(t, err)
	require.Contains(t, config.Sites, key)
	assert.Equal(t, cliToken, config.Sites[key].Token)
	assert.Equal(t, key, config.CurrentSite)

	_, err = executeCommand(t, NewLogoutCommand())
	require.NoError(t, err)

	config, err = loadConfig()
	require.NoError(t, err)
	assert.Empty(t, config.Sites[key].Token)
	assert.Equal(t, server.URL, config.Sites[key].URL)
}

func TestLoginWithClientCredentials(t *testing.T) {
	useTempConfig(t)

	server := sptest.New(t, sptest.WithToken("issued-token"))
	server.AddProfile(sptest.DefaultUser, "App User", "app@contoso.com", nil)

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"issued-token","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(tokenServer.Close)

	_, err := executeCommand(t, NewLoginCommand(),
		"--url", server.URL,
		"--client-id", "app-id",
		"--client-secret", "app-secret",
		"--token-url", tokenServer.URL)
	require.NoError(t, err)

	config, err := loadConfig()
	require.NoError(t, err)

	site := config.Sites[siteKey(server.URL)]
	require.NotNil(t, site)
	assert.Equal(t, "issued-token", site.Token)
	assert.Equal(t, "app-secret", site.ClientSecret)
	assert.Equal(t, tokenServer.URL, site.TokenURL)

	// The stored token is reused by later commands.
	viper.Set("output", constants.FormatJSON)

	out, err := executeCommand(t, NewUsersCommand(), "me")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "App User"))
}
