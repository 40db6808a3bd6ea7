package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fivetwenty-io/sprest/internal/constants"
	"github.com/fivetwenty-io/sprest/pkg/sprest"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewUsersCommand creates the user profile command group.
func NewUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user", "profile"},
		Short:   "Show user profiles",
		Long:    "Display SharePoint user profiles",
	}

	cmd.AddCommand(newUsersMeCommand())
	cmd.AddCommand(newUsersGetCommand())

	return cmd
}

func newUsersMeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show your profile",
		Long:  "Display the profile of the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProfiles(cmd, func(ctx context.Context, profiles *sprest.UserProfiles) (*sprest.Pending[sprest.PersonProperties], error) {
				return profiles.Current(ctx)
			})
		},
	}
}

func newUsersGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ACCOUNT_NAME",
		Short: "Show a user profile",
		Long:  "Display the profile of an account, e.g. 'i:0#.f|membership|jane@contoso.com'",
		Args:  cobra.ExactArgs(constants.OneArgumentRequired),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProfiles(cmd, func(ctx context.Context, profiles *sprest.UserProfiles) (*sprest.Pending[sprest.PersonProperties], error) {
				return profiles.Get(ctx, args[0])
			})
		},
	}
}

type profileRequest func(context.Context, *sprest.UserProfiles) (*sprest.Pending[sprest.PersonProperties], error)

func withProfiles(cmd *cobra.Command, request profileRequest) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	current, err := createClient(ctx)
	if err != nil {
		return err
	}
	defer current.Close()

	pending, err := request(ctx, current.client.UserProfiles())
	if err != nil {
		return err
	}

	err = pending.Wait(ctx)
	if err != nil {
		return err
	}

	profile := pending.Value()

	return renderOutput(cmd.OutOrStdout(), profileView(&profile), func(table *tablewriter.Table) error {
		return fillProfileTable(table, &profile)
	})
}

func profileView(profile *sprest.PersonProperties) map[string]any {
	return map[string]any{
		"accountName":       profile.AccountName,
		"displayName":       profile.DisplayName,
		"email":             profile.Email,
		"title":             profile.Title,
		"isFollowed":        profile.IsFollowed,
		"personalUrl":       profile.PersonalURL,
		"pictureUrl":        profile.PictureURL,
		"userUrl":           profile.UserURL,
		"profileProperties": plainValue(profile.ProfileProperties),
	}
}

func fillProfileTable(table *tablewriter.Table, profile *sprest.PersonProperties) error {
	table.Header("Property", "Value")

	rows := [][]string{
		{"Account", formatConfigValue(profile.AccountName)},
		{"Name", formatConfigValue(profile.DisplayName)},
		{"Email", formatConfigValue(profile.Email)},
		{"Title", formatConfigValue(profile.Title)},
		{"Followed", strconv.FormatBool(profile.IsFollowed)},
		{"Personal URL", formatConfigValue(profile.PersonalURL)},
	}

	for _, key := range sortedKeys(profile.ProfileProperties) {
		rows = append(rows, []string{key, formatValue(profile.ProfileProperties[key])})
	}

	for _, row := range rows {
		err := table.Append(row)
		if err != nil {
			return fmt.Errorf("failed to append table row: %w", err)
		}
	}

	return nil
}
