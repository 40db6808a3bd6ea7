package commands

import (
	"fmt"
	"runtime"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// VersionInfo describes the running binary.
type VersionInfo struct {
	Version   string `json:"version"    yaml:"version"`
	Commit    string `json:"commit"     yaml:"commit"`
	Built     string `json:"built"      yaml:"built"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  "Display detailed version information about the sprest CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{
				Version:   version,
				Commit:    commit,
				Built:     date,
				GoVersion: runtime.Version(),
			}

			return renderOutput(cmd.OutOrStdout(), info, func(table *tablewriter.Table) error {
				table.Header("Property", "Value")

				rows := [][]string{
					{"Version", info.Version},
					{"Commit", info.Commit},
					{"Built", info.Built},
					{"Go", info.GoVersion},
				}

				for _, row := range rows {
					err := table.Append(row)
					if err != nil {
						return fmt.Errorf("failed to append table row: %w", err)
					}
				}

				return nil
			})
		},
	}
}
