package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/sprest/internal/constants"
	"github.com/fivetwenty-io/sprest/pkg/sprest"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var defaultSearchColumns = []string{"Title", "Path", "LastModifiedTime"}

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	var (
		selectProperties string
		refiners         []string
		sortList         string
		sourceID         string
		rowLimit         int
		startRow         int
		suggestions      int
		post             bool
		suggest          bool
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the site",
		Long: `Run a SharePoint search query.

--post sends the query in the request body, which allows long queries.
--suggest returns query suggestions instead of results.`,
		Args: cobra.ExactArgs(constants.OneArgumentRequired),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			current, err := createClient(ctx)
			if err != nil {
				return err
			}
			defer current.Close()

			query := &sprest.SearchQuery{
				QueryText:         args[0],
				SelectProperties:  splitList(selectProperties),
				RefinementFilters: refiners,
				SortList:          sortList,
				SourceID:          sourceID,
				RowLimit:          rowLimit,
				StartRow:          startRow,
				SuggestionCount:   suggestions,
			}

			search := current.client.Search()

			var pending *sprest.Pending[sprest.SearchResult]

			switch {
			case suggest:
				pending, err = search.Suggest(ctx, query)
			case post:
				pending, err = search.PostQuery(ctx, query)
			default:
				pending, err = search.Query(ctx, query)
			}

			if err != nil {
				return err
			}

			err = pending.Wait(ctx)
			if err != nil {
				return err
			}

			result := pending.Value()

			if suggest {
				return renderOutput(cmd.OutOrStdout(), plainValue(result.Suggestion), func(table *tablewriter.Table) error {
					return fillSuggestionTable(table, result.Suggestion)
				})
			}

			var rows []map[string]any
			if result.PrimaryQueryResult != nil {
				rows = result.PrimaryQueryResult.RelevantResults
			}

			columns := query.SelectProperties
			if len(columns) == 0 {
				columns = defaultSearchColumns
			}

			err = renderOutput(cmd.OutOrStdout(), searchView(&result), func(table *tablewriter.Table) error {
				return fillSearchTable(table, rows, columns)
			})
			if err != nil {
				return err
			}

			if result.SpellingSuggestion != "" {
				printWarning(cmd.ErrOrStderr(), "Did you mean: %s", result.SpellingSuggestion)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&selectProperties, "select", "", "comma separated managed properties to return")
	cmd.Flags().StringArrayVar(&refiners, "refine", nil, "refinement filter (repeatable)")
	cmd.Flags().StringVar(&sortList, "sort", "", "sort list, e.g. 'Rank:descending'")
	cmd.Flags().StringVar(&sourceID, "source", "", "result source ID")
	cmd.Flags().IntVar(&rowLimit, "rowlimit", constants.DefaultSearchRowLimit, "maximum number of rows")
	cmd.Flags().IntVar(&startRow, "startrow", 0, "first row to return")
	cmd.Flags().IntVar(&suggestions, "suggestions", 0, "number of query suggestions with --suggest")
	cmd.Flags().BoolVar(&post, "post", false, "send the query in the request body")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "return query suggestions")

	return cmd
}

// searchView is the printable form of a search result.
func searchView(result *sprest.SearchResult) map[string]any {
	view := map[string]any{
		"elapsedTime": result.ElapsedTime,
	}

	if result.SpellingSuggestion != "" {
		view["spellingSuggestion"] = result.SpellingSuggestion
	}

	if result.PrimaryQueryResult != nil {
		rows := make([]any, 0, len(result.PrimaryQueryResult.RelevantResults))
		for _, row := range result.PrimaryQueryResult.RelevantResults {
			rows = append(rows, plainValue(row))
		}

		view["relevantResults"] = rows
	}

	return view
}

func fillSearchTable(table *tablewriter.Table, rows []map[string]any, columns []string) error {
	table.Header(toAny(columns)...)

	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, column := range columns {
			cells[i] = formatValue(row[column])
		}

		err := table.Append(cells)
		if err != nil {
			return fmt.Errorf("failed to append table row: %w", err)
		}
	}

	return nil
}

func fillSuggestionTable(table *tablewriter.Table, suggestion map[string]any) error {
	table.Header("Kind", "Suggestions")

	for _, key := range sortedKeys(suggestion) {
		err := table.Append([]string{key, formatValue(suggestion[key])})
		if err != nil {
			return fmt.Errorf("failed to append table row: %w", err)
		}
	}

	return nil
}

func splitList(value string) []string {
	var values []string

	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}

	return values
}
