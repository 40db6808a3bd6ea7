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

var defaultItemColumns = []string{sprest.IDField, "Title", "Created", "Modified"}

// NewItemsCommand creates the list items command group.
func NewItemsCommand() *cobra.Command {
	var hostWeb bool

	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item", "i"},
		Short:   "Manage list items",
		Long:    "Query, create, update and delete items of SharePoint lists",
	}

	cmd.PersistentFlags().BoolVar(&hostWeb, "host-web", false, "address the list in the host web of the site")

	cmd.AddCommand(newItemsListCommand(&hostWeb))
	cmd.AddCommand(newItemsGetCommand(&hostWeb))
	cmd.AddCommand(newItemsCreateCommand(&hostWeb))
	cmd.AddCommand(newItemsUpdateCommand(&hostWeb))
	cmd.AddCommand(newItemsDeleteCommand(&hostWeb))

	return cmd
}

// itemQueryFlags holds the OData query options of the list command.
type itemQueryFlags struct {
	selectFields string
	filter       string
	orderBy      string
	expand       string
	top          int
	skip         int
}

func (f *itemQueryFlags) query() sprest.Query {
	query := sprest.Query{}

	if f.selectFields != "" {
		query[sprest.QuerySelect] = f.selectFields
	}

	if f.filter != "" {
		query[sprest.QueryFilter] = f.filter
	}

	if f.orderBy != "" {
		query[sprest.QueryOrderBy] = f.orderBy
	}

	if f.expand != "" {
		query[sprest.QueryExpand] = f.expand
	}

	if f.top > 0 {
		query[sprest.QueryTop] = f.top
	}

	if f.skip > 0 {
		query[sprest.QuerySkip] = f.skip
	}

	return query
}

func newItemsListCommand(hostWeb *bool) *cobra.Command {
	var (
		flags  itemQueryFlags
		single bool
	)

	cmd := &cobra.Command{
		Use:   "list LIST_TITLE",
		Short: "List items",
		Long:  "Query the items of a list with OData query options",
		Args:  cobra.ExactArgs(constants.OneArgumentRequired),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withList(cmd, args[0], *hostWeb, func(ctx context.Context, list *sprest.List) error {
				result, err := list.Query(ctx, flags.query(), &sprest.QueryOptions{SingleResult: single})
				if err != nil {
					return err
				}

				err = result.Wait(ctx)
				if err != nil {
					return err
				}

				var items []*sprest.Item
				if single {
					items = []*sprest.Item{result.Item()}
				} else {
					items = result.Items()
				}

				columns := itemColumns(items, flags.selectFields)

				var data any = itemViews(items)
				if single {
					data = itemView(result.Item())
				}

				return renderOutput(cmd.OutOrStdout(), data, func(table *tablewriter.Table) error {
					return fillItemsTable(table, items, columns)
				})
			})
		},
	}

	cmd.Flags().StringVar(&flags.selectFields, "select", "", "comma separated fields to return")
	cmd.Flags().StringVar(&flags.filter, "filter", "", "OData filter expression")
	cmd.Flags().StringVar(&flags.orderBy, "orderby", "", "sort order, e.g. 'Modified desc'")
	cmd.Flags().StringVar(&flags.expand, "expand", "", "comma separated lookup fields to expand")
	cmd.Flags().IntVar(&flags.top, "top", 0, "maximum number of items")
	cmd.Flags().IntVar(&flags.skip, "skip", 0, "number of items to skip")
	cmd.Flags().BoolVar(&single, "single", false, "require exactly one matching item")

	return cmd
}

func newItemsGetCommand(hostWeb *bool) *cobra.Command {
	var selectFields string

	cmd := &cobra.Command{
		Use:   "get LIST_TITLE ITEM_ID",
		Short: "Get an item",
		Long:  "Display the fields of one list item",
		Args:  cobra.ExactArgs(constants.TwoArgumentsRequired),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[1])
			if err != nil {
				return err
			}

			return withList(cmd, args[0], *hostWeb, func(ctx context.Context, list *sprest.List) error {
				query := sprest.Query{}
				if selectFields != "" {
					query[sprest.QuerySelect] = selectFields
				}

				result, err := list.Get(ctx, id, query)
				if err != nil {
					return err
				}

				err = result.Wait(ctx)
				if err != nil {
					return err
				}

				return renderItem(cmd, result.Item())
			})
		},
	}

	cmd.Flags().StringVar(&selectFields, "select", "", "comma separated fields to return")

	return cmd
}

func newItemsCreateCommand(hostWeb *bool) *cobra.Command {
	var (
		fieldPairs []string
		data       string
	)

	cmd := &cobra.Command{
		Use:   "create LIST_TITLE",
		Short: "Create an item",
		Long: `Create a list item from --field pairs and/or a JSON --data object.

--field Title=Report stores a string, --field Priority:=2 stores a JSON value.
--data accepts an inline JSON object or @file.`,
		Args: cobra.ExactArgs(constants.OneArgumentRequired),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := collectFields(fieldPairs, data)
			if err != nil {
				return err
			}

			return withList(cmd, args[0], *hostWeb, func(ctx context.Context, list *sprest.List) error {
				result, err := list.Create(ctx, list.NewItem(fields), nil)
				if err != nil {
					return err
				}

				err = result.Wait(ctx)
				if err != nil {
					return err
				}

				printSuccess(cmd.ErrOrStderr(), "Created item %v in %s", result.Item().ID(), list.Title())

				return renderItem(cmd, result.Item())
			})
		},
	}

	cmd.Flags().StringArrayVarP(&fieldPairs, "field", "f", nil, "field as key=value or key:=json (repeatable)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "fields as a JSON object or @file")

	return cmd
}

func newItemsUpdateCommand(hostWeb *bool) *cobra.Command {
	var (
		fieldPairs []string
		data       string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "update LIST_TITLE ITEM_ID",
		Short: "Update an item",
		Long: `Update fields of a list item. Only the given fields are sent.

The item's current ETag guards the update so that changes made by others
since it was read are not overwritten. --force skips the check.`,
		Args: cobra.ExactArgs(constants.TwoArgumentsRequired),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[1])
			if err != nil {
				return err
			}

			fields, err := collectFields(fieldPairs, data)
			if err != nil {
				return err
			}

			return withList(cmd, args[0], *hostWeb, func(ctx context.Context, list *sprest.List) error {
				item := list.NewItem(fields)
				item.Set(sprest.IDField, id)

				if !force {
					current, err := list.Get(ctx, id, sprest.Query{sprest.QuerySelect: sprest.IDField})
					if err != nil {
						return err
					}

					err = current.Wait(ctx)
					if err != nil {
						return err
					}

					item.Metadata.ETag = current.Item().Metadata.ETag
					if itemType := current.Item().Metadata.Type; itemType != "" {
						item.Metadata.Type = itemType
					}
				}

				result, err := list.Update(ctx, item, &sprest.UpdateOptions{Force: force})
				if err != nil {
					return err
				}

				err = result.Wait(ctx)
				if err != nil {
					if sprest.IsPreconditionFailed(err) {
						return fmt.Errorf("item %d was changed by someone else, retry or use --force: %w", id, err)
					}

					return err
				}

				printSuccess(cmd.OutOrStdout(), "Updated item %d in %s", id, list.Title())

				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&fieldPairs, "field", "f", nil, "field as key=value or key:=json (repeatable)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "fields as a JSON object or @file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite changes made since the item was read")

	return cmd
}

func newItemsDeleteCommand(hostWeb *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete LIST_TITLE ITEM_ID",
		Short: "Delete an item",
		Long:  "Delete a list item regardless of its version",
		Args:  cobra.ExactArgs(constants.TwoArgumentsRequired),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[1])
			if err != nil {
				return err
			}

			return withList(cmd, args[0], *hostWeb, func(ctx context.Context, list *sprest.List) error {
				result, err := list.Delete(ctx, list.NewItem(map[string]any{sprest.IDField: id}))
				if err != nil {
					return err
				}

				err = result.Wait(ctx)
				if err != nil {
					return err
				}

				printSuccess(cmd.OutOrStdout(), "Deleted item %d from %s", id, list.Title())

				return nil
			})
		},
	}

	return cmd
}

// withList creates a client, defines the list titled title and runs fn.
func withList(cmd *cobra.Command, title string, hostWeb bool, fn func(context.Context, *sprest.List) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	current, err := createClient(ctx)
	if err != nil {
		return err
	}
	defer current.Close()

	list, err := current.client.Lists().Define(title, &sprest.ListOptions{InHostWeb: hostWeb})
	if err != nil {
		return err
	}

	return fn(ctx, list)
}

func collectFields(fieldPairs []string, data string) (map[string]any, error) {
	fields, err := parseData(data)
	if err != nil {
		return nil, err
	}

	pairs, err := parseFields(fieldPairs)
	if err != nil {
		return nil, err
	}

	if fields == nil {
		fields = make(map[string]any, len(pairs))
	}

	for key, value := range pairs {
		fields[key] = value
	}

	if len(fields) == 0 {
		return nil, constants.ErrFieldsRequired
	}

	return fields, nil
}

// itemView is the printable form of an item.
func itemView(item *sprest.Item) map[string]any {
	if item == nil {
		return nil
	}

	view, _ := plainValue(item.Fields).(map[string]any)
	if view == nil {
		view = make(map[string]any)
	}

	if !item.Metadata.IsZero() {
		view[sprest.MetadataKey] = item.Metadata
	}

	return view
}

func itemViews(items []*sprest.Item) []map[string]any {
	views := make([]map[string]any, 0, len(items))
	for _, item := range items {
		views = append(views, itemView(item))
	}

	return views
}

func renderItem(cmd *cobra.Command, item *sprest.Item) error {
	return renderOutput(cmd.OutOrStdout(), itemView(item), func(table *tablewriter.Table) error {
		table.Header("Field", "Value")

		for _, key := range sortedKeys(item.Fields) {
			if isDeferred(item.Fields[key]) {
				continue
			}

			err := table.Append([]string{key, formatValue(item.Fields[key])})
			if err != nil {
				return fmt.Errorf("failed to append table row: %w", err)
			}
		}

		if item.Metadata.ETag != "" {
			err := table.Append([]string{"ETag", item.Metadata.ETag})
			if err != nil {
				return fmt.Errorf("failed to append table row: %w", err)
			}
		}

		return nil
	})
}

// itemColumns returns the selected fields, or the default columns present
// in items, or every field when none of the defaults is present.
func itemColumns(items []*sprest.Item, selectFields string) []string {
	if selectFields != "" {
		var columns []string

		for _, field := range strings.Split(selectFields, ",") {
			if field = strings.TrimSpace(field); field != "" {
				columns = append(columns, field)
			}
		}

		return columns
	}

	present := make(map[string]any)

	for _, item := range items {
		if item == nil {
			continue
		}

		for key, value := range item.Fields {
			if !isDeferred(value) {
				present[key] = value
			}
		}
	}

	var columns []string

	for _, column := range defaultItemColumns {
		if _, ok := present[column]; ok {
			columns = append(columns, column)
		}
	}

	if len(columns) == 0 {
		columns = sortedKeys(present)
	}

	return columns
}

func fillItemsTable(table *tablewriter.Table, items []*sprest.Item, columns []string) error {
	table.Header(toAny(columns)...)

	for _, item := range items {
		if item == nil {
			continue
		}

		row := make([]string, len(columns))
		for i, column := range columns {
			row[i] = formatValue(item.Get(column))
		}

		err := table.Append(row)
		if err != nil {
			return fmt.Errorf("failed to append table row: %w", err)
		}
	}

	return nil
}

// isDeferred reports whether value is an unexpanded navigation link.
func isDeferred(value any) bool {
	object, ok := value.(map[string]any)
	if !ok {
		return false
	}

	_, deferred := object["__deferred"]

	return deferred
}
