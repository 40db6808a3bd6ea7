package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/fivetwenty-io/sprest/internal/constants"
	"github.com/fivetwenty-io/sprest/pkg/sprest"
	"github.com/hashicorp/go-hclog"
	"github.com/itchyny/gojq"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// tableFunc fills a table for the table output format.
type tableFunc func(table *tablewriter.Table) error

// renderOutput writes data in the configured output format. A --jq
// expression takes precedence and always prints JSON.
func renderOutput(w io.Writer, data any, fill tableFunc) error {
	if expression := viper.GetString("jq"); expression != "" {
		return renderJQ(w, data, expression)
	}

	switch format := viper.GetString("output"); format {
	case constants.FormatJSON:
		return writeJSON(w, data)
	case constants.FormatYAML:
		return writeYAML(w, data)
	case constants.FormatTable, "":
		table := tablewriter.NewWriter(w)

		err := fill(table)
		if err != nil {
			return err
		}

		err = table.Render()
		if err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %s", constants.ErrInvalidOutputFormat, format)
	}
}

func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to JSON: %w", err)
	}

	return nil
}

func writeYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(constants.JSONIndentSize)

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to YAML: %w", err)
	}

	return encoder.Close()
}

// renderJQ evaluates expression against the JSON form of data and prints
// every result.
func renderJQ(w io.Writer, data any, expression string) error {
	results, err := evaluateJQ(context.Background(), data, expression)
	if err != nil {
		return err
	}

	for _, result := range results {
		if text, ok := result.(string); ok {
			_, _ = fmt.Fprintln(w, text)

			continue
		}

		err := writeJSON(w, result)
		if err != nil {
			return err
		}
	}

	return nil
}

func evaluateJQ(ctx context.Context, data any, expression string) ([]any, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parsing jq expression: %w", err)
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compiling jq expression: %w", err)
	}

	input, err := toJQInput(data)
	if err != nil {
		return nil, err
	}

	var results []any

	iterator := code.RunWithContext(ctx, input)

	for {
		value, ok := iterator.Next()
		if !ok {
			break
		}

		if valueErr, isErr := value.(error); isErr {
			return nil, fmt.Errorf("evaluating jq expression: %w", valueErr)
		}

		results = append(results, value)
	}

	if len(results) == 0 {
		return nil, constants.ErrJQNoResult
	}

	return results, nil
}

// toJQInput converts data to the plain maps, slices and float64 numbers
// gojq operates on.
func toJQInput(data any) (any, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding jq input: %w", err)
	}

	var input any

	err = json.Unmarshal(encoded, &input)
	if err != nil {
		return nil, fmt.Errorf("decoding jq input: %w", err)
	}

	return input, nil
}

// plainValue turns json.Number into int64 or float64 so that YAML output
// prints numbers rather than quoted strings.
func plainValue(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i
		}

		if f, err := typed.Float64(); err == nil {
			return f
		}

		return typed.String()
	case map[string]any:
		plain := make(map[string]any, len(typed))
		for key, nested := range typed {
			plain[key] = plainValue(nested)
		}

		return plain
	case []any:
		plain := make([]any, len(typed))
		for i, nested := range typed {
			plain[i] = plainValue(nested)
		}

		return plain
	default:
		return value
	}
}

// formatValue renders a field value for a table cell.
func formatValue(value any) string {
	var text string

	switch typed := value.(type) {
	case nil:
		return "-"
	case string:
		text = typed
	case json.Number:
		text = typed.String()
	case map[string]any, []any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return constants.NotAvailable
		}

		text = string(encoded)
	default:
		text = fmt.Sprint(typed)
	}

	if len(text) > constants.StringTruncationLength {
		return text[:constants.StringTruncationLength-3] + "..."
	}

	return text
}

// parseFields reads key=value pairs as strings and key:=value pairs as
// JSON values.
func parseFields(pairs []string) (map[string]any, error) {
	fields := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		if key, raw, found := strings.Cut(pair, ":="); found && key != "" && !strings.Contains(key, "=") {
			var value any

			err := json.Unmarshal([]byte(raw), &value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", constants.ErrInvalidFieldFormat, pair, err)
			}

			fields[key] = value

			continue
		}

		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: %s", constants.ErrInvalidFieldFormat, pair)
		}

		fields[key] = value
	}

	return fields, nil
}

// parseData decodes a JSON object given inline or, prefixed with @, read
// from a file.
func parseData(data string) (map[string]any, error) {
	if data == "" {
		return nil, nil
	}

	raw := []byte(data)

	if path, ok := strings.CutPrefix(data, "@"); ok {
		// #nosec G304 -- the path is supplied by the user running the CLI
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading data file: %w", err)
		}

		raw = content
	}

	var fields map[string]any

	err := json.Unmarshal(raw, &fields)
	if err != nil {
		return nil, fmt.Errorf("parsing data as a JSON object: %w", err)
	}

	return fields, nil
}

// parseItemID validates a list item id argument.
func parseItemID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s", constants.ErrInvalidItemID, arg)
	}

	return id, nil
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func toAny(values []string) []any {
	converted := make([]any, len(values))
	for i, value := range values {
		converted[i] = value
	}

	return converted
}

// newLogger builds the CLI logger. --verbose enables debug output on stderr.
func newLogger() sprest.Logger {
	level := hclog.Warn
	if viper.GetBool("verbose") {
		level = hclog.Debug
	}

	return sprest.NewHCLogger(hclog.New(&hclog.LoggerOptions{
		Name:   "sprest",
		Level:  level,
		Output: os.Stderr,
		Color:  colorOption(),
	}))
}

func colorOption() hclog.ColorOption {
	if color.NoColor {
		return hclog.ColorOff
	}

	return hclog.AutoColor
}

// printSuccess writes a status line in green unless color is disabled.
func printSuccess(w io.Writer, format string, args ...any) {
	_, _ = color.New(color.FgGreen).Fprintf(w, format+"\n", args...)
}

// printWarning writes a status line in yellow unless color is disabled.
func printWarning(w io.Writer, format string, args ...any) {
	_, _ = color.New(color.FgYellow).Fprintf(w, format+"\n", args...)
}
