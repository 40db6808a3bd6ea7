package sprest

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Entity type names checked by the converters.
const (
	TypeKeyValue         = "SP.KeyValue"
	TypeSimpleDataRow    = "SP.SimpleDataRow"
	TypeSimpleDataTable  = "SP.SimpleDataTable"
	TypeSearchResult     = "Microsoft.Office.Server.Search.REST.SearchResult"
	TypePersonProperties = "SP.UserProfiles.PersonProperties"
)

// SearchResult is the converted form of a search response.
type SearchResult struct {
	ElapsedTime        int64          `json:"elapsedTime"                  yaml:"elapsed_time"`
	SpellingSuggestion string         `json:"spellingSuggestion"           yaml:"spelling_suggestion"`
	Properties         map[string]any `json:"properties"                   yaml:"properties"`
	PrimaryQueryResult *QueryResult   `json:"primaryQueryResult,omitempty" yaml:"primary_query_result,omitempty"`
	Suggestion         map[string]any `json:"suggestion,omitempty"         yaml:"suggestion,omitempty"`
}

// QueryResult holds the result tables of a search. Tables the server
// returned as null stay nil.
type QueryResult struct {
	QueryID            string           `json:"queryId"            yaml:"query_id"`
	QueryRuleID        string           `json:"queryRuleId"        yaml:"query_rule_id"`
	RelevantResults    []map[string]any `json:"relevantResults"    yaml:"relevant_results"`
	CustomResults      []map[string]any `json:"customResults"      yaml:"custom_results"`
	RefinementResults  []map[string]any `json:"refinementResults"  yaml:"refinement_results"`
	SpecialTermResults []map[string]any `json:"specialTermResults" yaml:"special_term_results"`
}

// PersonProperties is the converted form of a user profile.
type PersonProperties struct {
	AccountName       string         `json:"accountName"       yaml:"account_name"`
	DisplayName       string         `json:"displayName"       yaml:"display_name"`
	Email             string         `json:"email"             yaml:"email"`
	IsFollowed        bool           `json:"isFollowed"        yaml:"is_followed"`
	PersonalURL       string         `json:"personalUrl"       yaml:"personal_url"`
	PictureURL        string         `json:"pictureUrl"        yaml:"picture_url"`
	ProfileProperties map[string]any `json:"profileProperties" yaml:"profile_properties"`
	Title             string         `json:"title"             yaml:"title"`
	UserURL           string         `json:"userUrl"           yaml:"user_url"`
}

func assertType(expected string, value any) (map[string]any, error) {
	object, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected argument to be of type %s", ErrInvalidArguments, expected)
	}

	metadata, ok := object[MetadataKey].(map[string]any)
	if !ok || stringField(metadata, "type") != expected {
		return nil, fmt.Errorf("%w: expected argument to be of type %s", ErrInvalidArguments, expected)
	}

	return object, nil
}

// ConvertKeyValue returns the typed value of an SP.KeyValue entry.
func ConvertKeyValue(keyValue any) (any, error) {
	object, err := assertType(TypeKeyValue, keyValue)
	if err != nil {
		return nil, err
	}

	value := stringField(object, "Value")

	switch stringField(object, "ValueType") {
	case "Edm.Double", "Edm.Float":
		number, parseErr := strconv.ParseFloat(value, 64)
		if parseErr != nil {
			return value, nil
		}

		return number, nil
	case "Edm.Int16", "Edm.Int32", "Edm.Int64", "Edm.Byte":
		number, parseErr := strconv.ParseInt(value, 10, 64)
		if parseErr != nil {
			return value, nil
		}

		return number, nil
	case "Edm.Boolean":
		return value == "true", nil
	default:
		return value, nil
	}
}

// ConvertKeyValues folds SP.KeyValue entries into a map keyed by Key.
// Both bare arrays and {"results": [...]} collections are accepted.
func ConvertKeyValues(keyValues any) (map[string]any, error) {
	entries := collectionEntries(keyValues)
	result := make(map[string]any, len(entries))

	for _, entry := range entries {
		value, err := ConvertKeyValue(entry)
		if err != nil {
			return nil, err
		}

		key := stringField(entry.(map[string]any), "Key")
		result[key] = value
	}

	return result, nil
}

// ConvertSimpleDataRow converts the cells of an SP.SimpleDataRow.
func ConvertSimpleDataRow(row any) (map[string]any, error) {
	object, err := assertType(TypeSimpleDataRow, row)
	if err != nil {
		return nil, err
	}

	return ConvertKeyValues(object["Cells"])
}

// ConvertSimpleDataTable converts every row of an SP.SimpleDataTable.
func ConvertSimpleDataTable(table any) ([]map[string]any, error) {
	object, err := assertType(TypeSimpleDataTable, table)
	if err != nil {
		return nil, err
	}

	rows := collectionEntries(object["Rows"])
	result := make([]map[string]any, 0, len(rows))

	for _, row := range rows {
		converted, err := ConvertSimpleDataRow(row)
		if err != nil {
			return nil, err
		}

		result = append(result, converted)
	}

	return result, nil
}

// ConvertSearchResult converts a Microsoft.Office.Server.Search.REST.SearchResult.
func ConvertSearchResult(searchResult any) (*SearchResult, error) {
	object, err := assertType(TypeSearchResult, searchResult)
	if err != nil {
		return nil, err
	}

	properties, err := ConvertKeyValues(object["Properties"])
	if err != nil {
		return nil, fmt.Errorf("converting search properties: %w", err)
	}

	result := &SearchResult{
		ElapsedTime:        int64Field(object, "ElapsedTime"),
		SpellingSuggestion: stringField(object, "SpellingSuggestion"),
		Properties:         properties,
	}

	primary, ok := object["PrimaryQueryResult"].(map[string]any)
	if !ok {
		return result, nil
	}

	result.PrimaryQueryResult = &QueryResult{
		QueryID:     stringField(primary, "QueryId"),
		QueryRuleID: stringField(primary, "QueryRuleId"),
	}

	tables := []struct {
		name   string
		target *[]map[string]any
	}{
		{"RelevantResults", &result.PrimaryQueryResult.RelevantResults},
		{"CustomResults", &result.PrimaryQueryResult.CustomResults},
		{"RefinementResults", &result.PrimaryQueryResult.RefinementResults},
		{"SpecialTermResults", &result.PrimaryQueryResult.SpecialTermResults},
	}

	for _, table := range tables {
		converted, err := convertResultTable(primary[table.name])
		if err != nil {
			return nil, fmt.Errorf("converting %s: %w", table.name, err)
		}

		*table.target = converted
	}

	return result, nil
}

func convertResultTable(value any) ([]map[string]any, error) {
	object, ok := value.(map[string]any)
	if !ok {
		return nil, nil
	}

	table, ok := object["Table"]
	if !ok || table == nil {
		return nil, nil
	}

	return ConvertSimpleDataTable(table)
}

// ConvertSuggestResult returns query suggestions as received.
func ConvertSuggestResult(suggestResult any) map[string]any {
	object, _ := suggestResult.(map[string]any)

	return object
}

// ConvertPersonProperties converts an SP.UserProfiles.PersonProperties entity.
func ConvertPersonProperties(userResult any) (*PersonProperties, error) {
	object, err := assertType(TypePersonProperties, userResult)
	if err != nil {
		return nil, err
	}

	properties, err := ConvertKeyValues(object["UserProfileProperties"])
	if err != nil {
		return nil, fmt.Errorf("converting user profile properties: %w", err)
	}

	isFollowed, _ := object["IsFollowed"].(bool)

	return &PersonProperties{
		AccountName:       stringField(object, "AccountName"),
		DisplayName:       stringField(object, "DisplayName"),
		Email:             stringField(object, "Email"),
		IsFollowed:        isFollowed,
		PersonalURL:       stringField(object, "PersonalUrl"),
		PictureURL:        stringField(object, "PictureUrl"),
		ProfileProperties: properties,
		Title:             stringField(object, "Title"),
		UserURL:           stringField(object, "UserUrl"),
	}, nil
}

// Capitalize upper-cases the first letter of s.
func Capitalize(s string) string {
	if s == "" {
		return s
	}

	first, size := utf8.DecodeRuneInString(s)

	return string(unicode.ToUpper(first)) + s[size:]
}

// collectionEntries accepts a bare array or a {"results": [...]} wrapper and
// returns the entries that are objects.
func collectionEntries(value any) []any {
	if object, ok := value.(map[string]any); ok {
		value = object[resultsKey]
	}

	entries, _ := value.([]any)
	out := make([]any, 0, len(entries))

	for _, entry := range entries {
		if _, ok := entry.(map[string]any); ok {
			out = append(out, entry)
		}
	}

	return out
}

func int64Field(values map[string]any, key string) int64 {
	text := strings.TrimSpace(stringField(values, key))
	if text == "" {
		return 0
	}

	number, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0
	}

	return number
}
