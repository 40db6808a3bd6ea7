package sprest

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// OData system query options understood by list endpoints.
const (
	QuerySelect  = "$select"
	QueryFilter  = "$filter"
	QueryOrderBy = "$orderby"
	QueryTop     = "$top"
	QuerySkip    = "$skip"
	QueryExpand  = "$expand"
	QuerySort    = "$sort"

	queryKeyPrefix = "$"
)

var recognizedQueryKeys = map[string]struct{}{
	QuerySelect:  {},
	QueryFilter:  {},
	QueryOrderBy: {},
	QueryTop:     {},
	QuerySkip:    {},
	QueryExpand:  {},
	QuerySort:    {},
}

// Query maps OData query option names to values. Values may be scalars,
// slices (rendered comma separated) or maps and structs (rendered as JSON).
type Query map[string]any

// Clone returns a shallow copy, or nil for an empty query.
func (q Query) Clone() Query {
	if len(q) == 0 {
		return nil
	}

	out := make(Query, len(q))
	for key, value := range q {
		out[key] = value
	}

	return out
}

// QueryPrecedence decides which side wins when type-level default query
// options and call-supplied options name the same key.
type QueryPrecedence int

const (
	// CallWins lets call-supplied options override the type defaults.
	CallWins QueryPrecedence = iota
	// DefaultsWin lets the type defaults override call-supplied options.
	DefaultsWin
)

// String implements fmt.Stringer.
func (p QueryPrecedence) String() string {
	if p == DefaultsWin {
		return "defaults-win"
	}

	return "call-wins"
}

// NormalizeQuery prefixes keys with "$" and drops keys that are not OData
// system query options, reporting each dropped key to diag. It returns nil
// when nothing survives, so callers can tell "no query" from an empty one.
// The input is never modified.
func NormalizeQuery(raw Query, diag Diagnostics) Query {
	if len(raw) == 0 {
		return nil
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	normalized := make(Query, len(raw))

	for _, key := range keys {
		name := key
		if !strings.HasPrefix(name, queryKeyPrefix) {
			name = queryKeyPrefix + name
		}

		if _, ok := recognizedQueryKeys[name]; !ok {
			if diag != nil {
				diag.Warn("invalid query parameter key", map[string]interface{}{
					"key": key,
				})
			}

			continue
		}

		normalized[name] = raw[key]
	}

	if len(normalized) == 0 {
		return nil
	}

	return normalized
}

// MergeQuery combines type-level defaults with call-supplied options.
func MergeQuery(defaults, call Query, precedence QueryPrecedence) Query {
	base, overlay := defaults, call
	if precedence == DefaultsWin {
		base, overlay = call, defaults
	}

	merged := make(Query, len(base)+len(overlay))
	for key, value := range base {
		merged[key] = value
	}

	for key, value := range overlay {
		merged[key] = value
	}

	if len(merged) == 0 {
		return nil
	}

	return merged
}

// BuildQueryString renders q as key=value pairs in key order joined by "&".
// Values are not percent-encoded; that is left to the transport.
func BuildQueryString(q Query) string {
	if len(q) == 0 {
		return ""
	}

	keys := make([]string, 0, len(q))
	for key := range q {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))

	for _, key := range keys {
		value, ok := formatQueryValue(q[key])
		if !ok {
			continue
		}

		pairs = append(pairs, key+"="+value)
	}

	return strings.Join(pairs, "&")
}

// AppendQueryString appends the rendered query to address using "?" or "&".
func AppendQueryString(address string, q Query) string {
	queryString := BuildQueryString(q)
	if queryString == "" {
		return address
	}

	separator := "?"
	if strings.Contains(address, "?") {
		separator = "&"
	}

	return address + separator + queryString
}

func formatQueryValue(value any) (string, bool) {
	if value == nil {
		return "", false
	}

	switch typed := value.(type) {
	case string:
		return typed, true
	case json.Number:
		return typed.String(), true
	case []string:
		return joinUnique(typed), true
	case []byte:
		return string(typed), true
	}

	rv := reflect.ValueOf(value)

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "", false
		}

		return formatQueryValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "", false
		}

		parts := make([]string, 0, rv.Len())

		for i := range rv.Len() {
			part, ok := formatQueryValue(rv.Index(i).Interface())
			if ok {
				parts = append(parts, part)
			}
		}

		return joinUnique(parts), true
	case reflect.Map, reflect.Struct:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value), true
		}

		return string(data), true
	default:
		return fmt.Sprint(value), true
	}
}

func joinUnique(values []string) string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))

	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}

		seen[value] = struct{}{}
		unique = append(unique, value)
	}

	return strings.Join(unique, ",")
}
