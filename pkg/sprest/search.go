package sprest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Non-list actions.
const (
	ActionSearch      Action = "search"
	ActionUserProfile Action = "profile"
)

const (
	searchQueryAddress   = "search/query"
	searchPostAddress    = "search/postquery"
	searchSuggestAddress = "search/suggest"
	searchRequestType    = "Microsoft.Office.Server.Search.REST.SearchRequest"
	sortDescending       = "descending"
)

// SearchQuery holds the search parameters shared by query, postquery and
// suggest requests. Zero values are omitted.
type SearchQuery struct {
	QueryText         string
	QueryTemplate     string
	SelectProperties  []string
	RefinementFilters []string
	// SortList is a comma separated list of "Property:ascending|descending".
	SortList       string
	SourceID       string
	RowLimit       int
	StartRow       int
	TrimDuplicates *bool
	// SuggestionCount limits query suggestions returned by Suggest.
	SuggestionCount int
}

// Search runs SharePoint search requests.
type Search struct {
	transport Transport
	logger    Logger
}

// NewSearch returns a search client over transport.
func NewSearch(transport Transport, logger Logger) (*Search, error) {
	if transport == nil {
		return nil, ErrTransportRequired
	}

	return &Search{transport: transport, logger: loggerOrNop(logger)}, nil
}

// Query runs a GET search/query request.
func (s *Search) Query(ctx context.Context, query *SearchQuery) (*Pending[SearchResult], error) {
	params, err := searchParams(query)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, newReadDescriptor(ActionSearch, AppendQueryString(searchQueryAddress, params))), nil
}

// PostQuery runs a POST search/postquery request, which accepts longer
// query texts than Query.
func (s *Search) PostQuery(ctx context.Context, query *SearchQuery) (*Pending[SearchResult], error) {
	if query == nil || strings.TrimSpace(query.QueryText) == "" {
		return nil, fmt.Errorf("%w: query text is required", ErrInvalidArguments)
	}

	body, err := json.Marshal(map[string]any{"request": searchRequestBody(query)})
	if err != nil {
		return nil, fmt.Errorf("marshaling search request: %w", err)
	}

	desc := newReadDescriptor(ActionSearch, searchPostAddress)
	desc.Method = http.MethodPost
	desc.Body = body
	desc.Headers.Set(HeaderContentType, ContentTypeVerbose)

	return s.run(ctx, desc), nil
}

// Suggest runs a GET search/suggest request.
func (s *Search) Suggest(ctx context.Context, query *SearchQuery) (*Pending[SearchResult], error) {
	if query == nil || strings.TrimSpace(query.QueryText) == "" {
		return nil, fmt.Errorf("%w: query text is required", ErrInvalidArguments)
	}

	params := Query{"querytext": quoteLiteral(query.QueryText)}
	if query.SuggestionCount > 0 {
		params["inumberofquerysuggestions"] = query.SuggestionCount
	}

	return s.run(ctx, newReadDescriptor(ActionSearch, AppendQueryString(searchSuggestAddress, params))), nil
}

func (s *Search) run(ctx context.Context, desc *RequestDescriptor) *Pending[SearchResult] {
	s.logger.Debug("search request", map[string]interface{}{
		"method": desc.Method,
		"url":    desc.URL,
	})

	return fetch(ctx, s.transport, desc, convertSearchPayload)
}

func convertSearchPayload(data any) (*SearchResult, any, error) {
	object, ok := data.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: response does not contain a valid search result", ErrBadResponse)
	}

	for _, key := range []string{"query", "postquery"} {
		raw, found := object[key]
		if !found {
			continue
		}

		result, err := ConvertSearchResult(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}

		return result, raw, nil
	}

	if raw, found := object["suggest"]; found {
		return &SearchResult{Suggestion: ConvertSuggestResult(raw)}, raw, nil
	}

	return nil, nil, fmt.Errorf("%w: response does not contain a valid search result", ErrBadResponse)
}

func searchParams(query *SearchQuery) (Query, error) {
	if query == nil || strings.TrimSpace(query.QueryText) == "" {
		return nil, fmt.Errorf("%w: query text is required", ErrInvalidArguments)
	}

	params := Query{"querytext": quoteLiteral(query.QueryText)}

	if query.QueryTemplate != "" {
		params["querytemplate"] = quoteLiteral(query.QueryTemplate)
	}

	if len(query.SelectProperties) > 0 {
		params["selectproperties"] = quoteLiteral(strings.Join(query.SelectProperties, ","))
	}

	if len(query.RefinementFilters) > 0 {
		params["refinementfilters"] = quoteLiteral(strings.Join(query.RefinementFilters, ","))
	}

	if query.SortList != "" {
		params["sortlist"] = quoteLiteral(query.SortList)
	}

	if query.SourceID != "" {
		params["sourceid"] = quoteLiteral(query.SourceID)
	}

	if query.RowLimit > 0 {
		params["rowlimit"] = query.RowLimit
	}

	if query.StartRow > 0 {
		params["startrow"] = query.StartRow
	}

	if query.TrimDuplicates != nil {
		params["trimduplicates"] = strconv.FormatBool(*query.TrimDuplicates)
	}

	return params, nil
}

func searchRequestBody(query *SearchQuery) map[string]any {
	request := map[string]any{
		MetadataKey: map[string]string{"type": searchRequestType},
		"Querytext": query.QueryText,
	}

	if query.QueryTemplate != "" {
		request["QueryTemplate"] = query.QueryTemplate
	}

	if len(query.SelectProperties) > 0 {
		request["SelectProperties"] = map[string]any{resultsKey: query.SelectProperties}
	}

	if len(query.RefinementFilters) > 0 {
		request["RefinementFilters"] = map[string]any{resultsKey: query.RefinementFilters}
	}

	if sorts := parseSortList(query.SortList); len(sorts) > 0 {
		request["SortList"] = map[string]any{resultsKey: sorts}
	}

	if query.SourceID != "" {
		request["SourceId"] = query.SourceID
	}

	if query.RowLimit > 0 {
		request["RowLimit"] = query.RowLimit
	}

	if query.StartRow > 0 {
		request["StartRow"] = query.StartRow
	}

	if query.TrimDuplicates != nil {
		request["TrimDuplicates"] = *query.TrimDuplicates
	}

	return request
}

// parseSortList turns "Rank:descending,Title" into sort entries. Direction 0
// is ascending and 1 descending.
func parseSortList(sortList string) []map[string]any {
	if strings.TrimSpace(sortList) == "" {
		return nil
	}

	var sorts []map[string]any

	for _, part := range strings.Split(sortList, ",") {
		property, direction, _ := strings.Cut(strings.TrimSpace(part), ":")
		if property == "" {
			continue
		}

		value := 0
		if strings.EqualFold(direction, sortDescending) {
			value = 1
		}

		sorts = append(sorts, map[string]any{"Property": property, "Direction": value})
	}

	return sorts
}

// quoteLiteral renders s as an OData string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func newReadDescriptor(action Action, address string) *RequestDescriptor {
	desc := &RequestDescriptor{
		Action:    action,
		Method:    http.MethodGet,
		URL:       address,
		Headers:   http.Header{},
		Transform: UnwrapResponse,
	}
	desc.Headers.Set(HeaderAccept, ContentTypeVerbose)

	return desc
}

// fetch performs desc in the background and settles the returned handle
// with the converted payload.
func fetch[T any](ctx context.Context, transport Transport, desc *RequestDescriptor, convert func(any) (*T, any, error)) *Pending[T] {
	pending := newPending[T]()

	go func() {
		resp, err := transport.Do(ctx, desc)
		if err != nil {
			pending.reject(err)

			return
		}

		data, err := desc.Transform(resp.Body)
		if err != nil {
			pending.reject(err)

			return
		}

		value, raw, err := convert(data)
		if err != nil {
			pending.reject(err)

			return
		}

		pending.resolve(*value, raw)
	}()

	return pending
}
