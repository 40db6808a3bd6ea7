package sprest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/fivetwenty-io/sprest/pkg/sprest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFuture(t *testing.T, future *sprest.Future) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := future.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)

	return err
}

func envelope(t *testing.T, payload any) string {
	t.Helper()

	data, err := json.Marshal(map[string]any{"d": payload})
	require.NoError(t, err)

	return string(data)
}

func TestNewSearch_RequiresTransport(t *testing.T) {
	t.Parallel()

	_, err := sprest.NewSearch(nil, nil)
	require.ErrorIs(t, err, sprest.ErrTransportRequired)
}

func TestSearch_Query(t *testing.T) {
	t.Parallel()

	body := envelope(t, map[string]any{"query": searchResultPayload()})
	transport := &fakeTransport{respond: jsonResponse(http.StatusOK, body)}

	search, err := sprest.NewSearch(transport, nil)
	require.NoError(t, err)

	trim := false
	pending, err := search.Query(context.Background(), &sprest.SearchQuery{
		QueryText:        "budget's",
		SelectProperties: []string{"Title", "Path"},
		RowLimit:         5,
		TrimDuplicates:   &trim,
	})
	require.NoError(t, err)

	require.NoError(t, waitFuture(t, pending.Future))
	assert.True(t, pending.Resolved())
	assert.Equal(t, "q-1", pending.Value().PrimaryQueryResult.QueryID)
	assert.NotNil(t, pending.Raw())

	requests := transport.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodGet, requests[0].Method)
	assert.Equal(t,
		"search/query?querytext='budget''s'&rowlimit=5&selectproperties='Title,Path'&trimduplicates=false",
		requests[0].URL)
}

func TestSearch_Query_RequiresText(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	search, err := sprest.NewSearch(transport, nil)
	require.NoError(t, err)

	for _, query := range []*sprest.SearchQuery{nil, {QueryText: "  "}} {
		_, err := search.Query(context.Background(), query)
		assert.True(t, sprest.IsInvalidArguments(err))

		_, err = search.PostQuery(context.Background(), query)
		assert.True(t, sprest.IsInvalidArguments(err))

		_, err = search.Suggest(context.Background(), query)
		assert.True(t, sprest.IsInvalidArguments(err))
	}

	assert.Empty(t, transport.Requests())
}

func TestSearch_PostQuery(t *testing.T) {
	t.Parallel()

	body := envelope(t, map[string]any{"postquery": searchResultPayload()})
	transport := &fakeTransport{respond: jsonResponse(http.StatusOK, body)}

	search, err := sprest.NewSearch(transport, nil)
	require.NoError(t, err)

	pending, err := search.PostQuery(context.Background(), &sprest.SearchQuery{
		QueryText: "contracts",
		SortList:  "Rank:descending,Title",
		StartRow:  20,
	})
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, pending.Future))

	requests := transport.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodPost, requests[0].Method)
	assert.Equal(t, "search/postquery", requests[0].URL)
	assert.Equal(t, sprest.ContentTypeVerbose, requests[0].Headers.Get("Content-Type"))
	assert.JSONEq(t, `{"request":{
		"__metadata":{"type":"Microsoft.Office.Server.Search.REST.SearchRequest"},
		"Querytext":"contracts",
		"SortList":{"results":[{"Property":"Rank","Direction":1},{"Property":"Title","Direction":0}]},
		"StartRow":20
	}}`, string(requests[0].Body))
}

func TestSearch_Suggest(t *testing.T) {
	t.Parallel()

	suggest := map[string]any{"Queries": map[string]any{"results": []any{"budget 2024"}}}
	transport := &fakeTransport{respond: jsonResponse(http.StatusOK, envelope(t, map[string]any{"suggest": suggest}))}

	search, err := sprest.NewSearch(transport, nil)
	require.NoError(t, err)

	pending, err := search.Suggest(context.Background(), &sprest.SearchQuery{QueryText: "budg", SuggestionCount: 3})
	require.NoError(t, err)
	require.NoError(t, waitFuture(t, pending.Future))

	assert.Equal(t, suggest, pending.Value().Suggestion)
	assert.Equal(t, "search/suggest?inumberofquerysuggestions=3&querytext='budg'", transport.Requests()[0].URL)
}

func TestSearch_BadResponse(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{respond: jsonResponse(http.StatusOK, `{"d":{"unexpected":{}}}`)}
	search, err := sprest.NewSearch(transport, nil)
	require.NoError(t, err)

	pending, err := search.Query(context.Background(), &sprest.SearchQuery{QueryText: "x"})
	require.NoError(t, err)

	err = waitFuture(t, pending.Future)
	require.Error(t, err)
	assert.True(t, sprest.IsBadResponse(err))
	assert.False(t, pending.Resolved())
	assert.Nil(t, pending.Value().PrimaryQueryResult)
}

func TestSearch_ConversionErrorIsBadResponse(t *testing.T) {
	t.Parallel()

	body := `{"d":{"query":{"__metadata":{"type":"SP.Wrong"}}}}`
	search, err := sprest.NewSearch(&fakeTransport{respond: jsonResponse(http.StatusOK, body)}, nil)
	require.NoError(t, err)

	pending, err := search.Query(context.Background(), &sprest.SearchQuery{QueryText: "x"})
	require.NoError(t, err)

	err = waitFuture(t, pending.Future)
	assert.True(t, sprest.IsBadResponse(err))
	assert.False(t, sprest.IsInvalidArguments(err))
}
