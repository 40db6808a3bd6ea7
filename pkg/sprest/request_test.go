package sprest_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/fivetwenty-io/sprest/pkg/sprest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tasksAddress = "web/lists/getByTitle('Tasks')"

func persistedItem(etag string) *sprest.Item {
	item := sprest.NewItem(map[string]any{
		"Id":      3,
		"Title":   "Existing",
		"Created": "2024-01-01",
		"__metadata": map[string]any{
			"type": "SP.Data.TasksListItem",
			"id":   "Web/Lists(guid'a')/Items(3)",
			"etag": etag,
		},
	})

	return item
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestBuildRequest(t *testing.T) {
	t.Parallel()

	t.Run("get", func(t *testing.T) {
		t.Parallel()

		desc, err := sprest.BuildRequest(tasksAddress, sprest.ActionGet, &sprest.RequestOptions{
			ID:    5,
			Query: sprest.Query{"$select": "Id,Title"},
		})
		require.NoError(t, err)

		assert.Equal(t, http.MethodGet, desc.Method)
		assert.Equal(t, tasksAddress+"/items(5)?$select=Id,Title", desc.URL)
		assert.Equal(t, sprest.ContentTypeVerbose, desc.Headers.Get("Accept"))
		assert.Empty(t, desc.Headers.Get("Content-Type"))
		assert.Nil(t, desc.Body)
		assert.NotNil(t, desc.Transform)
	})

	t.Run("get without id", func(t *testing.T) {
		t.Parallel()

		_, err := sprest.BuildRequest(tasksAddress, sprest.ActionGet, &sprest.RequestOptions{})
		require.Error(t, err)
		assert.True(t, sprest.IsInvalidArguments(err))
		assert.Contains(t, err.Error(), "options must have an id")
	})

	t.Run("query", func(t *testing.T) {
		t.Parallel()

		desc, err := sprest.BuildRequest(tasksAddress, sprest.ActionQuery, &sprest.RequestOptions{
			Query: sprest.Query{"$top": 2, "$filter": "Status eq 'Open'"},
		})
		require.NoError(t, err)

		assert.Equal(t, http.MethodGet, desc.Method)
		assert.Equal(t, tasksAddress+"/items?$filter=Status eq 'Open'&$top=2", desc.URL)
	})

	t.Run("query without options", func(t *testing.T) {
		t.Parallel()

		desc, err := sprest.BuildRequest(tasksAddress, sprest.ActionQuery, nil)
		require.NoError(t, err)
		assert.Equal(t, tasksAddress+"/items", desc.URL)
	})

	t.Run("create drops expand", func(t *testing.T) {
		t.Parallel()

		item := sprest.NewItem(map[string]any{"Title": "New", "Modified": "now"})
		item.Metadata.Type = "SP.Data.TasksListItem"
		query := sprest.Query{"$select": "Id", "$expand": "Author"}

		desc, err := sprest.BuildRequest(tasksAddress, sprest.ActionCreate, &sprest.RequestOptions{
			Item:           item,
			Query:          query,
			ReadOnlyFields: sprest.DefaultReadOnlyFields,
		})
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, desc.Method)
		assert.Equal(t, tasksAddress+"/items?$select=Id", desc.URL)
		assert.Equal(t, sprest.ContentTypeVerbose, desc.Headers.Get("Content-Type"))
		assert.Empty(t, desc.Headers.Get(sprest.HeaderHTTPMethod))
		assert.Contains(t, query, "$expand", "caller query must not be modified")

		var body map[string]any
		require.NoError(t, json.Unmarshal(desc.Body, &body))
		assert.Equal(t, map[string]any{
			"Title":      "New",
			"__metadata": map[string]any{"type": "SP.Data.TasksListItem"},
		}, body)
	})

	t.Run("create without item", func(t *testing.T) {
		t.Parallel()

		_, err := sprest.BuildRequest(tasksAddress, sprest.ActionCreate, &sprest.RequestOptions{})
		require.Error(t, err)
		assert.True(t, sprest.IsInvalidArguments(err))
	})

	t.Run("update uses etag", func(t *testing.T) {
		t.Parallel()

		desc, err := sprest.BuildRequest(tasksAddress, sprest.ActionUpdate, &sprest.RequestOptions{
			Item:           persistedItem(`"4"`),
			Query:          sprest.Query{"$select": "Id"},
			ReadOnlyFields: sprest.DefaultReadOnlyFields,
		})
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, desc.Method)
		assert.Equal(t, tasksAddress+"/items(3)", desc.URL)
		assert.Equal(t, "MERGE", desc.Headers.Get(sprest.HeaderHTTPMethod))
		assert.Equal(t, `"4"`, desc.Headers.Get(sprest.HeaderIfMatch))
		assert.Equal(t, `"4"`, desc.ETag)

		var body map[string]any
		require.NoError(t, json.Unmarshal(desc.Body, &body))
		assert.NotContains(t, body, "Created")
		assert.Equal(t, "Existing", body["Title"])
	})

	t.Run("forced update", func(t *testing.T) {
		t.Parallel()

		desc, err := sprest.BuildRequest(tasksAddress, sprest.ActionUpdate, &sprest.RequestOptions{
			Item:  persistedItem(`"4"`),
			Force: true,
		})
		require.NoError(t, err)

		assert.Equal(t, "*", desc.Headers.Get(sprest.HeaderIfMatch))
		assert.Empty(t, desc.ETag)
	})

	t.Run("update without etag", func(t *testing.T) {
		t.Parallel()

		desc, err := sprest.BuildRequest(tasksAddress, sprest.ActionUpdate, &sprest.RequestOptions{
			Item: persistedItem(""),
		})
		require.NoError(t, err)
		assert.Equal(t, "*", desc.Headers.Get(sprest.HeaderIfMatch))
	})

	t.Run("update preconditions", func(t *testing.T) {
		t.Parallel()

		noMetadata := sprest.NewItem(map[string]any{"Id": 1})
		noID := sprest.NewItem(map[string]any{"__metadata": map[string]any{"type": "T"}})

		for _, opts := range []*sprest.RequestOptions{{}, {Item: noMetadata}, {Item: noID}} {
			_, err := sprest.BuildRequest(tasksAddress, sprest.ActionUpdate, opts)
			require.Error(t, err)
			assert.True(t, sprest.IsInvalidArguments(err))
		}
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()

		desc, err := sprest.BuildRequest(tasksAddress, sprest.ActionDelete, &sprest.RequestOptions{
			Item:  persistedItem(`"9"`),
			Query: sprest.Query{"$select": "Id"},
		})
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, desc.Method)
		assert.Equal(t, tasksAddress+"/items(3)", desc.URL)
		assert.Equal(t, http.MethodDelete, desc.Headers.Get(sprest.HeaderHTTPMethod))
		assert.Equal(t, "*", desc.Headers.Get(sprest.HeaderIfMatch))
		assert.Nil(t, desc.Body)
	})

	t.Run("unknown action", func(t *testing.T) {
		t.Parallel()

		_, err := sprest.BuildRequest(tasksAddress, sprest.Action("purge"), &sprest.RequestOptions{})
		require.Error(t, err)
		assert.True(t, sprest.IsInvalidArguments(err))
	})

	t.Run("host web flag carried", func(t *testing.T) {
		t.Parallel()

		desc, err := sprest.BuildRequest(tasksAddress, sprest.ActionQuery, &sprest.RequestOptions{HostWeb: true})
		require.NoError(t, err)
		assert.True(t, desc.HostWeb)
	})
}
