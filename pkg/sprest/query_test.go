package sprest_test

import (
	"sync"
	"testing"

	"github.com/fivetwenty-io/sprest/pkg/sprest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type warning struct {
	msg    string
	fields map[string]interface{}
}

// recordingLogger captures every log call.
type recordingLogger struct {
	mu       sync.Mutex
	warnings []warning
	debugs   []string
	errors   []string
}

func (r *recordingLogger) Debug(msg string, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.debugs = append(r.debugs, msg)
}

func (r *recordingLogger) Info(string, map[string]interface{}) {}

func (r *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.warnings = append(r.warnings, warning{msg: msg, fields: fields})
}

func (r *recordingLogger) Error(msg string, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, msg)
}

func (r *recordingLogger) Warnings() []warning {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]warning, len(r.warnings))
	copy(out, r.warnings)

	return out
}

func TestNormalizeQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    sprest.Query
		expected sprest.Query
		warned   []string
	}{
		{
			name:     "nil input",
			input:    nil,
			expected: nil,
		},
		{
			name:     "prefixes bare keys",
			input:    sprest.Query{"select": "Id,Title", "top": 5},
			expected: sprest.Query{"$select": "Id,Title", "$top": 5},
		},
		{
			name:     "keeps prefixed keys",
			input:    sprest.Query{"$filter": "Id eq 1"},
			expected: sprest.Query{"$filter": "Id eq 1"},
		},
		{
			name:     "drops unknown keys",
			input:    sprest.Query{"select": "Id", "foo": "bar"},
			expected: sprest.Query{"$select": "Id"},
			warned:   []string{"foo"},
		},
		{
			name:     "all unknown yields nil",
			input:    sprest.Query{"bogus": 1, "$nope": 2},
			expected: nil,
			warned:   []string{"$nope", "bogus"},
		},
		{
			name: "every recognized key",
			input: sprest.Query{
				"select": 1, "filter": 2, "orderby": 3, "top": 4,
				"skip": 5, "expand": 6, "sort": 7,
			},
			expected: sprest.Query{
				"$select": 1, "$filter": 2, "$orderby": 3, "$top": 4,
				"$skip": 5, "$expand": 6, "$sort": 7,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger := &recordingLogger{}
			result := sprest.NormalizeQuery(tt.input, logger)

			assert.Equal(t, tt.expected, result)

			var warnedKeys []string
			for _, w := range logger.Warnings() {
				assert.Equal(t, "invalid query parameter key", w.msg)
				warnedKeys = append(warnedKeys, w.fields["key"].(string))
			}

			assert.Equal(t, tt.warned, warnedKeys)
		})
	}
}

func TestNormalizeQuery_DoesNotModifyInput(t *testing.T) {
	t.Parallel()

	input := sprest.Query{"select": "Id", "junk": true}
	_ = sprest.NormalizeQuery(input, nil)

	assert.Equal(t, sprest.Query{"select": "Id", "junk": true}, input)
}

func TestNormalizeQuery_Idempotent(t *testing.T) {
	t.Parallel()

	once := sprest.NormalizeQuery(sprest.Query{"select": "Id", "top": 3, "x": 1}, nil)
	twice := sprest.NormalizeQuery(once, nil)

	assert.Equal(t, once, twice)
}

func TestBuildQueryString(t *testing.T) {
	t.Parallel()

	type ref struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name     string
		query    sprest.Query
		expected string
	}{
		{
			name:     "empty",
			query:    nil,
			expected: "",
		},
		{
			name:     "sorted keys",
			query:    sprest.Query{"$top": 5, "$filter": "Status eq 'Done'", "$select": "Id"},
			expected: "$filter=Status eq 'Done'&$select=Id&$top=5",
		},
		{
			name:     "string slice joined and deduplicated",
			query:    sprest.Query{"$select": []string{"Id", "Title", "Id"}},
			expected: "$select=Id,Title",
		},
		{
			name:     "any slice joined",
			query:    sprest.Query{"$expand": []any{"Author", "Editor"}},
			expected: "$expand=Author,Editor",
		},
		{
			name:     "map rendered as JSON",
			query:    sprest.Query{"$sort": map[string]int{"Title": 1}},
			expected: `$sort={"Title":1}`,
		},
		{
			name:     "struct rendered as JSON",
			query:    sprest.Query{"$sort": ref{Name: "x"}},
			expected: `$sort={"name":"x"}`,
		},
		{
			name:     "nil values skipped",
			query:    sprest.Query{"$top": nil, "$skip": 10},
			expected: "$skip=10",
		},
		{
			name:     "booleans formatted",
			query:    sprest.Query{"$filter": true},
			expected: "$filter=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, sprest.BuildQueryString(tt.query))
		})
	}
}

func TestAppendQueryString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "items", sprest.AppendQueryString("items", nil))
	assert.Equal(t, "items?$top=1", sprest.AppendQueryString("items", sprest.Query{"$top": 1}))
	assert.Equal(t, "items?@v='x'&$top=1", sprest.AppendQueryString("items?@v='x'", sprest.Query{"$top": 1}))
}

func TestMergeQuery(t *testing.T) {
	t.Parallel()

	defaults := sprest.Query{"$select": "Id,Title", "$top": 10}
	call := sprest.Query{"$top": 2, "$filter": "Id gt 3"}

	t.Run("call wins", func(t *testing.T) {
		t.Parallel()

		merged := sprest.MergeQuery(defaults, call, sprest.CallWins)
		assert.Equal(t, sprest.Query{"$select": "Id,Title", "$top": 2, "$filter": "Id gt 3"}, merged)
	})

	t.Run("defaults win", func(t *testing.T) {
		t.Parallel()

		merged := sprest.MergeQuery(defaults, call, sprest.DefaultsWin)
		assert.Equal(t, sprest.Query{"$select": "Id,Title", "$top": 10, "$filter": "Id gt 3"}, merged)
	})

	t.Run("both empty", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, sprest.MergeQuery(nil, nil, sprest.CallWins))
	})

	t.Run("inputs untouched", func(t *testing.T) {
		t.Parallel()

		_ = sprest.MergeQuery(defaults, call, sprest.CallWins)
		require.Len(t, defaults, 2)
		assert.Equal(t, 10, defaults["$top"])
	})
}

func TestQueryPrecedence_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "call-wins", sprest.CallWins.String())
	assert.Equal(t, "defaults-win", sprest.DefaultsWin.String())
}

func TestQuery_Clone(t *testing.T) {
	t.Parallel()

	assert.Nil(t, sprest.Query{}.Clone())

	original := sprest.Query{"$top": 1}
	clone := original.Clone()
	clone["$top"] = 2

	assert.Equal(t, 1, original["$top"])
}
