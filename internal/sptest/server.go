// Package sptest runs an in-memory SharePoint REST endpoint for tests. It
// speaks the verbose OData dialect for list items, search, user profiles
// and contextinfo, and enforces bearer tokens, form digests and ETags.
package sptest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fivetwenty-io/sprest/pkg/sprest"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Defaults used by New.
const (
	DefaultDigest = "0x5F1E,19 Oct 2026 09:00:00 -0000"
	DefaultUser   = "i:0#.f|membership|jane@contoso.com"
)

// RecordedRequest is a request as seen by the server.
type RecordedRequest struct {
	Method string
	// Path is the unescaped URL path.
	Path    string
	Query   url.Values
	Headers http.Header
	Body    []byte
}

type list struct {
	id       string
	title    string
	itemType string
	nextID   int
	items    map[int]*storedItem
}

type storedItem struct {
	fields  map[string]any
	version int
	created time.Time
}

// Server is a fake SharePoint site.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	token         string
	digest        string
	lists         map[string]*list
	hostLists     map[string]*list
	profiles      map[string]map[string]any
	currentUser   string
	searchRows    []map[string]string
	suggestions   []string
	requests      []RecordedRequest
	digestFetches int
	failures      map[string][]int
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires "Authorization: Bearer token" on every request.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// WithDigest sets the form digest handed out by contextinfo.
func WithDigest(digest string) Option {
	return func(s *Server) {
		s.digest = digest
	}
}

// New starts a server that is closed when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	server := &Server{
		digest:      DefaultDigest,
		lists:       make(map[string]*list),
		hostLists:   make(map[string]*list),
		profiles:    make(map[string]map[string]any),
		currentUser: DefaultUser,
		failures:    make(map[string][]int),
	}

	for _, opt := range opts {
		opt(server)
	}

	server.Server = httptest.NewServer(server.routes())
	t.Cleanup(server.Close)

	return server
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(s.recordRequest, s.injectFailures, s.authenticate)

	router.Post("/_api/contextinfo", s.handleContextInfo)

	router.Group(func(r chi.Router) {
		r.Use(s.requireDigest)

		r.Post("/_api/web/lists/*", s.handleLists(false))
		r.Post("/_api/SP.AppContextSite(@target)/web/lists/*", s.handleLists(true))
		r.Post("/_api/search/postquery", s.handlePostQuery)
	})

	router.Get("/_api/web/lists/*", s.handleLists(false))
	router.Get("/_api/SP.AppContextSite(@target)/web/lists/*", s.handleLists(true))
	router.Get("/_api/search/query", s.handleQuery)
	router.Get("/_api/search/suggest", s.handleSuggest)
	router.Get("/_api/SP.UserProfiles.PeopleManager/GetMyProperties", s.handleMyProperties)
	router.Get("/_api/SP.UserProfiles.PeopleManager/GetPropertiesFor(accountName=@v)", s.handlePropertiesFor)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "-1, Microsoft.SharePoint.Client.InvalidClientQueryException",
			"The endpoint "+r.URL.Path+" is not supported.")
	})

	return router
}

// AddList creates an empty list in the site, or in the host web when
// hostWeb is set.
func (s *Server) AddList(title string, hostWeb bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.lists
	if hostWeb {
		target = s.hostLists
	}

	target[strings.ToLower(title)] = &list{
		id:       uuid.NewString(),
		title:    title,
		itemType: "SP.Data." + sprest.NormalizeListTitle(title) + "ListItem",
		nextID:   1,
		items:    make(map[int]*storedItem),
	}
}

// AddItem stores an item directly and returns its ID.
func (s *Server) AddItem(title string, fields map[string]any) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.lists[strings.ToLower(title)]
	if target == nil {
		panic("sptest: unknown list " + title)
	}

	return target.add(fields)
}

// Item returns the stored fields of an item and its version.
func (s *Server) Item(title string, id int) (map[string]any, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.lists[strings.ToLower(title)]
	if target == nil {
		return nil, 0, false
	}

	item, ok := target.items[id]
	if !ok {
		return nil, 0, false
	}

	fields := make(map[string]any, len(item.fields))
	for key, value := range item.fields {
		fields[key] = value
	}

	return fields, item.version, true
}

// TouchItem bumps the version of an item as a concurrent editor would.
func (s *Server) TouchItem(title string, id int, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.lists[strings.ToLower(title)].items[id]
	for key, value := range fields {
		item.fields[key] = value
	}

	item.version++
}

// AddProfile registers a user profile. Properties are returned as
// SP.KeyValue entries typed Edm.String.
func (s *Server) AddProfile(accountName, displayName, email string, properties map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]any, 0, len(properties))
	for _, key := range sortedKeys(properties) {
		entries = append(entries, keyValue(key, properties[key], "Edm.String"))
	}

	s.profiles[strings.ToLower(accountName)] = map[string]any{
		sprest.MetadataKey:      map[string]any{"type": sprest.TypePersonProperties},
		"AccountName":           accountName,
		"DisplayName":           displayName,
		"Email":                 email,
		"IsFollowed":            false,
		"PersonalUrl":           s.URL + "/personal/" + strings.ToLower(strings.ReplaceAll(displayName, " ", "_")),
		"PictureUrl":            nil,
		"Title":                 properties["SPS-JobTitle"],
		"UserUrl":               s.URL + "/Person.aspx?accountname=" + url.QueryEscape(accountName),
		"UserProfileProperties": map[string]any{"results": entries},
	}
}

// SetSearchRows sets the rows returned by every search. Values are
// returned typed Edm.String except "Rank", which is Edm.Double.
func (s *Server) SetSearchRows(rows ...map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searchRows = rows
}

// SetSuggestions sets the query suggestions returned by suggest.
func (s *Server) SetSuggestions(suggestions ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.suggestions = suggestions
}

// FailNext answers the next requests to path with the given status codes,
// one per request, before serving normally again.
func (s *Server) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[path] = append(s.failures[path], statuses...)
}

// Requests returns the requests received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]RecordedRequest(nil), s.requests...)
}

// DigestFetches returns how often contextinfo was called.
func (s *Server) DigestFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.digestFetches
}

// RotateDigest invalidates the current digest.
func (s *Server) RotateDigest(digest string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.digest = digest
}

func (s *Server) recordRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.Query(),
			Headers: r.Header.Clone(),
			Body:    body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		pending := s.failures[r.URL.Path]

		status := 0
		if len(pending) > 0 {
			status = pending[0]
			s.failures[r.URL.Path] = pending[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			writeError(w, status, "-1, Microsoft.SharePoint.SPException", http.StatusText(status))

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()

		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			w.Header().Set("WWW-Authenticate", `Bearer realm="00000000-0000-0000-0000-000000000001",client_id="00000003-0000-0ff1-ce00-000000000000"`)
			writeError(w, http.StatusUnauthorized, "-2147024891, System.UnauthorizedAccessException",
				"Access denied. You do not have permission to perform this action or access this resource.")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireDigest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		digest := s.digest
		s.mu.Unlock()

		if r.Header.Get(sprest.HeaderRequestDigest) != digest {
			writeError(w, http.StatusForbidden, "-2130575251, Microsoft.SharePoint.SPException",
				"The security validation for this page is invalid and might be corrupted. "+
					"Please use your web browser's Back button to try your operation again.")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleContextInfo(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.digestFetches++
	digest := s.digest
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"d": map[string]any{
		"GetContextWebInformation": map[string]any{
			sprest.MetadataKey:         map[string]any{"type": "SP.ContextWebInformation"},
			"FormDigestTimeoutSeconds": 1800,
			"FormDigestValue":          digest,
			"LibraryVersion":           "16.0.0.0",
			"WebFullUrl":               s.URL,
		},
	}})
}

var itemPath = regexp.MustCompile(`^getByTitle\('((?:[^']|'')*)'\)/items(?:\((\d+)\))?$`)

func (s *Server) handleLists(hostWeb bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matches := itemPath.FindStringSubmatch(chi.URLParam(r, "*"))
		if matches == nil {
			writeError(w, http.StatusBadRequest, "-1, Microsoft.SharePoint.Client.InvalidClientQueryException",
				"The expression is not valid.")

			return
		}

		if hostWeb && r.URL.Query().Get("@target") == "" {
			writeError(w, http.StatusBadRequest, "-1, Microsoft.SharePoint.Client.InvalidClientQueryException",
				"The @target parameter is required.")

			return
		}

		title := strings.ReplaceAll(matches[1], "''", "'")

		s.mu.Lock()
		defer s.mu.Unlock()

		lists := s.lists
		if hostWeb {
			lists = s.hostLists
		}

		target := lists[strings.ToLower(title)]
		if target == nil {
			writeError(w, http.StatusNotFound, "-1, System.ArgumentException",
				fmt.Sprintf("List '%s' does not exist at site with URL '%s'.", title, s.URL))

			return
		}

		if matches[2] == "" {
			switch r.Method {
			case http.MethodGet:
				s.queryItems(w, r, target)
			default:
				s.createItem(w, r, target)
			}

			return
		}

		id, _ := strconv.Atoi(matches[2])

		item, ok := target.items[id]
		if !ok {
			writeError(w, http.StatusNotFound, "-2147024809, System.ArgumentException",
				"Item does not exist. It may have been deleted by another user.")

			return
		}

		switch {
		case r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"d": s.render(target, id, item, selectFields(r))})
		case strings.EqualFold(r.Header.Get(sprest.HeaderHTTPMethod), "MERGE"):
			s.mergeItem(w, r, target, id, item)
		case strings.EqualFold(r.Header.Get(sprest.HeaderHTTPMethod), http.MethodDelete):
			if !etagMatches(r, item) {
				writePreconditionFailed(w)

				return
			}

			delete(target.items, id)
			w.WriteHeader(http.StatusOK)
		default:
			writeError(w, http.StatusMethodNotAllowed, "-1, Microsoft.SharePoint.Client.InvalidClientQueryException",
				"The HTTP method is not supported for this resource.")
		}
	}
}

func (s *Server) queryItems(w http.ResponseWriter, r *http.Request, target *list) {
	query := r.URL.Query()

	ids := make([]int, 0, len(target.items))

	for id, item := range target.items {
		if matchesFilter(query.Get("$filter"), id, item) {
			ids = append(ids, id)
		}
	}

	sortItems(ids, target, query.Get("$orderby"))

	if skip, err := strconv.Atoi(query.Get("$skip")); err == nil && skip > 0 {
		ids = ids[min(skip, len(ids)):]
	}

	if top, err := strconv.Atoi(query.Get("$top")); err == nil && top >= 0 && top < len(ids) {
		ids = ids[:top]
	}

	fields := selectFields(r)
	results := make([]any, 0, len(ids))

	for _, id := range ids {
		results = append(results, s.render(target, id, target.items[id], fields))
	}

	writeJSON(w, http.StatusOK, map[string]any{"d": map[string]any{"results": results}})
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request, target *list) {
	var payload map[string]any

	err := json.NewDecoder(r.Body).Decode(&payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "-1, Microsoft.SharePoint.Client.InvalidClientQueryException",
			"Invalid JSON. A token was not recognized in the JSON content.")

		return
	}

	if !s.checkType(w, target, payload) {
		return
	}

	id := target.add(payload)

	writeJSON(w, http.StatusCreated, map[string]any{"d": s.render(target, id, target.items[id], nil)})
}

func (s *Server) mergeItem(w http.ResponseWriter, r *http.Request, target *list, id int, item *storedItem) {
	if !etagMatches(r, item) {
		writePreconditionFailed(w)

		return
	}

	var payload map[string]any

	err := json.NewDecoder(r.Body).Decode(&payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "-1, Microsoft.SharePoint.Client.InvalidClientQueryException",
			"Invalid JSON. A token was not recognized in the JSON content.")

		return
	}

	if !s.checkType(w, target, payload) {
		return
	}

	for key, value := range payload {
		if key == sprest.MetadataKey {
			continue
		}

		item.fields[key] = value
	}

	item.version++

	w.Header().Set(sprest.HeaderETag, etag(item))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) checkType(w http.ResponseWriter, target *list, payload map[string]any) bool {
	metadata, _ := payload[sprest.MetadataKey].(map[string]any)
	if itemType, _ := metadata["type"].(string); itemType != target.itemType {
		writeError(w, http.StatusBadRequest, "-1, Microsoft.SharePoint.Client.InvalidClientQueryException",
			fmt.Sprintf("A type named '%v' could not be resolved by the model.", metadata["type"]))

		return false
	}

	for _, field := range []string{"Created", "Modified", "AuthorId", "EditorId", "GUID"} {
		if _, ok := payload[field]; ok {
			writeError(w, http.StatusBadRequest, "-1, Microsoft.SharePoint.Client.InvalidClientQueryException",
				fmt.Sprintf("The property '%s' is read-only.", field))

			return false
		}
	}

	return true
}

func (s *Server) render(target *list, id int, item *storedItem, fields []string) map[string]any {
	rendered := map[string]any{
		sprest.MetadataKey: map[string]any{
			"id":   fmt.Sprintf("Web/Lists(guid'%s')/Items(%d)", target.id, id),
			"uri":  fmt.Sprintf("%s/_api/Web/Lists(guid'%s')/Items(%d)", s.URL, target.id, id),
			"etag": etag(item),
			"type": target.itemType,
		},
	}

	all := map[string]any{
		"Id":       id,
		"ID":       id,
		"Created":  item.created.UTC().Format(time.RFC3339),
		"Modified": item.created.UTC().Format(time.RFC3339),
		"AuthorId": 7,
		"EditorId": 7,
	}

	for key, value := range item.fields {
		all[key] = value
	}

	if len(fields) == 0 {
		for key, value := range all {
			rendered[key] = value
		}

		return rendered
	}

	for _, field := range fields {
		if value, ok := all[field]; ok {
			rendered[field] = value
		}
	}

	return rendered
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("querytext") == "" {
		writeError(w, http.StatusBadRequest, "-1, Microsoft.Office.Server.Search.REST.SearchServiceException",
			"The query text is required.")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"d": map[string]any{"query": s.searchResult()}})
}

func (s *Server) handlePostQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Request struct {
			Querytext string `json:"Querytext"`
		} `json:"request"`
	}

	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil || body.Request.Querytext == "" {
		writeError(w, http.StatusBadRequest, "-1, Microsoft.Office.Server.Search.REST.SearchServiceException",
			"The query text is required.")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"d": map[string]any{"postquery": s.searchResult()}})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := len(s.suggestions)
	if n, err := strconv.Atoi(r.URL.Query().Get("inumberofquerysuggestions")); err == nil && n < limit {
		limit = n
	}

	queries := make([]any, 0, limit)
	for _, suggestion := range s.suggestions[:limit] {
		queries = append(queries, map[string]any{
			sprest.MetadataKey: map[string]any{"type": "Microsoft.SharePoint.Client.Search.Query.QuerySuggestionQuery"},
			"IsPersonal":       false,
			"Query":            suggestion,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"d": map[string]any{"suggest": map[string]any{
		sprest.MetadataKey: map[string]any{"type": "Microsoft.SharePoint.Client.Search.Query.QuerySuggestionResults"},
		"PeopleNames":      map[string]any{"results": []any{}},
		"PersonalResults":  map[string]any{"results": []any{}},
		"PopularResults":   map[string]any{"results": []any{}},
		"Queries":          map[string]any{"results": queries},
	}}})
}

func (s *Server) searchResult() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]any, 0, len(s.searchRows))

	for _, row := range s.searchRows {
		cells := make([]any, 0, len(row))

		for _, key := range sortedKeys(row) {
			valueType := "Edm.String"
			if key == "Rank" {
				valueType = "Edm.Double"
			}

			cells = append(cells, keyValue(key, row[key], valueType))
		}

		rows = append(rows, map[string]any{
			sprest.MetadataKey: map[string]any{"type": sprest.TypeSimpleDataRow},
			"Cells":            map[string]any{"results": cells},
		})
	}

	return map[string]any{
		sprest.MetadataKey:   map[string]any{"type": sprest.TypeSearchResult},
		"ElapsedTime":        12,
		"SpellingSuggestion": "",
		"Properties": map[string]any{"results": []any{
			keyValue("RowCount", strconv.Itoa(len(rows)), "Edm.Int32"),
			keyValue("TotalRows", strconv.Itoa(len(rows)), "Edm.Int64"),
		}},
		"PrimaryQueryResult": map[string]any{
			"QueryId":     uuid.NewString(),
			"QueryRuleId": "00000000-0000-0000-0000-000000000000",
			"RelevantResults": map[string]any{
				"RowCount":  len(rows),
				"TotalRows": len(rows),
				"Table": map[string]any{
					sprest.MetadataKey: map[string]any{"type": sprest.TypeSimpleDataTable},
					"Rows":             map[string]any{"results": rows},
				},
			},
			"CustomResults":      nil,
			"RefinementResults":  nil,
			"SpecialTermResults": nil,
		},
	}
}

func (s *Server) handleMyProperties(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writeProfile(w, s.currentUser)
}

func (s *Server) handlePropertiesFor(w http.ResponseWriter, r *http.Request) {
	alias := r.URL.Query().Get("@v")
	if len(alias) < 2 || !strings.HasPrefix(alias, "'") || !strings.HasSuffix(alias, "'") {
		writeError(w, http.StatusBadRequest, "-1, Microsoft.SharePoint.Client.InvalidClientQueryException",
			"The parameter @v is not a valid string literal.")

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.writeProfile(w, strings.ReplaceAll(alias[1:len(alias)-1], "''", "'"))
}

// writeProfile must be called with s.mu held. Unknown accounts get an
// empty PersonProperties, as SharePoint does.
func (s *Server) writeProfile(w http.ResponseWriter, accountName string) {
	profile, ok := s.profiles[strings.ToLower(accountName)]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"d": map[string]any{
			sprest.MetadataKey:      map[string]any{"type": sprest.TypePersonProperties},
			"AccountName":           nil,
			"UserProfileProperties": map[string]any{"results": []any{}},
		}})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"d": profile})
}

func (l *list) add(fields map[string]any) int {
	id := l.nextID
	l.nextID++

	stored := &storedItem{fields: make(map[string]any, len(fields)), version: 1, created: time.Now()}

	for key, value := range fields {
		if key == sprest.MetadataKey {
			continue
		}

		stored.fields[key] = value
	}

	l.items[id] = stored

	return id
}

var simpleFilter = regexp.MustCompile(`^(\w+) eq (?:'((?:[^']|'')*)'|(-?\d+(?:\.\d+)?))$`)

// matchesFilter understands "Field eq 'text'" and "Field eq number".
// Other expressions match every item.
func matchesFilter(filter string, id int, item *storedItem) bool {
	matches := simpleFilter.FindStringSubmatch(strings.TrimSpace(filter))
	if matches == nil {
		return true
	}

	var value any
	if matches[1] == "Id" || matches[1] == "ID" {
		value = id
	} else {
		value = item.fields[matches[1]]
	}

	if matches[3] != "" {
		return fmt.Sprint(value) == matches[3]
	}

	return fmt.Sprint(value) == strings.ReplaceAll(matches[2], "''", "'")
}

func sortItems(ids []int, target *list, orderBy string) {
	field, direction, _ := strings.Cut(strings.TrimSpace(orderBy), " ")
	descending := strings.EqualFold(direction, "desc")

	key := func(id int) string {
		if field == "" || field == "Id" || field == "ID" {
			return fmt.Sprintf("%012d", id)
		}

		return fmt.Sprint(target.items[id].fields[field])
	}

	sort.SliceStable(ids, func(i, j int) bool {
		if descending {
			return key(ids[i]) > key(ids[j])
		}

		return key(ids[i]) < key(ids[j])
	})
}

func selectFields(r *http.Request) []string {
	selected := r.URL.Query().Get("$select")
	if selected == "" {
		return nil
	}

	return strings.Split(selected, ",")
}

func etag(item *storedItem) string {
	return fmt.Sprintf(`"%d"`, item.version)
}

func etagMatches(r *http.Request, item *storedItem) bool {
	ifMatch := r.Header.Get(sprest.HeaderIfMatch)

	return ifMatch == "" || ifMatch == "*" || ifMatch == etag(item)
}

func keyValue(key, value, valueType string) map[string]any {
	return map[string]any{
		sprest.MetadataKey: map[string]any{"type": sprest.TypeKeyValue},
		"Key":              key,
		"Value":            value,
		"ValueType":        valueType,
	}
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func writePreconditionFailed(w http.ResponseWriter) {
	writeError(w, http.StatusPreconditionFailed, "-1, Microsoft.SharePoint.Client.ClientServiceException",
		"The request ETag value does not match the object's ETag value.")
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{
		"code":    code,
		"message": map[string]any{"lang": "en-US", "value": message},
	}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json;odata=verbose;charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
