package sprest

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ListOptions configures a list resource type.
type ListOptions struct {
	// ReadOnlyFields are added to DefaultReadOnlyFields.
	ReadOnlyFields []string
	// Query holds default query options applied to Query, named queries
	// and Create.
	Query Query
	// QueryPrecedence decides collisions between Query and call options.
	QueryPrecedence QueryPrecedence
	// InHostWeb addresses the list in the host web of an app.
	InHostWeb bool
	// Logger receives diagnostics. Defaults to NopLogger.
	Logger Logger
	// Events is notified after successful writes.
	Events EventPublisher
}

// QueryOptions controls the shape of a query result.
type QueryOptions struct {
	// SingleResult returns one item instead of a collection and fails with
	// ErrBadResponse unless exactly one item matches.
	SingleResult bool
}

// UpdateOptions controls an update.
type UpdateOptions struct {
	// Force overwrites newer server versions by skipping the ETag check.
	Force bool
}

// SaveOptions is passed to Update or Create depending on the item state.
type SaveOptions struct {
	Force bool
	Query Query
}

// QueryBuilder turns named query arguments into query options.
type QueryBuilder func(args ...any) Query

// NamedQuery runs a registered query.
type NamedQuery func(ctx context.Context, args ...any) (*Result, error)

// List is a resource type bound to one SharePoint list. It is safe for
// concurrent use.
type List struct {
	transport Transport
	logger    Logger
	events    EventPublisher

	title          string
	relativeURL    string
	itemType       string
	className      string
	readOnlyFields []string
	precedence     QueryPrecedence
	hostWeb        bool

	mu       sync.RWMutex
	defaults Query
	queries  map[string]NamedQuery
}

var (
	nonTitleCharacters = regexp.MustCompile(`[^A-Za-z0-9 ]`)
	titleWhitespace    = regexp.MustCompile(`\s`)
	leadingDigits      = regexp.MustCompile(`^\d+`)
)

const (
	encodedSpace      = "_x0020_"
	encodedSpacePart  = "_x0020"
	itemTypePrefix    = "SP.Data."
	itemTypeSuffix    = "ListItem"
	listAddressFormat = "web/lists/getByTitle('%s')"
)

// NewList defines the resource type for the list titled title.
func NewList(transport Transport, title string, opts *ListOptions) (*List, error) {
	if transport == nil {
		return nil, ErrTransportRequired
	}

	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: list title is required", ErrInvalidArguments)
	}

	if opts == nil {
		opts = &ListOptions{}
	}

	normalized := NormalizeListTitle(title)
	logger := loggerOrNop(opts.Logger)

	return &List{
		transport:      transport,
		logger:         logger,
		events:         opts.Events,
		title:          title,
		relativeURL:    fmt.Sprintf(listAddressFormat, strings.ReplaceAll(title, "'", "''")),
		itemType:       itemTypePrefix + normalized + itemTypeSuffix,
		className:      listClassName(normalized),
		readOnlyFields: unionFields(DefaultReadOnlyFields, opts.ReadOnlyFields),
		precedence:     opts.QueryPrecedence,
		hostWeb:        opts.InHostWeb,
		defaults:       NormalizeQuery(opts.Query, logger),
		queries:        make(map[string]NamedQuery),
	}, nil
}

// NormalizeListTitle converts a list title into the form SharePoint uses in
// entity type names: punctuation removed, whitespace encoded as _x0020_,
// first letter upper-cased.
func NormalizeListTitle(title string) string {
	stripped := nonTitleCharacters.ReplaceAllString(title, "")

	return Capitalize(titleWhitespace.ReplaceAllString(stripped, encodedSpace))
}

func listClassName(normalized string) string {
	name := strings.ReplaceAll(normalized, encodedSpacePart, "")

	return Capitalize(leadingDigits.ReplaceAllString(name, ""))
}

// Title returns the list title.
func (l *List) Title() string { return l.title }

// RelativeURL returns the web-relative address of the list.
func (l *List) RelativeURL() string { return l.relativeURL }

// ItemType returns the entity type name stamped into item metadata.
func (l *List) ItemType() string { return l.itemType }

// ClassName returns a readable name for the list, used in diagnostics and
// event subjects.
func (l *List) ClassName() string { return l.className }

// InHostWeb reports whether requests target the host web.
func (l *List) InHostWeb() bool { return l.hostWeb }

// ReadOnlyFields returns the fields excluded from write payloads.
func (l *List) ReadOnlyFields() []string {
	out := make([]string, len(l.readOnlyFields))
	copy(out, l.readOnlyFields)

	return out
}

// DefaultQuery returns a copy of the default query options.
func (l *List) DefaultQuery() Query {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.defaults.Clone()
}

// SetDefaultQuery replaces the default query options.
func (l *List) SetDefaultQuery(query Query) {
	normalized := NormalizeQuery(query, l.logger)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.defaults = normalized
}

// NewItem returns an item of this list. Its metadata carries the list item
// type unless fields supply their own "__metadata".
func (l *List) NewItem(fields map[string]any) *Item {
	item := &Item{
		Metadata: Metadata{Type: l.itemType},
		Fields:   make(map[string]any, len(fields)),
		owner:    l,
	}
	item.Merge(fields)

	return item
}

// Owns reports whether item is an instance of this list.
func (l *List) Owns(item *Item) bool {
	return item != nil && item.owner == l
}

// Get fetches the item with the given id. The returned item is seeded with
// the id and filled in when the response arrives.
func (l *List) Get(ctx context.Context, id any, query Query) (*Result, error) {
	if id == nil {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidArguments)
	}

	desc, err := l.buildRequest(ActionGet, &RequestOptions{
		ID:    id,
		Query: NormalizeQuery(query, l.logger),
	})
	if err != nil {
		return nil, err
	}

	result := newItemResult(l.NewItem(map[string]any{IDField: id}))
	l.decorate(ctx, result, desc)

	return result, nil
}

// Query fetches the items matching query merged with the default options.
func (l *List) Query(ctx context.Context, query Query, opts *QueryOptions) (*Result, error) {
	desc, err := l.buildRequest(ActionQuery, &RequestOptions{
		Query: l.mergeDefaults(query),
	})
	if err != nil {
		return nil, err
	}

	var result *Result
	if opts != nil && opts.SingleResult {
		result = newItemResult(l.NewItem(nil))
	} else {
		result = newCollectionResult()
	}

	l.decorate(ctx, result, desc)

	return result, nil
}

// Create stores a new item. The item is updated in place with the server's
// representation, including its id and metadata.
func (l *List) Create(ctx context.Context, item *Item, query Query) (*Result, error) {
	err := l.checkOwnership(item)
	if err != nil {
		return nil, err
	}

	item.ensureType(l.itemType)

	desc, err := l.buildRequest(ActionCreate, &RequestOptions{
		Item:  item,
		Query: l.mergeDefaults(query),
	})
	if err != nil {
		return nil, err
	}

	result := newItemResult(item)
	l.decorate(ctx, result, desc)

	return result, nil
}

// Update sends the item's writable fields guarded by its ETag.
func (l *List) Update(ctx context.Context, item *Item, opts *UpdateOptions) (*Result, error) {
	err := l.checkOwnership(item)
	if err != nil {
		return nil, err
	}

	if opts == nil {
		opts = &UpdateOptions{}
	}

	desc, err := l.buildRequest(ActionUpdate, &RequestOptions{
		Item:  item,
		Force: opts.Force,
	})
	if err != nil {
		return nil, err
	}

	result := newItemResult(item)
	l.decorate(ctx, result, desc)

	return result, nil
}

// Save updates persisted items and creates new ones.
func (l *List) Save(ctx context.Context, item *Item, opts *SaveOptions) (*Result, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: item is required", ErrInvalidArguments)
	}

	if opts == nil {
		opts = &SaveOptions{}
	}

	if !item.IsNew() {
		return l.Update(ctx, item, &UpdateOptions{Force: opts.Force})
	}

	return l.Create(ctx, item, opts.Query)
}

// Delete removes the item on the server.
func (l *List) Delete(ctx context.Context, item *Item) (*Result, error) {
	err := l.checkOwnership(item)
	if err != nil {
		return nil, err
	}

	desc, err := l.buildRequest(ActionDelete, &RequestOptions{Item: item})
	if err != nil {
		return nil, err
	}

	result := newItemResult(item)
	l.decorate(ctx, result, desc)

	return result, nil
}

// AddNamedQuery registers a query under name. The query merges the options
// returned by build over the default options and runs with opts.
func (l *List) AddNamedQuery(name string, build QueryBuilder, opts *QueryOptions) *List {
	query := func(ctx context.Context, args ...any) (*Result, error) {
		var built Query
		if build != nil {
			built = build(args...)
		}

		return l.Query(ctx, built, opts)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.queries[name] = query

	return l
}

// Queries returns the registered named queries.
func (l *List) Queries() map[string]NamedQuery {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]NamedQuery, len(l.queries))
	for name, query := range l.queries {
		out[name] = query
	}

	return out
}

// NamedQuery returns the query registered under name.
func (l *List) NamedQuery(name string) (NamedQuery, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	query, ok := l.queries[name]

	return query, ok
}

// Save persists the item through the list it belongs to and returns the
// completion signal.
func (i *Item) Save(ctx context.Context, opts *SaveOptions) (*Future, error) {
	if i.owner == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, ErrItemNotOwnedByList)
	}

	result, err := i.owner.Save(ctx, i, opts)
	if err != nil {
		return nil, err
	}

	return result.Future, nil
}

// Delete removes the item through the list it belongs to and returns the
// completion signal.
func (i *Item) Delete(ctx context.Context) (*Future, error) {
	if i.owner == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, ErrItemNotOwnedByList)
	}

	result, err := i.owner.Delete(ctx, i)
	if err != nil {
		return nil, err
	}

	return result.Future, nil
}

func (l *List) checkOwnership(item *Item) error {
	if item == nil {
		return fmt.Errorf("%w: item is required", ErrInvalidArguments)
	}

	if item.owner != l {
		return fmt.Errorf("%w: %w: %s", ErrInvalidArguments, ErrItemNotOwnedByList, l.className)
	}

	return nil
}

func (l *List) mergeDefaults(query Query) Query {
	return MergeQuery(l.DefaultQuery(), NormalizeQuery(query, l.logger), l.precedence)
}

func (l *List) buildRequest(action Action, opts *RequestOptions) (*RequestDescriptor, error) {
	opts.ReadOnlyFields = l.readOnlyFields
	opts.HostWeb = l.hostWeb

	desc, err := BuildRequest(l.relativeURL, action, opts)
	if err != nil {
		return nil, fmt.Errorf("building %s request for %s: %w", action, l.className, err)
	}

	return desc, nil
}

// decorate performs the request in the background and merges the response
// into result.
func (l *List) decorate(ctx context.Context, result *Result, desc *RequestDescriptor) {
	go func() {
		err := l.execute(ctx, result, desc)
		if err != nil {
			result.settle(err)

			return
		}

		result.resolved.Store(true)
		l.publish(ctx, desc.Action, result)
		result.settle(nil)
	}()
}

func (l *List) execute(ctx context.Context, result *Result, desc *RequestDescriptor) error {
	resp, err := l.transport.Do(ctx, desc)
	if err != nil {
		return err
	}

	transform := desc.Transform
	if transform == nil {
		transform = UnwrapResponse
	}

	data, err := transform(resp.Body)
	if err != nil {
		return err
	}

	err = l.mergeResponse(result, data)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNoContent && result.item != nil {
		etag := resp.Headers.Get(HeaderETag)
		if etag != "" {
			result.item.setETag(etag)
		}
	}

	return nil
}

func (l *List) mergeResponse(result *Result, data any) error {
	if result.collection {
		records, ok := data.([]any)
		if !ok {
			return fmt.Errorf("%w: expected response to contain an array but got an %s", ErrBadResponse, shapeOf(data))
		}

		for _, record := range records {
			fields, ok := record.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: expected array element to be an object but got an %s", ErrBadResponse, shapeOf(record))
			}

			result.items = append(result.items, l.NewItem(fields))
		}

		return nil
	}

	switch typed := data.(type) {
	case []any:
		if len(typed) != 1 {
			return fmt.Errorf("%w: expected response to contain an array with one object but got %d", ErrBadResponse, len(typed))
		}

		fields, ok := typed[0].(map[string]any)
		if !ok {
			return fmt.Errorf("%w: expected array element to be an object but got an %s", ErrBadResponse, shapeOf(typed[0]))
		}

		result.item.Merge(fields)
	case map[string]any:
		result.item.Merge(typed)
	default:
		return fmt.Errorf("%w: expected response to contain an object but got an %s", ErrBadResponse, shapeOf(data))
	}

	return nil
}

func (l *List) publish(ctx context.Context, action Action, result *Result) {
	if l.events == nil || action == ActionGet || action == ActionQuery || result.item == nil {
		return
	}

	event := NewChangeEvent(l, action, result.item, time.Now())

	err := l.events.Publish(ctx, event)
	if err != nil {
		l.logger.Warn("failed to publish change event", map[string]interface{}{
			"list":   l.title,
			"action": string(action),
			"error":  err.Error(),
		})
	}
}

func shapeOf(data any) string {
	switch data.(type) {
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", data)
	}
}
