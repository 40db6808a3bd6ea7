package sprest

import (
	"fmt"
	"net/http"
)

// Action names a list operation.
type Action string

// List actions.
const (
	ActionGet    Action = "get"
	ActionQuery  Action = "query"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Header names and values of the verbose OData dialect.
const (
	ContentTypeVerbose  = "application/json;odata=verbose"
	HeaderAccept        = "Accept"
	HeaderContentType   = "Content-Type"
	HeaderIfMatch       = "IF-MATCH"
	HeaderHTTPMethod    = "X-HTTP-Method"
	HeaderRequestDigest = "X-RequestDigest"
	HeaderETag          = "ETag"

	methodMerge  = "MERGE"
	anyETag      = "*"
	itemsSegment = "/items"
)

// RequestOptions carries the inputs of a single list request.
type RequestOptions struct {
	// ID addresses a single item for ActionGet.
	ID any
	// Item is the subject of create, update and delete.
	Item *Item
	// Query holds normalized OData query options.
	Query Query
	// Force sends a wildcard concurrency token on update.
	Force bool
	// ReadOnlyFields are excluded from create and update payloads.
	ReadOnlyFields []string
	// HostWeb routes the request to the host web of an app.
	HostWeb bool
}

// RequestDescriptor is a fully built, unsigned request.
type RequestDescriptor struct {
	Action  Action
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
	// ETag is the item concurrency token sent with the request, empty when
	// the wildcard is used.
	ETag      string
	HostWeb   bool
	Transform ResponseTransform
}

// BuildRequest builds the descriptor for action against the list at
// collectionAddress. Missing preconditions fail with ErrInvalidArguments
// before anything is sent.
func BuildRequest(collectionAddress string, action Action, opts *RequestOptions) (*RequestDescriptor, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	desc := &RequestDescriptor{
		Action:    action,
		Method:    http.MethodGet,
		URL:       collectionAddress + itemsSegment,
		Headers:   http.Header{},
		HostWeb:   opts.HostWeb,
		Transform: UnwrapResponse,
	}
	desc.Headers.Set(HeaderAccept, ContentTypeVerbose)

	query := opts.Query.Clone()

	switch action {
	case ActionGet:
		if opts.ID == nil {
			return nil, fmt.Errorf("%w: options must have an id", ErrInvalidArguments)
		}

		desc.URL = itemAddress(collectionAddress, opts.ID)
	case ActionQuery:
	case ActionCreate:
		if opts.Item == nil {
			return nil, fmt.Errorf("%w: options must have an item", ErrInvalidArguments)
		}

		delete(query, QueryExpand)

		body, err := BuildPayload(opts.Item, opts.ReadOnlyFields)
		if err != nil {
			return nil, err
		}

		desc.Method = http.MethodPost
		desc.Body = body
		desc.Headers.Set(HeaderContentType, ContentTypeVerbose)
	case ActionUpdate:
		id, err := persistedItemID(opts.Item)
		if err != nil {
			return nil, err
		}

		body, err := BuildPayload(opts.Item, opts.ReadOnlyFields)
		if err != nil {
			return nil, err
		}

		query = nil

		if !opts.Force {
			desc.ETag = opts.Item.ETag()
		}

		desc.Method = http.MethodPost
		desc.URL = itemAddress(collectionAddress, id)
		desc.Body = body
		desc.Headers.Set(HeaderContentType, ContentTypeVerbose)
		desc.Headers.Set(HeaderHTTPMethod, methodMerge)
		desc.Headers.Set(HeaderIfMatch, etagOrAny(desc.ETag))
	case ActionDelete:
		id, err := persistedItemID(opts.Item)
		if err != nil {
			return nil, err
		}

		query = nil

		desc.Method = http.MethodPost
		desc.URL = itemAddress(collectionAddress, id)
		desc.Headers.Set(HeaderHTTPMethod, http.MethodDelete)
		desc.Headers.Set(HeaderIfMatch, anyETag)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidArguments, action)
	}

	desc.URL = AppendQueryString(desc.URL, query)

	return desc, nil
}

func persistedItemID(item *Item) (any, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: options must have an item", ErrInvalidArguments)
	}

	if item.metadata().Type == "" {
		return nil, fmt.Errorf("%w: item must have %s", ErrInvalidArguments, MetadataKey)
	}

	id := item.ID()
	if id == nil {
		return nil, fmt.Errorf("%w: item must have an %s", ErrInvalidArguments, IDField)
	}

	return id, nil
}

func itemAddress(collectionAddress string, id any) string {
	return fmt.Sprintf("%s%s(%v)", collectionAddress, itemsSegment, id)
}

func etagOrAny(etag string) string {
	if etag == "" {
		return anyETag
	}

	return etag
}
