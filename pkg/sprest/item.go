package sprest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
)

// MetadataKey is the reserved field carrying the server's concurrency and
// type metadata in verbose OData payloads.
const MetadataKey = "__metadata"

// IDField is the list item field holding the server-assigned item id.
const IDField = "Id"

// Metadata is the "__metadata" object of a verbose OData entity.
type Metadata struct {
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	ETag string `json:"etag,omitempty" yaml:"etag,omitempty"`
	ID   string `json:"id,omitempty"   yaml:"id,omitempty"`
	URI  string `json:"uri,omitempty"  yaml:"uri,omitempty"`
}

// IsZero reports whether no metadata has been set.
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}

// Item is one record of a list. Items created through List.NewItem, or
// returned by list operations, are bound to that list and can save or
// delete themselves.
//
// The methods of Item are safe for concurrent use, including while list
// operations on the item are pending. Metadata and Fields may be accessed
// directly once no operation on the item is outstanding.
type Item struct {
	Metadata Metadata
	Fields   map[string]any

	owner *List
	mu    sync.RWMutex
}

// NewItem returns an unbound item holding a copy of fields.
func NewItem(fields map[string]any) *Item {
	item := &Item{Fields: make(map[string]any, len(fields))}
	item.Merge(fields)

	return item
}

// Get returns a field value.
func (i *Item) Get(name string) any {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.Fields == nil {
		return nil
	}

	return i.Fields[name]
}

// Set assigns a field value.
func (i *Item) Set(name string, value any) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.Fields == nil {
		i.Fields = make(map[string]any)
	}

	i.Fields[name] = value
}

// ID returns the item's Id field, or nil when it has none.
func (i *Item) ID() any {
	return i.Get(IDField)
}

// IsNew reports whether the item has never been persisted.
func (i *Item) IsNew() bool {
	return i.metadata().ID == ""
}

// ETag returns the concurrency token of the last known server version.
func (i *Item) ETag() string {
	return i.metadata().ETag
}

// Snapshot returns a copy of the fields and the metadata taken at one
// point in time.
func (i *Item) Snapshot() (map[string]any, Metadata) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	fields := make(map[string]any, len(i.Fields))
	for key, value := range i.Fields {
		fields[key] = value
	}

	return fields, i.Metadata
}

func (i *Item) metadata() Metadata {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.Metadata
}

func (i *Item) setETag(etag string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.Metadata.ETag = etag
}

// ensureType stamps the list item type unless one is set.
func (i *Item) ensureType(itemType string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.Metadata.Type == "" {
		i.Metadata.Type = itemType
	}
}

// Merge copies data into the item in place. A nested "__metadata" object
// updates the non-empty metadata attributes.
func (i *Item) Merge(data map[string]any) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.Fields == nil {
		i.Fields = make(map[string]any, len(data))
	}

	for key, value := range data {
		if key == MetadataKey {
			i.mergeMetadata(value)

			continue
		}

		i.Fields[key] = value
	}
}

func (i *Item) mergeMetadata(value any) {
	switch typed := value.(type) {
	case Metadata:
		i.Metadata = mergeMetadataValues(i.Metadata, typed)
	case *Metadata:
		if typed != nil {
			i.Metadata = mergeMetadataValues(i.Metadata, *typed)
		}
	case map[string]any:
		i.Metadata = mergeMetadataValues(i.Metadata, Metadata{
			Type: stringField(typed, "type"),
			ETag: stringField(typed, "etag"),
			ID:   stringField(typed, "id"),
			URI:  stringField(typed, "uri"),
		})
	}
}

func mergeMetadataValues(current, update Metadata) Metadata {
	if update.Type != "" {
		current.Type = update.Type
	}

	if update.ETag != "" {
		current.ETag = update.ETag
	}

	if update.ID != "" {
		current.ID = update.ID
	}

	if update.URI != "" {
		current.URI = update.URI
	}

	return current
}

func stringField(values map[string]any, key string) string {
	value, ok := values[key]
	if !ok || value == nil {
		return ""
	}

	if text, ok := value.(string); ok {
		return text
	}

	return fmt.Sprint(value)
}

// MarshalJSON flattens fields next to the "__metadata" object.
func (i *Item) MarshalJSON() ([]byte, error) {
	out, metadata := i.Snapshot()

	if !metadata.IsZero() {
		out[MetadataKey] = metadata
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshaling item: %w", err)
	}

	return data, nil
}

// UnmarshalJSON merges a JSON object into the item. Numbers are kept as
// json.Number.
func (i *Item) UnmarshalJSON(data []byte) error {
	var values map[string]any

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	err := decoder.Decode(&values)
	if err != nil {
		return fmt.Errorf("unmarshaling item: %w", err)
	}

	i.Merge(values)

	return nil
}
