package sprest

import (
	"encoding/json"
	"fmt"
)

// DefaultReadOnlyFields are server-computed list item fields that are never
// sent back on create or update.
var DefaultReadOnlyFields = []string{
	"AttachmentFiles",
	"Attachments",
	"Author",
	"AuthorId",
	"ContentType",
	"ContentTypeId",
	"Created",
	"Editor",
	"EditorId",
	"FieldValuesAsHtml",
	"FieldValuesAsText",
	"FieldValuesForEdit",
	"File",
	"FileSystemObjectType",
	"FirstUniqueAncestorSecurableObject",
	"Folder",
	"GUID",
	"Modified",
	"OData__UIVersionString",
	"ParentList",
	"RoleAssignments",
}

// PayloadFields returns the fields of item that are writable, plus the
// "__metadata" type discriminator. The item is not modified.
func PayloadFields(item *Item, readOnly []string) map[string]any {
	excluded := make(map[string]struct{}, len(readOnly))
	for _, name := range readOnly {
		excluded[name] = struct{}{}
	}

	snapshot, metadata := item.Snapshot()
	fields := make(map[string]any, len(snapshot)+1)

	for key, value := range snapshot {
		if _, ok := excluded[key]; ok {
			continue
		}

		if key == MetadataKey {
			continue
		}

		fields[key] = value
	}

	if metadata.Type != "" {
		fields[MetadataKey] = map[string]string{"type": metadata.Type}
	}

	return fields
}

// BuildPayload serializes the writable fields of item as a JSON body.
func BuildPayload(item *Item, readOnly []string) ([]byte, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: item is required", ErrInvalidArguments)
	}

	data, err := json.Marshal(PayloadFields(item, readOnly))
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	return data, nil
}

func unionFields(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))

	for _, list := range [][]string{base, extra} {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}

			seen[name] = struct{}{}
			out = append(out, name)
		}
	}

	return out
}
