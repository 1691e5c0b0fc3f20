package typeutils

import (
	"strings"
)

// AttributesKey is the metadata object Salesforce attaches to every JSON
// record and relationship; it never reaches the destination
const AttributesKey = "attributes"

// StripAttributes returns a deep copy of value with every `attributes` key
// removed from nested objects. Non-object values are returned as-is.
func StripAttributes(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, nested := range v {
			if key == AttributesKey {
				continue
			}
			out[key] = StripAttributes(nested)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for idx, nested := range v {
			out[idx] = StripAttributes(nested)
		}
		return out
	default:
		return value
	}
}

// Flatten writes every leaf of value into destination under a dotted path
// rooted at prefix, e.g. Owner.Manager.Name. A nil relationship is kept as a
// single nil leaf.
func Flatten(prefix string, value any, destination map[string]any) {
	nested, ok := value.(map[string]any)
	if !ok {
		destination[prefix] = value
		return
	}

	for key, child := range nested {
		if key == AttributesKey {
			continue
		}
		Flatten(prefix+"."+key, child, destination)
	}
}

// Unflatten nests a dotted key into destination, creating intermediate
// objects as needed. An existing non-object value on the path is replaced.
func Unflatten(key string, value any, destination map[string]any) {
	parts := strings.Split(key, ".")
	current := destination
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
