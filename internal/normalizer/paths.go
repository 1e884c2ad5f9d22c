package normalizer

import "strings"

// lookupPath walks a dot-delimited path through nested JSON objects. It
// returns false when any segment is absent or the value at a segment is not
// an object.
func lookupPath(payload map[string]any, path string) (any, bool) {
	current := any(payload)
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok := obj[part]
		if !ok || value == nil {
			return nil, false
		}
		current = value
	}
	return current, true
}

// firstValue tries each candidate path in order and returns the first value
// present. Source document shapes drift; operators update these path lists
// rather than code.
func firstValue(payload map[string]any, paths []string) (any, bool) {
	for _, path := range paths {
		if value, ok := lookupPath(payload, path); ok {
			return value, true
		}
	}
	return nil, false
}
