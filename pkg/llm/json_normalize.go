package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizeJSONArraysToStrings walks a JSON structure and converts arrays of
// strings inside object fields to comma-joined strings. Models occasionally
// return {"field": ["a", "b"]} where {"field": "a, b"} was requested; this
// repairs that without rejecting the whole response.
//
// Top-level arrays are preserved (an empty array is a valid response).
//
// Returns the normalized bytes, whether anything changed, and a parse error
// if the input is not valid JSON.
func NormalizeJSONArraysToStrings(jsonBytes []byte) ([]byte, bool, error) {
	var data any
	if err := json.Unmarshal(jsonBytes, &data); err != nil {
		return nil, false, fmt.Errorf("failed to parse JSON: %w", err)
	}

	changed := false
	normalized := normalizeValue(data, &changed, true)

	result, err := json.Marshal(normalized)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal normalized JSON: %w", err)
	}

	return result, changed, nil
}

// normalizeValue recursively rewrites string arrays to joined strings.
// topLevel guards the root value, which keeps its shape.
func normalizeValue(value any, changed *bool, topLevel bool) any {
	switch v := value.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			result[key] = normalizeValue(val, changed, false)
		}
		return result

	case []any:
		if !topLevel && isStringArray(v) {
			*changed = true
			return joinStrings(v)
		}
		result := make([]any, len(v))
		for i, elem := range v {
			result[i] = normalizeValue(elem, changed, false)
		}
		return result

	default:
		return value
	}
}

func isStringArray(arr []any) bool {
	if len(arr) == 0 {
		return true
	}
	for _, elem := range arr {
		if _, ok := elem.(string); !ok {
			return false
		}
	}
	return true
}

func joinStrings(arr []any) string {
	if len(arr) == 0 {
		return ""
	}
	strs := make([]string, len(arr))
	for i, elem := range arr {
		strs[i] = elem.(string)
	}
	return strings.Join(strs, ", ")
}
