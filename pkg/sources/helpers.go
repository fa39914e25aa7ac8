package sources

// Helper functions to safely extract fields from decoded JSON documents.

// GetStringField retrieves the string value for the given key. Returns an
// empty string if the key is absent or not a string.
func GetStringField(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetFloat64Field retrieves a numeric value as float64, converting int
// variants if necessary. Returns ok=false when absent or non-numeric.
func GetFloat64Field(m map[string]any, key string) (float64, bool) {
	if v, ok := m[key]; ok {
		switch val := v.(type) {
		case float64:
			return val, true
		case float32:
			return float64(val), true
		case int:
			return float64(val), true
		case int64:
			return float64(val), true
		}
	}
	return 0, false
}

// GetInt64Field retrieves a numeric value as int64. JSON numbers decode as
// float64, so that is the common case.
func GetInt64Field(m map[string]any, key string) (int64, bool) {
	if v, ok := m[key]; ok {
		switch val := v.(type) {
		case float64:
			return int64(val), true
		case int:
			return int64(val), true
		case int64:
			return val, true
		}
	}
	return 0, false
}

// GetMapField retrieves a nested JSON object.
func GetMapField(m map[string]any, key string) map[string]any {
	if v, ok := m[key]; ok {
		if mm, ok := v.(map[string]any); ok {
			return mm
		}
	}
	return nil
}

// GetSliceField retrieves a nested JSON array.
func GetSliceField(m map[string]any, key string) []any {
	if v, ok := m[key]; ok {
		if s, ok := v.([]any); ok {
			return s
		}
	}
	return nil
}

// GetStringSliceField retrieves a JSON array of strings, skipping non-string members.
func GetStringSliceField(m map[string]any, key string) []string {
	var out []string
	for _, v := range GetSliceField(m, key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// copyFloat copies doc[field] into p[key] when present and numeric.
// Keeps provider mapping code terse.
func copyFloat(p map[string]any, key string, doc map[string]any, field string) {
	if v, ok := GetFloat64Field(doc, field); ok {
		p[key] = v
	}
}

// copyInt copies doc[field] into p[key] as int64 when present and numeric.
func copyInt(p map[string]any, key string, doc map[string]any, field string) {
	if v, ok := GetInt64Field(doc, field); ok {
		p[key] = v
	}
}
