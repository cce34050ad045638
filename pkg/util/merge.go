package util

// CloneMap returns a deep copy of m. Nested maps and slices are copied;
// other values are shared.
func CloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return CloneMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

// DeepMerge merges src into a copy of dst and returns it. When both sides
// hold a map under the same key the maps are merged recursively; in every
// other case (scalars, lists, type mismatch) the value from src wins.
// Neither input is modified.
func DeepMerge(dst, src map[string]interface{}) map[string]interface{} {
	out := CloneMap(dst)
	if out == nil {
		out = make(map[string]interface{}, len(src))
	}
	for k, sv := range src {
		if dm, ok := out[k].(map[string]interface{}); ok {
			if sm, ok := sv.(map[string]interface{}); ok {
				out[k] = DeepMerge(dm, sm)
				continue
			}
		}
		out[k] = cloneValue(sv)
	}
	return out
}
