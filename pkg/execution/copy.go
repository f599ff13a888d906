package execution

// deepCopy copies the JSON-shaped containers a run stores. Other values are
// treated as immutable and shared.
func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return copyMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = deepCopy(item)
		}

		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, item := range v {
			out[key] = item
		}

		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)

		return out
	case []map[string]any:
		out := make([]map[string]any, len(v))
		for i, item := range v {
			out[i] = copyMap(item)
		}

		return out
	default:
		return v
	}
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = deepCopy(value)
	}

	return out
}
