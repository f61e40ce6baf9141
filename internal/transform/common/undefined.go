package common

// undefinedLiteral is the literal string some clients (notably Cherry
// Studio) inject where a value was left unset client-side.
const undefinedLiteral = "[undefined]"

// DeepCleanUndefined walks an already-decoded JSON tree and removes any
// map entry or slice element whose value is the literal string
// "[undefined]", recursing into nested tool-call arguments as well as
// top-level fields (SPEC_FULL.md §4.1 step 14, §12 "recursive over the
// whole assembled Upstream request").
func DeepCleanUndefined(node any) any {
	switch v := node.(type) {
	case map[string]any:
		for k, val := range v {
			if s, ok := val.(string); ok && s == undefinedLiteral {
				delete(v, k)
				continue
			}
			v[k] = DeepCleanUndefined(val)
		}
		return v
	case []any:
		out := v[:0]
		for _, item := range v {
			if s, ok := item.(string); ok && s == undefinedLiteral {
				continue
			}
			out = append(out, DeepCleanUndefined(item))
		}
		return out
	default:
		return node
	}
}

// RemoveNullsFromToolInput recursively strips JSON null values from tool
// call arguments, for client compatibility with tools whose result
// round-trip otherwise injects literal nulls that some models treat as
// real argument values (SPEC_FULL.md §12).
func RemoveNullsFromToolInput(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for k, val := range v {
			if val == nil {
				delete(v, k)
				continue
			}
			v[k] = RemoveNullsFromToolInput(val)
		}
		return v
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, RemoveNullsFromToolInput(item))
		}
		return out
	default:
		return value
	}
}
