// Package common holds helpers shared by the Anthropic and OpenAI
// transformers: JSON-schema cleaning, background-task detection, the
// "[undefined]" scrub, and networking-tool detection. Grounded on
// original_source/handlers/openai.rs's tool-schema cleaning plus the
// enhanced $ref/allOf/anyOf resolution found in
// _examples/other_examples/9592c77c_..._to_ir-antigravity.go.go.
package common

import (
	"strings"

	"github.com/tidwall/sjson"
)

// forbiddenSchemaFields are stripped at every depth before a tool
// declaration is sent to Upstream (SPEC_FULL.md §4.1 step 10).
var forbiddenSchemaFields = []string{"$schema", "additionalProperties", "format", "minLength", "default", "definitions", "strict"}

// CleanJSONSchema first resolves local $ref, allOf and const-only
// anyOf/oneOf (ResolveRefsAndMerge, with schema as its own root), then
// strips forbidden fields and uppercases every "type" value, recursively,
// and returns the cleaned tree. It operates on an already-decoded map so
// callers can plug it into either dialect's pipeline without a JSON round
// trip through raw bytes.
func CleanJSONSchema(schema map[string]any) map[string]any {
	cleaned := cleanNode(ResolveRefsAndMerge(schema, schema, 0), 0).(map[string]any)
	if _, ok := cleaned["type"]; !ok {
		cleaned["type"] = "OBJECT"
	}
	return cleaned
}

func cleanNode(node any, depth int) any {
	if depth > 20 {
		return node
	}
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if isForbidden(k) {
				continue
			}
			out[k] = cleanNode(val, depth+1)
		}
		if t, ok := out["type"]; ok {
			if s, ok := t.(string); ok {
				out["type"] = strings.ToUpper(s)
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cleanNode(item, depth+1)
		}
		return out
	default:
		return node
	}
}

func isForbidden(key string) bool {
	for _, f := range forbiddenSchemaFields {
		if key == f {
			return true
		}
	}
	return false
}

// ResolveRefsAndMerge resolves local "$ref" pointers within rootSchema,
// merges "allOf" branches (later branch's fields win on conflict), and
// collapses "anyOf"/"oneOf" into "enum" when every branch is a bare
// const — the enhancement found in the Go corpus's to_ir translator, a
// real-world necessity beyond the flat field-stripping above.
func ResolveRefsAndMerge(schema, root map[string]any, depth int) map[string]any {
	if depth > 20 {
		return schema
	}
	schema = followRef(schema, root, depth)
	schema = mergeAllOf(schema, root, depth)
	schema = collapseUnionToEnum(schema, "anyOf")
	schema = collapseUnionToEnum(schema, "oneOf")

	if props, ok := schema["properties"].(map[string]any); ok {
		resolved := make(map[string]any, len(props))
		for k, v := range props {
			if child, ok := v.(map[string]any); ok {
				resolved[k] = ResolveRefsAndMerge(child, root, depth+1)
			} else {
				resolved[k] = v
			}
		}
		schema["properties"] = resolved
	}
	if items, ok := schema["items"].(map[string]any); ok {
		schema["items"] = ResolveRefsAndMerge(items, root, depth+1)
	}
	return schema
}

func followRef(schema, root map[string]any, depth int) map[string]any {
	ref, ok := schema["$ref"].(string)
	if !ok || !strings.HasPrefix(ref, "#/") {
		return schema
	}
	target := walkRef(root, strings.Split(strings.TrimPrefix(ref, "#/"), "/"))
	if target == nil {
		return schema
	}
	return ResolveRefsAndMerge(target, root, depth+1)
}

func walkRef(root map[string]any, parts []string) map[string]any {
	cur := any(root)
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[p]
		if !ok {
			return nil
		}
	}
	m, _ := cur.(map[string]any)
	return m
}

func mergeAllOf(schema, root map[string]any, depth int) map[string]any {
	branches, ok := schema["allOf"].([]any)
	if !ok {
		return schema
	}
	merged := make(map[string]any)
	for k, v := range schema {
		if k != "allOf" {
			merged[k] = v
		}
	}
	mergedProps, _ := merged["properties"].(map[string]any)
	if mergedProps == nil {
		mergedProps = make(map[string]any)
	}
	var mergedRequired []any
	if r, ok := merged["required"].([]any); ok {
		mergedRequired = r
	}
	for _, b := range branches {
		branchMap, ok := b.(map[string]any)
		if !ok {
			continue
		}
		branchMap = ResolveRefsAndMerge(branchMap, root, depth+1)
		for k, v := range branchMap {
			switch k {
			case "properties":
				if props, ok := v.(map[string]any); ok {
					for pk, pv := range props {
						mergedProps[pk] = pv
					}
				}
			case "required":
				if req, ok := v.([]any); ok {
					mergedRequired = append(mergedRequired, req...)
				}
			default:
				merged[k] = v
			}
		}
	}
	merged["properties"] = mergedProps
	if len(mergedRequired) > 0 {
		merged["required"] = uniqueStrings(mergedRequired)
	}
	return merged
}

func uniqueStrings(items []any) []any {
	seen := make(map[string]bool, len(items))
	out := make([]any, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, it)
	}
	return out
}

func collapseUnionToEnum(schema map[string]any, key string) map[string]any {
	branches, ok := schema[key].([]any)
	if !ok {
		return schema
	}
	enum := make([]any, 0, len(branches))
	for _, b := range branches {
		branchMap, ok := b.(map[string]any)
		if !ok {
			return schema
		}
		c, ok := branchMap["const"]
		if !ok {
			return schema
		}
		if c == nil {
			return schema
		}
		if s, ok := c.(string); ok && s == "" {
			return schema
		}
		enum = append(enum, c)
	}
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if k != key {
			out[k] = v
		}
	}
	out["enum"] = enum
	return out
}

// DeleteSchemaField removes a dotted field path from raw JSON bytes using
// sjson, for the rare case a caller is working with raw bytes rather than
// a decoded map (e.g. one targeted deletion on an otherwise-untouched
// payload, avoiding a full unmarshal/marshal round trip).
func DeleteSchemaField(raw []byte, path string) ([]byte, error) {
	return sjson.DeleteBytes(raw, path)
}
