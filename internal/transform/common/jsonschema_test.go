package common

import "testing"

func TestCleanJSONSchemaStripsForbiddenFields(t *testing.T) {
	schema := map[string]any{
		"type":                 "object",
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"additionalProperties": false,
		"properties": map[string]any{
			"name": map[string]any{
				"type":      "string",
				"minLength": 1,
				"format":    "email",
			},
		},
	}

	got := CleanJSONSchema(schema)

	if _, ok := got["$schema"]; ok {
		t.Error("$schema should have been stripped")
	}
	if _, ok := got["additionalProperties"]; ok {
		t.Error("additionalProperties should have been stripped")
	}
	if got["type"] != "OBJECT" {
		t.Errorf("root type = %v, want OBJECT", got["type"])
	}
	nameSchema := got["properties"].(map[string]any)["name"].(map[string]any)
	if nameSchema["type"] != "STRING" {
		t.Errorf("nested type = %v, want STRING", nameSchema["type"])
	}
	if _, ok := nameSchema["minLength"]; ok {
		t.Error("minLength should have been stripped")
	}
	if _, ok := nameSchema["format"]; ok {
		t.Error("format should have been stripped")
	}
}

func TestCleanJSONSchemaForcesRootObjectType(t *testing.T) {
	got := CleanJSONSchema(map[string]any{"properties": map[string]any{}})
	if got["type"] != "OBJECT" {
		t.Errorf("type = %v, want OBJECT when absent", got["type"])
	}
}

func TestCollapseUnionToEnum(t *testing.T) {
	schema := map[string]any{
		"anyOf": []any{
			map[string]any{"const": "a"},
			map[string]any{"const": "b"},
		},
	}
	got := collapseUnionToEnum(schema, "anyOf")
	enum, ok := got["enum"].([]any)
	if !ok || len(enum) != 2 {
		t.Fatalf("collapseUnionToEnum() = %#v, want 2-element enum", got)
	}
	if _, ok := got["anyOf"]; ok {
		t.Error("anyOf should have been removed after collapsing")
	}
}

func TestCollapseUnionToEnumLeavesNonConstBranchesAlone(t *testing.T) {
	schema := map[string]any{
		"anyOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"const": "b"},
		},
	}
	got := collapseUnionToEnum(schema, "anyOf")
	if _, ok := got["enum"]; ok {
		t.Error("should not collapse when a branch lacks const")
	}
}

func TestMergeAllOf(t *testing.T) {
	schema := map[string]any{
		"allOf": []any{
			map[string]any{"properties": map[string]any{"a": map[string]any{"type": "string"}}, "required": []any{"a"}},
			map[string]any{"properties": map[string]any{"b": map[string]any{"type": "number"}}, "required": []any{"b"}},
		},
	}
	got := mergeAllOf(schema, schema, 0)
	props := got["properties"].(map[string]any)
	if len(props) != 2 {
		t.Fatalf("merged properties = %#v, want 2 entries", props)
	}
	required := got["required"].([]any)
	if len(required) != 2 {
		t.Fatalf("merged required = %#v, want 2 entries", required)
	}
}

func TestResolveRefsAndMergeFollowsLocalRef(t *testing.T) {
	root := map[string]any{
		"definitions": map[string]any{
			"Name": map[string]any{"type": "string"},
		},
	}
	schema := map[string]any{"$ref": "#/definitions/Name"}
	got := ResolveRefsAndMerge(schema, root, 0)
	if got["type"] != "string" {
		t.Errorf("resolved $ref type = %v, want string", got["type"])
	}
}
