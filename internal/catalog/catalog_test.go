package catalog

import (
	"encoding/json"
	"strings"
	"testing"

	"capability-gateway/internal/domain"
)

func TestNew_ContainsThirteenTools(t *testing.T) {
	cat := New()
	if cat.Len() != 13 {
		t.Fatalf("want 13 tools, got %d", cat.Len())
	}
}

func TestNew_ToolNamesCarryBackendPrefix(t *testing.T) {
	for _, tool := range New().List() {
		switch tool.Backend {
		case domain.BackendKeyCustody:
			if !strings.HasPrefix(tool.Name, "keyprotect_") {
				t.Errorf("key custody tool %q lacks keyprotect_ prefix", tool.Name)
			}
		case domain.BackendLegacyGateway:
			if !strings.HasPrefix(tool.Name, "zos_connect_") {
				t.Errorf("legacy gateway tool %q lacks zos_connect_ prefix", tool.Name)
			}
		default:
			t.Errorf("tool %q has unknown backend %q", tool.Name, tool.Backend)
		}
	}
}

func TestCatalog_Lookup(t *testing.T) {
	cat := New()

	tool, ok := cat.Lookup(ToolWrapKey)
	if !ok {
		t.Fatalf("want %s to exist", ToolWrapKey)
	}
	if tool.Name != ToolWrapKey {
		t.Errorf("want %s, got %s", ToolWrapKey, tool.Name)
	}

	if _, ok := cat.Lookup("no_such_tool"); ok {
		t.Error("want lookup miss for unknown name")
	}
}

func TestCatalog_List_StableOrder(t *testing.T) {
	first := New().List()
	second := New().List()
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Fatalf("order differs at %d: %s vs %s", i, first[i].Name, second[i].Name)
		}
	}
}

func TestTool_MarshalOmitsBackend(t *testing.T) {
	tool, _ := New().Lookup(ToolGetKey)
	encoded, err := json.Marshal(tool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(encoded), "backend") {
		t.Errorf("backend must not appear in discovery payload: %s", encoded)
	}
	if !strings.Contains(string(encoded), "input_schema") {
		t.Errorf("want input_schema in discovery payload: %s", encoded)
	}
}

func TestSchema_Validate(t *testing.T) {
	wrapSchema := mustSchema(t, ToolWrapKey)
	listSchema := mustSchema(t, ToolListKeys)
	createSchema := mustSchema(t, ToolCreateKey)
	callSchema := mustSchema(t, ToolCallService)

	tests := []struct {
		name    string
		schema  Schema
		args    map[string]any
		wantErr string
	}{
		{
			name:   "valid wrap args",
			schema: wrapSchema,
			args:   map[string]any{"key_id": "k1", "plaintext": "cGxhaW4=", "aad": []any{"a", "b"}},
		},
		{
			name:    "missing required field",
			schema:  wrapSchema,
			args:    map[string]any{"plaintext": "cGxhaW4="},
			wantErr: "key_id",
		},
		{
			name:    "unexpected argument",
			schema:  wrapSchema,
			args:    map[string]any{"key_id": "k1", "plaintext": "cGxhaW4=", "bogus": 1},
			wantErr: "bogus",
		},
		{
			name:    "wrong type for string",
			schema:  wrapSchema,
			args:    map[string]any{"key_id": 42, "plaintext": "cGxhaW4="},
			wantErr: "key_id",
		},
		{
			name:    "array items must be strings",
			schema:  wrapSchema,
			args:    map[string]any{"key_id": "k1", "plaintext": "cGxhaW4=", "aad": []any{"a", 5}},
			wantErr: "aad",
		},
		{
			name:   "integer accepted as json float",
			schema: listSchema,
			args:   map[string]any{"limit": float64(50)},
		},
		{
			name:    "fractional value rejected for integer",
			schema:  listSchema,
			args:    map[string]any{"limit": 1.5},
			wantErr: "limit",
		},
		{
			name:    "negative value below minimum",
			schema:  listSchema,
			args:    map[string]any{"offset": float64(-1)},
			wantErr: "offset",
		},
		{
			name:    "enum violation",
			schema:  createSchema,
			args:    map[string]any{"name": "k1", "type": "master_key"},
			wantErr: "type",
		},
		{
			name:   "object map with string values",
			schema: callSchema,
			args:   map[string]any{"service_name": "svc", "path_params": map[string]any{"id": "42"}},
		},
		{
			name:    "object map with non-string value",
			schema:  callSchema,
			args:    map[string]any{"service_name": "svc", "path_params": map[string]any{"id": 42}},
			wantErr: "path_params.id",
		},
		{
			name:    "null argument rejected",
			schema:  wrapSchema,
			args:    map[string]any{"key_id": "k1", "plaintext": nil},
			wantErr: "plaintext",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate(tt.args)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("want validation error")
			}
			if err.Kind != domain.ErrValidation {
				t.Errorf("want ValidationError, got %s", err.Kind)
			}
			if !strings.Contains(err.Message, tt.wantErr) {
				t.Errorf("want message to mention %q, got %q", tt.wantErr, err.Message)
			}
		})
	}
}

func mustSchema(t *testing.T, name string) Schema {
	t.Helper()
	tool, ok := New().Lookup(name)
	if !ok {
		t.Fatalf("tool %s not in catalog", name)
	}
	return tool.InputSchema
}
