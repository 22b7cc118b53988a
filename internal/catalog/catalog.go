// Package catalog はゲートウェイが公開するツールカタログを定義する。
// カタログは純粋なデータであり、プロセス起動時に一度構築され以後変更されない。
package catalog

import "capability-gateway/internal/domain"

// 鍵カストディ系ツール名。
const (
	ToolListKeys       = "keyprotect_list_keys"
	ToolCreateKey      = "keyprotect_create_key"
	ToolGetKey         = "keyprotect_get_key"
	ToolWrapKey        = "keyprotect_wrap_key"
	ToolUnwrapKey      = "keyprotect_unwrap_key"
	ToolRotateKey      = "keyprotect_rotate_key"
	ToolDeleteKey      = "keyprotect_delete_key"
	ToolGetKeyPolicies = "keyprotect_get_key_policies"
)

// レガシーゲートウェイ系ツール名。
const (
	ToolListServices = "zos_connect_list_services"
	ToolListAPIs     = "zos_connect_list_apis"
	ToolGetService   = "zos_connect_get_service"
	ToolCallService  = "zos_connect_call_service"
	ToolHealth       = "zos_connect_health"
)

// Tool は1つのツールの宣言を表す。
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Backend     domain.Backend `json:"-"`
	InputSchema Schema         `json:"input_schema"`
}

// Catalog はツール名から宣言への閉じた対応を保持する。
type Catalog struct {
	tools []Tool
	index map[string]int
}

// New は固定のツールカタログを構築する。
func New() *Catalog {
	tools := []Tool{
		{
			Name:        ToolListKeys,
			Description: "List keys in the key custody service with paging and optional state filter",
			Backend:     domain.BackendKeyCustody,
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"limit":  {Type: "integer", Description: "Maximum number of keys to return", Default: 100, Minimum: minimum(0)},
					"offset": {Type: "integer", Description: "Number of keys to skip", Default: 0, Minimum: minimum(0)},
					"state": {Type: "array", Description: "Filter by key state",
						Items: &Property{Type: "string", Enum: []string{"active", "suspended", "deactivated", "destroyed"}}},
				},
			},
		},
		{
			Name:        ToolCreateKey,
			Description: "Create a root or standard key; root keys are never extractable",
			Backend:     domain.BackendKeyCustody,
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"name":        {Type: "string", Description: "Unique key name"},
					"description": {Type: "string", Description: "Human readable description"},
					"type":        {Type: "string", Description: "Key type", Enum: []string{"root_key", "standard_key"}, Default: "standard_key"},
					"extractable": {Type: "boolean", Description: "Whether key material may leave the service (standard keys only)", Default: false},
					"payload":     {Type: "string", Description: "Base64 key material to import instead of generating"},
				},
				Required: []string{"name"},
			},
		},
		{
			Name:        ToolGetKey,
			Description: "Fetch the full metadata record of a key",
			Backend:     domain.BackendKeyCustody,
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"key_id": {Type: "string", Description: "Key identifier"},
				},
				Required: []string{"key_id"},
			},
		},
		{
			Name:        ToolWrapKey,
			Description: "Wrap a base64 DEK under a root key, optionally binding additional authenticated data",
			Backend:     domain.BackendKeyCustody,
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"key_id":    {Type: "string", Description: "Root key identifier"},
					"plaintext": {Type: "string", Description: "Base64 DEK to wrap"},
					"aad":       {Type: "array", Description: "Additional authenticated data strings", Items: &Property{Type: "string"}},
				},
				Required: []string{"key_id", "plaintext"},
			},
		},
		{
			Name:        ToolUnwrapKey,
			Description: "Unwrap a ciphertext produced by wrap; AAD must match exactly",
			Backend:     domain.BackendKeyCustody,
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"key_id":      {Type: "string", Description: "Root key identifier"},
					"ciphertext":  {Type: "string", Description: "Ciphertext returned by wrap"},
					"aad":         {Type: "array", Description: "Additional authenticated data strings supplied at wrap", Items: &Property{Type: "string"}},
					"key_version": {Type: "string", Description: "Key version returned by wrap, for unwrapping across rotations"},
				},
				Required: []string{"key_id", "ciphertext"},
			},
		},
		{
			Name:        ToolRotateKey,
			Description: "Rotate a root key; previously wrapped ciphertexts remain unwrappable against their key version",
			Backend:     domain.BackendKeyCustody,
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"key_id":  {Type: "string", Description: "Root key identifier"},
					"payload": {Type: "string", Description: "Base64 key material for the new version instead of generating"},
				},
				Required: []string{"key_id"},
			},
		},
		{
			Name:        ToolDeleteKey,
			Description: "Delete a key irreversibly",
			Backend:     domain.BackendKeyCustody,
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"key_id": {Type: "string", Description: "Key identifier"},
					"force":  {Type: "boolean", Description: "Force deletion even if the key is in use", Default: false},
				},
				Required: []string{"key_id"},
			},
		},
		{
			Name:        ToolGetKeyPolicies,
			Description: "Read rotation and dual-authorization policies of a key",
			Backend:     domain.BackendKeyCustody,
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"key_id": {Type: "string", Description: "Key identifier"},
				},
				Required: []string{"key_id"},
			},
		},
		{
			Name:        ToolListServices,
			Description: "List services deployed on the legacy gateway",
			Backend:     domain.BackendLegacyGateway,
			InputSchema: Schema{Type: "object", Properties: map[string]Property{}},
		},
		{
			Name:        ToolListAPIs,
			Description: "List APIs deployed on the legacy gateway",
			Backend:     domain.BackendLegacyGateway,
			InputSchema: Schema{Type: "object", Properties: map[string]Property{}},
		},
		{
			Name:        ToolGetService,
			Description: "Fetch the descriptor and specification of a deployed service",
			Backend:     domain.BackendLegacyGateway,
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"service_name": {Type: "string", Description: "Deployed service name"},
				},
				Required: []string{"service_name"},
			},
		},
		{
			Name:        ToolCallService,
			Description: "Invoke an operation of a deployed service with path and query substitution",
			Backend:     domain.BackendLegacyGateway,
			InputSchema: Schema{
				Type: "object",
				Properties: map[string]Property{
					"service_name": {Type: "string", Description: "Deployed service name"},
					"operation":    {Type: "string", Description: "Operation path, may contain {param} placeholders", Default: "/"},
					"method":       {Type: "string", Description: "HTTP method", Enum: []string{"GET", "POST", "PUT", "DELETE", "PATCH"}, Default: "POST"},
					"payload":      {Type: "object", Description: "JSON body for POST/PUT/PATCH"},
					"path_params": {Type: "object", Description: "Values substituted into {param} placeholders",
						AdditionalProperties: &Property{Type: "string"}},
					"query_params": {Type: "object", Description: "Query string parameters",
						AdditionalProperties: &Property{Type: "string"}},
				},
				Required: []string{"service_name"},
			},
		},
		{
			Name:        ToolHealth,
			Description: "Report the health of the legacy gateway",
			Backend:     domain.BackendLegacyGateway,
			InputSchema: Schema{Type: "object", Properties: map[string]Property{}},
		},
	}

	index := make(map[string]int, len(tools))
	for i, t := range tools {
		index[t.Name] = i
	}
	return &Catalog{tools: tools, index: index}
}

// List はディスカバリー用の安定した順序のツール一覧を返す。
func (c *Catalog) List() []Tool {
	out := make([]Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Lookup は名前からツール宣言を引く。
func (c *Catalog) Lookup(name string) (Tool, bool) {
	i, ok := c.index[name]
	if !ok {
		return Tool{}, false
	}
	return c.tools[i], true
}

// Len は登録されているツール数を返す。
func (c *Catalog) Len() int {
	return len(c.tools)
}
