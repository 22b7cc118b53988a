package usecase

import (
	"context"
	"encoding/json"

	"capability-gateway/internal/catalog"
	"capability-gateway/internal/domain"
)

// HandlerFunc は検証済みの引数マップを受け取るツールハンドラ。
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Dispatcher は呼び出し名からハンドラへの閉じた対応を保持し、検証・実行・正規化を行う。
// 名前接頭辞によるルーティングは行わず、対応表は構築時に確定する。
type Dispatcher struct {
	catalog  *catalog.Catalog
	handlers map[string]HandlerFunc
}

// NewDispatcher はカタログの全ツールをアダプタのメソッドへ束縛したDispatcherを生成する。
func NewDispatcher(cat *catalog.Catalog, keys *KeyCustodyService, legacy *ZosConnectService) *Dispatcher {
	handlers := map[string]HandlerFunc{
		catalog.ToolListKeys: func(ctx context.Context, args map[string]any) (any, error) {
			return keys.List(ctx,
				argInt(args, "limit", 100),
				argInt(args, "offset", 0),
				argStringSlice(args, "state"))
		},
		catalog.ToolCreateKey: func(ctx context.Context, args map[string]any) (any, error) {
			return keys.Create(ctx, domain.CreateKeyRequest{
				Name:        argString(args, "name"),
				Description: argString(args, "description"),
				Type:        domain.KeyType(argStringDefault(args, "type", string(domain.KeyTypeStandard))),
				Extractable: argBool(args, "extractable"),
				Payload:     argString(args, "payload"),
			})
		},
		catalog.ToolGetKey: func(ctx context.Context, args map[string]any) (any, error) {
			return keys.Get(ctx, argString(args, "key_id"))
		},
		catalog.ToolWrapKey: func(ctx context.Context, args map[string]any) (any, error) {
			return keys.Wrap(ctx,
				argString(args, "key_id"),
				argString(args, "plaintext"),
				argStringSlice(args, "aad"))
		},
		catalog.ToolUnwrapKey: func(ctx context.Context, args map[string]any) (any, error) {
			return keys.Unwrap(ctx,
				argString(args, "key_id"),
				argString(args, "ciphertext"),
				argStringSlice(args, "aad"),
				argString(args, "key_version"))
		},
		catalog.ToolRotateKey: func(ctx context.Context, args map[string]any) (any, error) {
			return keys.Rotate(ctx, argString(args, "key_id"), argString(args, "payload"))
		},
		catalog.ToolDeleteKey: func(ctx context.Context, args map[string]any) (any, error) {
			return keys.Delete(ctx, argString(args, "key_id"), argBool(args, "force"))
		},
		catalog.ToolGetKeyPolicies: func(ctx context.Context, args map[string]any) (any, error) {
			return keys.Policies(ctx, argString(args, "key_id"))
		},
		catalog.ToolListServices: func(ctx context.Context, _ map[string]any) (any, error) {
			return legacy.ListServices(ctx)
		},
		catalog.ToolListAPIs: func(ctx context.Context, _ map[string]any) (any, error) {
			return legacy.ListAPIs(ctx)
		},
		catalog.ToolGetService: func(ctx context.Context, args map[string]any) (any, error) {
			return legacy.GetService(ctx, argString(args, "service_name"))
		},
		catalog.ToolCallService: func(ctx context.Context, args map[string]any) (any, error) {
			return legacy.CallService(ctx, domain.CallRequest{
				ServiceName:   argString(args, "service_name"),
				OperationPath: argString(args, "operation"),
				Method:        argString(args, "method"),
				Payload:       args["payload"],
				PathParams:    argStringMap(args, "path_params"),
				QueryParams:   argStringMap(args, "query_params"),
			})
		},
		catalog.ToolHealth: func(ctx context.Context, _ map[string]any) (any, error) {
			return legacy.Health(ctx)
		},
	}
	return &Dispatcher{catalog: cat, handlers: handlers}
}

// Catalog はディスカバリー用のツールカタログを返す。
func (d *Dispatcher) Catalog() *catalog.Catalog {
	return d.catalog
}

// Dispatch は呼び出しを検証し、所有するアダプタへ委譲し、結果または正規化済みエラーを返す。
// どの経路でも未処理の例外が呼び出し側へ伝播することはない。
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (content domain.Content, gwErr *domain.GatewayError) {
	defer func() {
		if r := recover(); r != nil {
			gwErr = domain.NewError(domain.ErrBackendUnavailable, "unexpected fault during %q: %v", name, r)
			content = domain.Content{}
		}
	}()

	if args == nil {
		args = map[string]any{}
	}

	tool, ok := d.catalog.Lookup(name)
	if !ok {
		return domain.Content{}, domain.NewError(domain.ErrUnknownOperation, "unknown tool: %q", name)
	}
	if err := tool.InputSchema.Validate(args); err != nil {
		return domain.Content{}, err
	}

	result, err := d.handlers[name](ctx, args)
	if err != nil {
		return domain.Content{}, Normalize(err)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return domain.Content{}, domain.WrapError(domain.ErrBackendUnavailable, err, "encoding result: %v", err)
	}
	return domain.TextContent(string(encoded)), nil
}

func argString(args map[string]any, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}

func argStringDefault(args map[string]any, name, defaultVal string) string {
	if v, ok := args[name].(string); ok && v != "" {
		return v
	}
	return defaultVal
}

func argInt(args map[string]any, name string, defaultVal int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultVal
	}
}

func argBool(args map[string]any, name string) bool {
	v, _ := args[name].(bool)
	return v
}

func argStringSlice(args map[string]any, name string) []string {
	raw, ok := args[name].([]any)
	if !ok {
		if typed, ok := args[name].([]string); ok {
			return typed
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func argStringMap(args map[string]any, name string) map[string]string {
	raw, ok := args[name].(map[string]any)
	if !ok {
		if typed, ok := args[name].(map[string]string); ok {
			return typed
		}
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
