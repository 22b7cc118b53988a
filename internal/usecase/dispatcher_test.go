package usecase

import (
	"context"
	"strings"
	"testing"

	"capability-gateway/config"
	"capability-gateway/internal/catalog"
	"capability-gateway/internal/domain"
)

func newTestDispatcher(custody KeyCustodyClient, legacy LegacyGatewayClient) *Dispatcher {
	return NewDispatcher(catalog.New(), newTestKeyCustodyService(custody), newTestZosConnectService(legacy))
}

func TestDispatcher_Dispatch_UnknownOperationEchoesName(t *testing.T) {
	d := newTestDispatcher(newFakeCustodyClient(), &fakeLegacyClient{})

	_, gwErr := d.Dispatch(context.Background(), "keyprotect_destroy_everything", nil)
	if gwErr == nil {
		t.Fatal("want error for unknown tool")
	}
	if gwErr.Kind != domain.ErrUnknownOperation {
		t.Errorf("want UnknownOperation, got %s", gwErr.Kind)
	}
	if !strings.Contains(gwErr.Message, "keyprotect_destroy_everything") {
		t.Errorf("want message to echo the requested name, got %q", gwErr.Message)
	}
}

func TestDispatcher_Dispatch_ValidationErrorNamesField(t *testing.T) {
	d := newTestDispatcher(newFakeCustodyClient(), &fakeLegacyClient{})

	_, gwErr := d.Dispatch(context.Background(), catalog.ToolWrapKey, map[string]any{
		"plaintext": "c2VjcmV0",
	})
	if gwErr == nil {
		t.Fatal("want validation error")
	}
	if gwErr.Kind != domain.ErrValidation {
		t.Errorf("want ValidationError, got %s", gwErr.Kind)
	}
	if !strings.Contains(gwErr.Message, "key_id") {
		t.Errorf("want message to name the missing field, got %q", gwErr.Message)
	}
}

func TestDispatcher_Dispatch_RejectsUnexpectedArgument(t *testing.T) {
	d := newTestDispatcher(newFakeCustodyClient(), &fakeLegacyClient{})

	_, gwErr := d.Dispatch(context.Background(), catalog.ToolGetKey, map[string]any{
		"key_id":  "k1",
		"payload": "not part of this tool",
	})
	if gwErr == nil || gwErr.Kind != domain.ErrValidation {
		t.Fatalf("want ValidationError, got %v", gwErr)
	}
}

func TestDispatcher_HandlersCoverCatalogExactly(t *testing.T) {
	cat := catalog.New()
	d := NewDispatcher(cat, newTestKeyCustodyService(newFakeCustodyClient()), newTestZosConnectService(&fakeLegacyClient{}))

	for _, tool := range cat.List() {
		if d.handlers[tool.Name] == nil {
			t.Errorf("catalog tool %q has no handler", tool.Name)
		}
	}
	if len(d.handlers) != cat.Len() {
		t.Errorf("want %d handlers, got %d", cat.Len(), len(d.handlers))
	}
}

func TestDispatcher_Dispatch_SuccessReturnsJSONContent(t *testing.T) {
	fake := newFakeCustodyClient()
	fake.addKey("root-key", domain.KeyTypeRoot)
	d := newTestDispatcher(fake, &fakeLegacyClient{})

	content, gwErr := d.Dispatch(context.Background(), catalog.ToolGetKey, map[string]any{"key_id": "root-key"})
	if gwErr != nil {
		t.Fatalf("unexpected error: %v", gwErr)
	}
	if content.Type != "text" {
		t.Errorf("want content type text, got %s", content.Type)
	}
	if !strings.Contains(content.Text, `"root-key"`) {
		t.Errorf("want JSON body to contain key id, got %s", content.Text)
	}
}

func TestDispatcher_Dispatch_NilArgsTreatedAsEmpty(t *testing.T) {
	fake := newFakeCustodyClient()
	d := newTestDispatcher(fake, &fakeLegacyClient{})

	_, gwErr := d.Dispatch(context.Background(), catalog.ToolListKeys, nil)
	if gwErr != nil {
		t.Fatalf("unexpected error: %v", gwErr)
	}
}

func TestDispatcher_Dispatch_RecoversFromPanic(t *testing.T) {
	d := newTestDispatcher(newFakeCustodyClient(), &fakeLegacyClient{})
	d.handlers[catalog.ToolHealth] = func(ctx context.Context, args map[string]any) (any, error) {
		panic("handler exploded")
	}

	_, gwErr := d.Dispatch(context.Background(), catalog.ToolHealth, nil)
	if gwErr == nil {
		t.Fatal("want error after panic")
	}
	if gwErr.Kind != domain.ErrBackendUnavailable {
		t.Errorf("want BackendUnavailable, got %s", gwErr.Kind)
	}
}

func TestDispatcher_Dispatch_PartialAvailability(t *testing.T) {
	// 鍵カストディのみ設定済み。レガシーゲートウェイ側は未設定のまま。
	fake := newFakeCustodyClient()
	fake.addKey("root-key", domain.KeyTypeRoot)
	keys := newTestKeyCustodyService(fake)
	legacy := &ZosConnectService{
		cfg: &config.Config{},
		newClient: func(*config.Config) LegacyGatewayClient {
			t.Fatal("client must not be constructed without configuration")
			return nil
		},
	}
	d := NewDispatcher(catalog.New(), keys, legacy)
	ctx := context.Background()

	if _, gwErr := d.Dispatch(ctx, catalog.ToolGetKey, map[string]any{"key_id": "root-key"}); gwErr != nil {
		t.Fatalf("configured backend must stay usable: %v", gwErr)
	}

	_, gwErr := d.Dispatch(ctx, catalog.ToolHealth, nil)
	if gwErr == nil || gwErr.Kind != domain.ErrConfigurationMissing {
		t.Fatalf("want ConfigurationMissing for unconfigured backend, got %v", gwErr)
	}
}

func TestDispatcher_Dispatch_CallServiceArguments(t *testing.T) {
	fake := &fakeLegacyClient{baseURL: "http://zosconnect.test"}
	d := newTestDispatcher(newFakeCustodyClient(), fake)

	_, gwErr := d.Dispatch(context.Background(), catalog.ToolCallService, map[string]any{
		"service_name": "orderSvc",
		"operation":    "/orders/{id}",
		"method":       "GET",
		"path_params":  map[string]any{"id": "42"},
		"query_params": map[string]any{"expand": "items"},
	})
	if gwErr != nil {
		t.Fatalf("unexpected error: %v", gwErr)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("want 1 call, got %d", len(fake.calls))
	}
	want := "http://zosconnect.test/services/orderSvc/orders/42?expand=items"
	if fake.calls[0].endpoint != want {
		t.Errorf("want endpoint %s, got %s", want, fake.calls[0].endpoint)
	}
}
