package usecase

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"capability-gateway/config"
	"capability-gateway/internal/domain"
	"capability-gateway/internal/infra"
)

// LegacyGatewayClient はレガシーゲートウェイとの通信インターフェース。
type LegacyGatewayClient interface {
	ListServices(ctx context.Context) ([]domain.ServiceSummary, error)
	ListAPIs(ctx context.Context) ([]domain.APISummary, error)
	GetService(ctx context.Context, name string) (*domain.ServiceDescriptor, error)
	Health(ctx context.Context) (any, error)
	Call(ctx context.Context, method, endpoint string, payload any) (*domain.CallResult, error)
	BaseURL() string
}

// 許可されるHTTPメソッドの集合。
var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

// placeholderPattern はパステンプレートの{param}プレースホルダを列挙する。
var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// ZosConnectService はレガシーゲートウェイ系操作のビジネスロジックを提供する。
type ZosConnectService struct {
	cfg       *config.Config
	newClient func(*config.Config) LegacyGatewayClient
	once      sync.Once
	cli       LegacyGatewayClient
}

// NewZosConnectService は新しいZosConnectServiceを生成する。
// バックエンドクライアントは最初の利用時に一度だけ構築される。
func NewZosConnectService(cfg *config.Config) *ZosConnectService {
	return &ZosConnectService{
		cfg: cfg,
		newClient: func(c *config.Config) LegacyGatewayClient {
			return infra.NewZosConnectClient(c)
		},
	}
}

// client は遅延初期化されたバックエンドクライアントを返す。
func (s *ZosConnectService) client() (LegacyGatewayClient, *domain.GatewayError) {
	if !s.cfg.ZosConnectConfigured() {
		return nil, domain.NewError(domain.ErrConfigurationMissing,
			"legacy gateway is not configured: ZOS_CONNECT_URL is required")
	}
	s.once.Do(func() {
		s.cli = s.newClient(s.cfg)
	})
	return s.cli, nil
}

// ListServices はデプロイ済みサービスの一覧を取得する。
func (s *ZosConnectService) ListServices(ctx context.Context) ([]domain.ServiceSummary, error) {
	cli, gwErr := s.client()
	if gwErr != nil {
		return nil, gwErr
	}
	return cli.ListServices(ctx)
}

// ListAPIs はデプロイ済みAPIの一覧を取得する。
func (s *ZosConnectService) ListAPIs(ctx context.Context) ([]domain.APISummary, error) {
	cli, gwErr := s.client()
	if gwErr != nil {
		return nil, gwErr
	}
	return cli.ListAPIs(ctx)
}

// GetService はサービスの詳細と仕様を取得する。未デプロイならNotFoundになる。
func (s *ZosConnectService) GetService(ctx context.Context, name string) (*domain.ServiceDescriptor, error) {
	cli, gwErr := s.client()
	if gwErr != nil {
		return nil, gwErr
	}
	return cli.GetService(ctx, name)
}

// Health はゲートウェイのヘルス情報を取得する。
func (s *ZosConnectService) Health(ctx context.Context) (any, error) {
	cli, gwErr := s.client()
	if gwErr != nil {
		return nil, gwErr
	}
	return cli.Health(ctx)
}

// CallService はサービス操作を呼び出す。
// エンドポイントの組み立て・プレースホルダ解決・クエリ付与をすべて済ませてから送信する。
// 未解決のプレースホルダはValidationErrorであり、波括弧のままワイヤに送られることはない。
func (s *ZosConnectService) CallService(ctx context.Context, req domain.CallRequest) (*domain.CallResult, error) {
	cli, gwErr := s.client()
	if gwErr != nil {
		return nil, gwErr
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodPost
	}
	if !allowedMethods[method] {
		return nil, domain.NewError(domain.ErrValidation,
			"argument %q must be one of GET, POST, PUT, DELETE, PATCH", "method")
	}

	operation := req.OperationPath
	if operation == "" {
		operation = "/"
	}
	endpoint := cli.BaseURL() + "/services/" + url.PathEscape(req.ServiceName) + operation

	endpoint, err := resolveTemplate(endpoint, req.PathParams)
	if err != nil {
		return nil, err
	}
	if len(req.QueryParams) > 0 {
		query := url.Values{}
		for k, v := range req.QueryParams {
			query.Set(k, v)
		}
		endpoint += "?" + query.Encode()
	}

	return cli.Call(ctx, method, endpoint, req.Payload)
}

// resolveTemplate はエンドポイント内の{param}プレースホルダをURLエンコード済みの値で置換する。
// 置換後に解決されないプレースホルダや孤立した波括弧が残る場合は閉じて失敗する。
func resolveTemplate(endpoint string, params map[string]string) (string, *domain.GatewayError) {
	var unresolved []string
	resolved := placeholderPattern.ReplaceAllStringFunc(endpoint, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := params[name]
		if !ok {
			unresolved = append(unresolved, name)
			return match
		}
		return url.PathEscape(value)
	})
	if len(unresolved) > 0 {
		return "", domain.NewError(domain.ErrValidation,
			"unresolved path placeholders: %s", strings.Join(unresolved, ", "))
	}
	if strings.ContainsAny(resolved, "{}") {
		return "", domain.NewError(domain.ErrValidation,
			"operation path contains unmatched braces")
	}
	return resolved, nil
}
