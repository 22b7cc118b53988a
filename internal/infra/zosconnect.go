package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"capability-gateway/config"
	"capability-gateway/internal/domain"
)

// ZosConnectClient はレガシーゲートウェイのRESTクライアント。
// 認証情報が設定されている場合、全リクエストにBasic認証ヘッダを付与する。
type ZosConnectClient struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
}

// NewZosConnectClient は設定からクライアントを生成する。
func NewZosConnectClient(cfg *config.Config) *ZosConnectClient {
	return &ZosConnectClient{
		httpClient: &http.Client{Transport: newTransport(), Timeout: 30 * time.Second},
		baseURL:    cfg.ZosConnectURL,
		username:   cfg.ZosConnectUser,
		password:   cfg.ZosConnectPassword,
	}
}

// BaseURL は設定済みのベースURLを返す。
func (c *ZosConnectClient) BaseURL() string {
	return c.baseURL
}

type serviceListResponse struct {
	Services []struct {
		ServiceName        string `json:"ServiceName"`
		ServiceDescription string `json:"ServiceDescription"`
		ServiceProvider    string `json:"ServiceProvider"`
		ServiceURL         string `json:"ServiceURL"`
	} `json:"zosConnectServices"`
}

// ListServices はデプロイ済みサービスの一覧を取得する。
func (c *ZosConnectClient) ListServices(ctx context.Context) ([]domain.ServiceSummary, error) {
	body, _, err := c.get(ctx, c.baseURL+"/services")
	if err != nil {
		return nil, err
	}
	var resp serviceListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding service list: %w", err)
	}
	services := make([]domain.ServiceSummary, len(resp.Services))
	for i, s := range resp.Services {
		services[i] = domain.ServiceSummary{
			Name:        s.ServiceName,
			Description: s.ServiceDescription,
			Provider:    s.ServiceProvider,
			URL:         s.ServiceURL,
		}
	}
	return services, nil
}

type apiListResponse struct {
	APIs []struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Description string `json:"description"`
		AdminURL    string `json:"adminUrl"`
	} `json:"apis"`
}

// ListAPIs はデプロイ済みAPIの一覧を取得する。
func (c *ZosConnectClient) ListAPIs(ctx context.Context) ([]domain.APISummary, error) {
	body, _, err := c.get(ctx, c.baseURL+"/apis")
	if err != nil {
		return nil, err
	}
	var resp apiListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding API list: %w", err)
	}
	apis := make([]domain.APISummary, len(resp.APIs))
	for i, a := range resp.APIs {
		apis[i] = domain.APISummary{
			Name:        a.Name,
			Version:     a.Version,
			Description: a.Description,
			URL:         a.AdminURL,
		}
	}
	return apis, nil
}

// GetService はサービスの詳細と仕様を取得する。
func (c *ZosConnectClient) GetService(ctx context.Context, name string) (*domain.ServiceDescriptor, error) {
	body, _, err := c.get(ctx, c.baseURL+"/services/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}
	var detail struct {
		ServiceName        string `json:"ServiceName"`
		ServiceDescription string `json:"ServiceDescription"`
		ServiceProvider    string `json:"ServiceProvider"`
		ServiceInvokeURL   string `json:"ServiceInvokeURL"`
		ServiceStatus      string `json:"ServiceStatus"`
	}
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("decoding service detail: %w", err)
	}
	return &domain.ServiceDescriptor{
		Name:        detail.ServiceName,
		Description: detail.ServiceDescription,
		Provider:    detail.ServiceProvider,
		InvokeURL:   detail.ServiceInvokeURL,
		Status:      detail.ServiceStatus,
		Spec:        json.RawMessage(body),
	}, nil
}

// Health はゲートウェイのヘルス情報を取得する。
func (c *ZosConnectClient) Health(ctx context.Context) (any, error) {
	body, contentType, err := c.get(ctx, c.baseURL+"/health")
	if err != nil {
		return nil, err
	}
	return shapeBody(body, contentType), nil
}

// Call は任意のメソッド・エンドポイントでサービス操作を呼び出す。
// GET/DELETEはペイロードが与えられてもボディを送らない。
func (c *ZosConnectClient) Call(ctx context.Context, method, endpoint string, payload any) (*domain.CallResult, error) {
	var reader io.Reader
	sendBody := payload != nil &&
		(method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch)
	if sendBody {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if sendBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling legacy gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.BackendError{Status: resp.StatusCode, Body: string(body)}
	}

	contentType := resp.Header.Get("Content-Type")
	return &domain.CallResult{
		Status:      resp.StatusCode,
		ContentType: contentType,
		Body:        shapeBody(body, contentType),
	}, nil
}

// get はGETリクエストを発行し、2xxのボディとcontent-typeを返す。
func (c *ZosConnectClient) get(ctx context.Context, endpoint string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("calling legacy gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &domain.BackendError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *ZosConnectClient) applyAuth(req *http.Request) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// shapeBody はcontent-typeに応じてボディを構造化データまたは不透明なテキストに整形する。
func shapeBody(body []byte, contentType string) any {
	if len(body) == 0 {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil && (mediaType == "application/json" || mediaType == "application/vnd.ibm.zosconnect.v1+json") {
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			return parsed
		}
	}
	return string(body)
}
