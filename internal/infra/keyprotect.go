package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"capability-gateway/config"
	"capability-gateway/internal/domain"
)

// 鍵リソースのコレクション種別。
const keyCollectionType = "application/vnd.ibm.kms.key+json"

// バックエンドの鍵状態コード。
const (
	keyStateActive      = 1
	keyStateSuspended   = 2
	keyStateDeactivated = 3
	keyStateDestroyed   = 5
)

// KeyProtectClient は鍵カストディバックエンドのRESTクライアント。
// 認証はIAMトークンソース由来のベアラートークン、鍵素材は常に不透明なハンドルとして扱う。
type KeyProtectClient struct {
	httpClient *http.Client
	baseURL    string
	instanceID string
}

// NewKeyProtectClient は設定からクライアントを生成する。
// トークンの取得・更新はoauth2.Transportに委ねる。
func NewKeyProtectClient(cfg *config.Config) *KeyProtectClient {
	tokenClient := &http.Client{Transport: newTransport(), Timeout: 30 * time.Second}
	return &KeyProtectClient{
		httpClient: &http.Client{
			Transport: &oauth2.Transport{
				Source: NewIAMTokenSource(cfg.IAMTokenURL, cfg.KeyProtectAPIKey, tokenClient),
				Base:   newTransport(),
			},
			Timeout: 30 * time.Second,
		},
		baseURL:    cfg.KeyProtectURL,
		instanceID: cfg.KeyProtectInstanceID,
	}
}

// collectionMetadata はコレクションエンベロープのメタデータ部。
type collectionMetadata struct {
	CollectionType  string `json:"collectionType"`
	CollectionTotal int    `json:"collectionTotal"`
}

// keyCollection は鍵リソース配列を包むコレクションエンベロープ。
type keyCollection struct {
	Metadata  collectionMetadata `json:"metadata"`
	Resources []keyResource      `json:"resources"`
}

type keyVersionRef struct {
	ID           string     `json:"id,omitempty"`
	CreationDate *time.Time `json:"creationDate,omitempty"`
}

type keyResource struct {
	ID             string         `json:"id,omitempty"`
	Name           string         `json:"name,omitempty"`
	Description    string         `json:"description,omitempty"`
	Type           string         `json:"type,omitempty"`
	Extractable    bool           `json:"extractable"`
	State          int            `json:"state,omitempty"`
	CRN            string         `json:"crn,omitempty"`
	CreatedBy      string         `json:"createdBy,omitempty"`
	CreationDate   *time.Time     `json:"creationDate,omitempty"`
	LastRotateDate *time.Time     `json:"lastRotateDate,omitempty"`
	Payload        string         `json:"payload,omitempty"`
	KeyVersion     *keyVersionRef `json:"keyVersion,omitempty"`
}

// toDomain はワイヤ表現をドメインのKeyRecordに変換する。
// 抽出不可の鍵はルート鍵、抽出可の鍵は標準鍵として扱う。
func (r keyResource) toDomain() *domain.KeyRecord {
	rec := &domain.KeyRecord{
		ID:            r.ID,
		Name:          r.Name,
		State:         stateFromCode(r.State),
		Extractable:   r.Extractable,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreationDate,
		LastRotatedAt: r.LastRotateDate,
		CRN:           r.CRN,
	}
	if r.Extractable {
		rec.Type = domain.KeyTypeStandard
	} else {
		rec.Type = domain.KeyTypeRoot
	}
	if r.KeyVersion != nil {
		rec.KeyVersion = r.KeyVersion.ID
	}
	return rec
}

func stateFromCode(code int) domain.KeyState {
	switch code {
	case keyStateActive:
		return domain.KeyStateActive
	case keyStateSuspended:
		return domain.KeyStateSuspended
	case keyStateDestroyed:
		return domain.KeyStateDestroyed
	default:
		return domain.KeyStateDeactivated
	}
}

func stateToCode(state domain.KeyState) int {
	switch state {
	case domain.KeyStateActive:
		return keyStateActive
	case domain.KeyStateSuspended:
		return keyStateSuspended
	case domain.KeyStateDestroyed:
		return keyStateDestroyed
	default:
		return keyStateDeactivated
	}
}

// ListKeys は鍵の一覧をページングと状態フィルタ付きで取得する。
func (c *KeyProtectClient) ListKeys(ctx context.Context, limit, offset int, states []domain.KeyState) ([]*domain.KeyRecord, int, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	for _, s := range states {
		query.Add("state", strconv.Itoa(stateToCode(s)))
	}

	var coll keyCollection
	if err := c.do(ctx, http.MethodGet, "/api/v2/keys", query, nil, &coll); err != nil {
		return nil, 0, err
	}
	records := make([]*domain.KeyRecord, len(coll.Resources))
	for i, r := range coll.Resources {
		records[i] = r.toDomain()
	}
	return records, coll.Metadata.CollectionTotal, nil
}

// CreateKey は新しい鍵を生成またはインポートする。
func (c *KeyProtectClient) CreateKey(ctx context.Context, req domain.CreateKeyRequest) (*domain.KeyRecord, error) {
	body := keyCollection{
		Metadata: collectionMetadata{CollectionType: keyCollectionType, CollectionTotal: 1},
		Resources: []keyResource{{
			Name:        req.Name,
			Description: req.Description,
			Type:        keyCollectionType,
			Extractable: req.Type == domain.KeyTypeStandard && req.Extractable,
			Payload:     req.Payload,
		}},
	}

	var coll keyCollection
	if err := c.do(ctx, http.MethodPost, "/api/v2/keys", nil, body, &coll); err != nil {
		return nil, err
	}
	if len(coll.Resources) == 0 {
		return nil, fmt.Errorf("create key response contains no resources")
	}
	return coll.Resources[0].toDomain(), nil
}

// GetKey は鍵のメタデータレコードを取得する。
func (c *KeyProtectClient) GetKey(ctx context.Context, keyID string) (*domain.KeyRecord, error) {
	var coll keyCollection
	if err := c.do(ctx, http.MethodGet, "/api/v2/keys/"+url.PathEscape(keyID), nil, nil, &coll); err != nil {
		return nil, err
	}
	if len(coll.Resources) == 0 {
		return nil, &domain.BackendError{Status: http.StatusNotFound, Body: "key not found"}
	}
	return coll.Resources[0].toDomain(), nil
}

type wrapRequest struct {
	Plaintext  string         `json:"plaintext,omitempty"`
	Ciphertext string         `json:"ciphertext,omitempty"`
	AAD        []string       `json:"aad,omitempty"`
	KeyVersion *keyVersionRef `json:"keyVersion,omitempty"`
}

type wrapResponse struct {
	Plaintext  string         `json:"plaintext,omitempty"`
	Ciphertext string         `json:"ciphertext,omitempty"`
	KeyVersion *keyVersionRef `json:"keyVersion,omitempty"`
}

// WrapKey はDEKをルート鍵でラップする。
func (c *KeyProtectClient) WrapKey(ctx context.Context, keyID, plaintext string, aad []string) (*domain.WrapEnvelope, error) {
	var resp wrapResponse
	err := c.do(ctx, http.MethodPost, "/api/v2/keys/"+url.PathEscape(keyID)+"/actions/wrap", nil,
		wrapRequest{Plaintext: plaintext, AAD: aad}, &resp)
	if err != nil {
		return nil, err
	}
	env := &domain.WrapEnvelope{Ciphertext: resp.Ciphertext, AAD: aad}
	if resp.KeyVersion != nil {
		env.KeyVersion = resp.KeyVersion.ID
	}
	return env, nil
}

// UnwrapKey はラップ済みDEKを復元する。
// keyVersionは改変せずそのまま渡し、バックエンドがローテーション前のバージョンを選択できるようにする。
func (c *KeyProtectClient) UnwrapKey(ctx context.Context, keyID, ciphertext string, aad []string, keyVersion string) (string, string, error) {
	req := wrapRequest{Ciphertext: ciphertext, AAD: aad}
	if keyVersion != "" {
		req.KeyVersion = &keyVersionRef{ID: keyVersion}
	}

	var resp wrapResponse
	err := c.do(ctx, http.MethodPost, "/api/v2/keys/"+url.PathEscape(keyID)+"/actions/unwrap", nil, req, &resp)
	if err != nil {
		return "", "", err
	}
	version := keyVersion
	if resp.KeyVersion != nil {
		version = resp.KeyVersion.ID
	}
	return resp.Plaintext, version, nil
}

// RotateKey はルート鍵を新しいバージョンにローテーションする。
func (c *KeyProtectClient) RotateKey(ctx context.Context, keyID, payload string) error {
	var body any
	if payload != "" {
		body = map[string]string{"payload": payload}
	}
	return c.do(ctx, http.MethodPost, "/api/v2/keys/"+url.PathEscape(keyID)+"/actions/rotate", nil, body, nil)
}

// DeleteKey は鍵を削除する。この操作は取り消せない。
func (c *KeyProtectClient) DeleteKey(ctx context.Context, keyID string, force bool) error {
	query := url.Values{}
	if force {
		query.Set("force", "true")
	}
	return c.do(ctx, http.MethodDelete, "/api/v2/keys/"+url.PathEscape(keyID), query, nil, nil)
}

type policyResource struct {
	Type           string     `json:"type,omitempty"`
	CreationDate   *time.Time `json:"creationDate,omitempty"`
	LastUpdateDate *time.Time `json:"lastUpdateDate,omitempty"`
	Rotation       *struct {
		IntervalMonth int `json:"interval_month"`
	} `json:"rotation,omitempty"`
	DualAuthDelete *struct {
		Enabled bool `json:"enabled"`
	} `json:"dualAuthDelete,omitempty"`
}

// GetPolicies は鍵のポリシーメタデータを取得する。
func (c *KeyProtectClient) GetPolicies(ctx context.Context, keyID string) ([]domain.KeyPolicy, error) {
	var coll struct {
		Metadata  collectionMetadata `json:"metadata"`
		Resources []policyResource   `json:"resources"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v2/keys/"+url.PathEscape(keyID)+"/policies", nil, nil, &coll); err != nil {
		return nil, err
	}

	policies := make([]domain.KeyPolicy, len(coll.Resources))
	for i, r := range coll.Resources {
		p := domain.KeyPolicy{
			Type:      r.Type,
			CreatedAt: r.CreationDate,
			UpdatedAt: r.LastUpdateDate,
		}
		if r.Rotation != nil {
			p.RotationInterval = r.Rotation.IntervalMonth
		}
		if r.DualAuthDelete != nil {
			enabled := r.DualAuthDelete.Enabled
			p.DualAuthEnabled = &enabled
		}
		policies[i] = p
	}
	return policies, nil
}

// do はインスタンスヘッダ付きのJSONリクエストを発行する。
// 非2xx応答はBackendErrorとして返し、正規化層に種別判定を委ねる。
func (c *KeyProtectClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Bluemix-Instance", c.instanceID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling key custody backend: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.BackendError{Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response body: %w", err)
		}
	}
	return nil
}
