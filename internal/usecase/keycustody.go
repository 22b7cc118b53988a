// Package usecase はカタログ操作をバックエンド呼び出しへ変換するアダプタ層を実装する。
package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"

	"capability-gateway/config"
	"capability-gateway/internal/domain"
	"capability-gateway/internal/infra"
)

// KeyCustodyClient は鍵カストディバックエンドとの通信インターフェース。
type KeyCustodyClient interface {
	ListKeys(ctx context.Context, limit, offset int, states []domain.KeyState) ([]*domain.KeyRecord, int, error)
	CreateKey(ctx context.Context, req domain.CreateKeyRequest) (*domain.KeyRecord, error)
	GetKey(ctx context.Context, keyID string) (*domain.KeyRecord, error)
	WrapKey(ctx context.Context, keyID, plaintext string, aad []string) (*domain.WrapEnvelope, error)
	UnwrapKey(ctx context.Context, keyID, ciphertext string, aad []string, keyVersion string) (string, string, error)
	RotateKey(ctx context.Context, keyID, payload string) error
	DeleteKey(ctx context.Context, keyID string, force bool) error
	GetPolicies(ctx context.Context, keyID string) ([]domain.KeyPolicy, error)
}

// KeyCustodyService は鍵カストディ系操作のビジネスロジックを提供する。
// 暗号処理は一切行わず、すべてのwrap/unwrap/rotateはバックエンドの信頼境界を越えて委譲される。
type KeyCustodyService struct {
	cfg       *config.Config
	newClient func(*config.Config) KeyCustodyClient
	once      sync.Once
	cli       KeyCustodyClient
}

// NewKeyCustodyService は新しいKeyCustodyServiceを生成する。
// バックエンドクライアントは最初の利用時に一度だけ構築される。
func NewKeyCustodyService(cfg *config.Config) *KeyCustodyService {
	return &KeyCustodyService{
		cfg: cfg,
		newClient: func(c *config.Config) KeyCustodyClient {
			return infra.NewKeyProtectClient(c)
		},
	}
}

// client は遅延初期化されたバックエンドクライアントを返す。
// 必須設定が欠けている場合はクライアントを構築せずConfigurationMissingを返す。
func (s *KeyCustodyService) client() (KeyCustodyClient, *domain.GatewayError) {
	if !s.cfg.KeyProtectConfigured() {
		return nil, domain.NewError(domain.ErrConfigurationMissing,
			"key custody backend is not configured: KEYPROTECT_API_KEY, KEYPROTECT_INSTANCE_ID and KEYPROTECT_URL are required")
	}
	s.once.Do(func() {
		s.cli = s.newClient(s.cfg)
	})
	return s.cli, nil
}

// KeyListResult はlist操作の結果を表す。
type KeyListResult struct {
	Keys  []*domain.KeyRecord `json:"keys"`
	Total int                 `json:"total"`
}

// List は鍵の一覧をページングと状態フィルタ付きで取得する。
func (s *KeyCustodyService) List(ctx context.Context, limit, offset int, states []string) (*KeyListResult, error) {
	cli, gwErr := s.client()
	if gwErr != nil {
		return nil, gwErr
	}

	keyStates := make([]domain.KeyState, len(states))
	for i, st := range states {
		keyStates[i] = domain.KeyState(st)
	}
	keys, total, err := cli.ListKeys(ctx, limit, offset, keyStates)
	if err != nil {
		return nil, err
	}
	return &KeyListResult{Keys: keys, Total: total}, nil
}

// Create は新しい鍵を生成する。ルート鍵のextractableは呼び出し側の入力に関わらずfalseに強制される。
func (s *KeyCustodyService) Create(ctx context.Context, req domain.CreateKeyRequest) (*domain.KeyRecord, error) {
	cli, gwErr := s.client()
	if gwErr != nil {
		return nil, gwErr
	}

	if req.Type == "" {
		req.Type = domain.KeyTypeStandard
	}
	if req.Type == domain.KeyTypeRoot {
		req.Extractable = false
	}
	if req.Payload != "" {
		if _, err := base64.StdEncoding.DecodeString(req.Payload); err != nil {
			return nil, domain.NewError(domain.ErrValidation, "argument %q must be base64 encoded", "payload")
		}
	}
	return cli.CreateKey(ctx, req)
}

// Get は鍵のメタデータレコードを取得する。
func (s *KeyCustodyService) Get(ctx context.Context, keyID string) (*domain.KeyRecord, error) {
	cli, gwErr := s.client()
	if gwErr != nil {
		return nil, gwErr
	}
	return cli.GetKey(ctx, keyID)
}

// Wrap はbase64エンコードされたDEKをルート鍵でラップする。
// 対象が標準鍵の場合はWrongKeyTypeで失敗し、wrap呼び出しは発行されない。
func (s *KeyCustodyService) Wrap(ctx context.Context, keyID, plaintext string, aad []string) (*domain.WrapEnvelope, error) {
	cli, gwErr := s.client()
	if gwErr != nil {
		return nil, gwErr
	}

	if _, err := base64.StdEncoding.DecodeString(plaintext); err != nil {
		return nil, domain.NewError(domain.ErrValidation, "argument %q must be base64 encoded", "plaintext")
	}
	if err := ensureRootKey(ctx, cli, keyID, "wrap"); err != nil {
		return nil, err
	}
	return cli.WrapKey(ctx, keyID, plaintext, aad)
}

// UnwrapResult はunwrap操作の結果を表す。
type UnwrapResult struct {
	Plaintext  string `json:"plaintext"`
	KeyVersion string `json:"key_version,omitempty"`
}

// Unwrap はラップ済みDEKを復元する。
// wrap時に返されたkey_versionを無改変で渡すことで、ローテーション後も元のバージョンで復号できる。
func (s *KeyCustodyService) Unwrap(ctx context.Context, keyID, ciphertext string, aad []string, keyVersion string) (*UnwrapResult, error) {
	cli, gwErr := s.client()
	if gwErr != nil {
		return nil, gwErr
	}

	if err := ensureRootKey(ctx, cli, keyID, "unwrap"); err != nil {
		return nil, err
	}
	plaintext, version, err := cli.UnwrapKey(ctx, keyID, ciphertext, aad, keyVersion)
	if err != nil {
		return nil, classifyUnwrapError(err)
	}
	return &UnwrapResult{Plaintext: plaintext, KeyVersion: version}, nil
}

// RotateResult はrotate操作の結果を表す。
type RotateResult struct {
	KeyID      string `json:"key_id"`
	KeyVersion string `json:"key_version,omitempty"`
	Message    string `json:"message"`
}

// Rotate はルート鍵を新しいバージョンにローテーションする。
// 確認応答には再取得した新しい鍵バージョンを含める。旧バージョンで作られた暗号文は
// 元のkey_versionを添えてunwrapすれば引き続き復号できる。
func (s *KeyCustodyService) Rotate(ctx context.Context, keyID, payload string) (*RotateResult, error) {
	cli, gwErr := s.client()
	if gwErr != nil {
		return nil, gwErr
	}

	if payload != "" {
		if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
			return nil, domain.NewError(domain.ErrValidation, "argument %q must be base64 encoded", "payload")
		}
	}
	if err := ensureRootKey(ctx, cli, keyID, "rotate"); err != nil {
		return nil, err
	}
	if err := cli.RotateKey(ctx, keyID, payload); err != nil {
		return nil, err
	}

	result := &RotateResult{
		KeyID:   keyID,
		Message: "key rotated; ciphertexts wrapped before rotation remain unwrappable with their original key_version",
	}
	if rec, err := cli.GetKey(ctx, keyID); err == nil {
		result.KeyVersion = rec.KeyVersion
	}
	return result, nil
}

// DeleteResult はdelete操作の結果を表す。
type DeleteResult struct {
	KeyID   string `json:"key_id"`
	Message string `json:"message"`
}

// Delete は鍵を削除する。ソフトデリートは存在せず、結果は取り消せない。
func (s *KeyCustodyService) Delete(ctx context.Context, keyID string, force bool) (*DeleteResult, error) {
	cli, gwErr := s.client()
	if gwErr != nil {
		return nil, gwErr
	}

	if err := cli.DeleteKey(ctx, keyID, force); err != nil {
		return nil, err
	}
	return &DeleteResult{
		KeyID:   keyID,
		Message: "key deleted; this operation is irreversible and the key material cannot be recovered",
	}, nil
}

// Policies は鍵のローテーション間隔・二重承認ポリシーを取得する。
func (s *KeyCustodyService) Policies(ctx context.Context, keyID string) ([]domain.KeyPolicy, error) {
	cli, gwErr := s.client()
	if gwErr != nil {
		return nil, gwErr
	}
	return cli.GetPolicies(ctx, keyID)
}

// ensureRootKey は対象鍵がルート鍵であることをメタデータ参照で確認する。
// 標準鍵に対する操作はWrongKeyTypeで失敗し、対象の操作呼び出しは発行されない。
func ensureRootKey(ctx context.Context, cli KeyCustodyClient, keyID, operation string) error {
	rec, err := cli.GetKey(ctx, keyID)
	if err != nil {
		return err
	}
	if rec.Type != domain.KeyTypeRoot {
		return domain.NewError(domain.ErrWrongKeyType,
			"%s requires a root key but %q is a %s", operation, keyID, rec.Type)
	}
	return nil
}

// classifyUnwrapError はunwrap失敗をDecryptFailureに分類する。
// 暗号文・AAD・鍵バージョンの不一致はバックエンドでは4xxとして現れる。
func classifyUnwrapError(err error) error {
	var st *domain.BackendError
	if errors.As(err, &st) {
		switch st.Status {
		case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
			return domain.WrapError(domain.ErrDecrypt, err,
				"unwrap failed: ciphertext, AAD or key version mismatch")
		}
	}
	return err
}
