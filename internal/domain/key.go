// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import "time"

// KeyType は鍵の種別を表す。
type KeyType string

const (
	// KeyTypeRoot はルート鍵（KEK）。他の鍵のwrap/unwrap専用で、抽出不可。
	KeyTypeRoot KeyType = "root_key"
	// KeyTypeStandard は標準鍵。データの直接暗号化に使用でき、明示的に要求された場合のみ抽出可能。
	KeyTypeStandard KeyType = "standard_key"
)

// KeyState は鍵のライフサイクル状態を表す。
type KeyState string

const (
	// KeyStateActive は有効な鍵を表す。
	KeyStateActive KeyState = "active"
	// KeyStateSuspended は一時停止中の鍵を表す。
	KeyStateSuspended KeyState = "suspended"
	// KeyStateDeactivated は無効化された鍵を表す。
	KeyStateDeactivated KeyState = "deactivated"
	// KeyStateDestroyed は破棄済みの鍵を表す。
	KeyStateDestroyed KeyState = "destroyed"
)

// KeyRecord は鍵カストディバックエンドが保持する鍵のメタデータを表す。
// 鍵素材そのものは含まない。バックエンドが所有し、この層は呼び出し単位でしか保持しない。
type KeyRecord struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Type          KeyType    `json:"type"`
	State         KeyState   `json:"state"`
	Extractable   bool       `json:"extractable"`
	KeyVersion    string     `json:"key_version,omitempty"`
	CreatedBy     string     `json:"created_by,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	LastRotatedAt *time.Time `json:"last_rotated_at,omitempty"`
	CRN           string     `json:"crn,omitempty"`
}

// CreateKeyRequest は鍵生成の入力を表す。
type CreateKeyRequest struct {
	Name        string
	Description string
	Type        KeyType
	Extractable bool
	// Payload は鍵素材のインポート用（base64）。空の場合はバックエンドが生成する。
	Payload string
}

// WrapEnvelope はwrapの結果を表す。unwrapはこの内容をそのまま受け取る。
// AADはwrap時とunwrap時で完全一致しなければならない。
type WrapEnvelope struct {
	Ciphertext string   `json:"ciphertext"`
	KeyVersion string   `json:"key_version,omitempty"`
	AAD        []string `json:"aad,omitempty"`
}

// KeyPolicy は鍵ポリシーのメタデータを表す。
type KeyPolicy struct {
	Type             string     `json:"type"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
	RotationInterval int        `json:"rotation_interval_month,omitempty"`
	DualAuthEnabled  *bool      `json:"dual_auth_delete_enabled,omitempty"`
}
