package domain

import "fmt"

// ErrorKind はゲートウェイエラーの分類を表す。
// オーケストレーターに返されるエラー種別はこの閉じた集合に限られる。
type ErrorKind string

const (
	// ErrConfigurationMissing は対象バックエンドの認証情報・URL・インスタンスIDが未設定の場合のエラー種別。
	ErrConfigurationMissing ErrorKind = "ConfigurationMissing"
	// ErrValidation は必須引数の欠落・型不一致・パステンプレート未解決の場合のエラー種別。
	ErrValidation ErrorKind = "ValidationError"
	// ErrUnknownOperation は呼び出し名がカタログに存在しない場合のエラー種別。
	ErrUnknownOperation ErrorKind = "UnknownOperation"
	// ErrWrongKeyType はwrap/unwrap/rotateを誤った種別の鍵に対して試みた場合のエラー種別。
	ErrWrongKeyType ErrorKind = "WrongKeyType"
	// ErrNotFound は鍵IDまたはサービス名がバックエンドに存在しない場合のエラー種別。
	ErrNotFound ErrorKind = "NotFound"
	// ErrAuthentication はバックエンドが認証情報を拒否した場合のエラー種別。
	ErrAuthentication ErrorKind = "AuthenticationFailure"
	// ErrAuthorization は認証は通るが操作が許可されない場合のエラー種別。
	ErrAuthorization ErrorKind = "AuthorizationFailure"
	// ErrDecrypt はunwrapが失敗した場合（暗号文・AAD・鍵バージョンの不一致）のエラー種別。
	ErrDecrypt ErrorKind = "DecryptFailure"
	// ErrBackendUnavailable はネットワーク障害、または対応付けのない非2xx応答のエラー種別。
	ErrBackendUnavailable ErrorKind = "BackendUnavailable"
)

// GatewayError は正規化済みのゲートウェイエラー。
// Kindで分岐できるため、呼び出し側がメッセージ文字列を照合する必要はない。
type GatewayError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error はエラーメッセージを返す。
func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap は元になったエラーを返す。
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// BackendError はバックエンドの非2xx応答を表す。
// 正規化層がステータスコードからエラー種別を決定するために使う。
type BackendError struct {
	Status int
	Body   string
}

// Error はエラーメッセージを返す。
func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Body)
}

// NewError は指定されたKindのGatewayErrorを生成する。
func NewError(kind ErrorKind, format string, args ...any) *GatewayError {
	return &GatewayError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError は元エラーを保持したGatewayErrorを生成する。
func WrapError(kind ErrorKind, err error, format string, args ...any) *GatewayError {
	return &GatewayError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
