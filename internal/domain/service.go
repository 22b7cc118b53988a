package domain

import "encoding/json"

// ServiceSummary はレガシーゲートウェイが公開するサービスの一覧項目を表す。
type ServiceSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Provider    string `json:"provider,omitempty"`
	URL         string `json:"url,omitempty"`
}

// APISummary はレガシーゲートウェイが公開するAPIの一覧項目を表す。
type APISummary struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// ServiceDescriptor はデプロイ済みサービスの詳細を表す。
// このゲートウェイが生成するのではなく、バックエンドから発見される。
type ServiceDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Provider    string          `json:"provider,omitempty"`
	InvokeURL   string          `json:"invoke_url,omitempty"`
	Status      string          `json:"status,omitempty"`
	Spec        json.RawMessage `json:"spec,omitempty"`
}

// CallRequest はレガシーサービス呼び出しの入力を表す。
type CallRequest struct {
	ServiceName   string
	OperationPath string
	Method        string
	Payload       any
	PathParams    map[string]string
	QueryParams   map[string]string
}

// CallResult はレガシーサービス呼び出しの結果を表す。
// Bodyはcontent-typeがJSONの場合は構造化データ、それ以外は不透明なテキスト。
type CallResult struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        any    `json:"body,omitempty"`
}
