package domain

// Backend はツールが属するバックエンド統合を表すタグ。
type Backend string

const (
	// BackendKeyCustody は鍵カストディバックエンド（ハードウェア裏付きの鍵管理サービス）。
	BackendKeyCustody Backend = "key_custody"
	// BackendLegacyGateway はレガシートランザクションシステムへのRESTマッピングゲートウェイ。
	BackendLegacyGateway Backend = "legacy_gateway"
)

// Content は呼び出し結果の境界表現。
// 成功時はJSONシリアライズ済みペイロード、失敗時は診断用のエラー文字列を持つ。
// トランスポートレベルでは成功と失敗を区別しない。
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextContent はtext種別のContentを生成する。
func TextContent(text string) Content {
	return Content{Type: "text", Text: text}
}
