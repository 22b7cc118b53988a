// Package middleware はHTTPミドルウェアと監査ログを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"

	"capability-gateway/internal/domain"
)

// InvocationLog はツール呼び出しの監査ログの構造体。
type InvocationLog struct {
	InvocationID string `json:"invocation_id"`
	Tool         string `json:"tool"`
	Backend      string `json:"backend,omitempty"`
	Result       string `json:"result"`
	ErrorKind    string `json:"error_kind,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// WriteInvocationLog はツール呼び出しの監査ログを出力する。
func WriteInvocationLog(ctx context.Context, invocationID, tool string, backend domain.Backend, gwErr *domain.GatewayError, duration time.Duration) {
	result := "SUCCESS"
	kind := ""
	if gwErr != nil {
		result = "FAILED"
		kind = string(gwErr.Kind)
	}
	slog.InfoContext(ctx, "tool invocation completed",
		"invocation_id", invocationID,
		"tool", tool,
		"backend", string(backend),
		"result", result,
		"error_kind", kind,
		"duration_ms", duration.Milliseconds(),
	)
}
