// Package handler はオーケストレーター向けのHTTPハンドラを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"capability-gateway/internal/catalog"
	"capability-gateway/internal/domain"
	"capability-gateway/internal/middleware"
	"capability-gateway/internal/usecase"
	"capability-gateway/pkg/httputil"
)

// GatewayHandler はツールカタログの公開と呼び出しのHTTP境界を提供する。
type GatewayHandler struct {
	dispatcher *usecase.Dispatcher
}

// NewGatewayHandler は新しいGatewayHandlerを生成する。
func NewGatewayHandler(dispatcher *usecase.Dispatcher) *GatewayHandler {
	return &GatewayHandler{dispatcher: dispatcher}
}

// ToolListResponse はカタログ一覧のレスポンス形式。
type ToolListResponse struct {
	Tools []catalog.Tool `json:"tools"`
}

// InvokeResponse は呼び出し結果のレスポンス形式。
// 成功・失敗を問わず整形済みのContentを返し、トランスポートレベルでは区別しない。
type InvokeResponse struct {
	Content []domain.Content `json:"content"`
	IsError bool             `json:"is_error"`
}

// ListTools はツールカタログの全宣言を返す。
// オーケストレーターはこの一覧だけから操作集合を学習する。
func (h *GatewayHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, ToolListResponse{Tools: h.dispatcher.Catalog().List()})
}

// Invoke は指定されたツールを引数付きで呼び出す。
func (h *GatewayHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var args map[string]any
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		httputil.Error(w, http.StatusBadRequest, "INVALID_ARGUMENTS", "request body must be a JSON object")
		return
	}

	invocationID := uuid.New().String()
	started := time.Now()
	content, gwErr := h.dispatcher.Dispatch(r.Context(), name, args)

	backend := domain.Backend("")
	if tool, ok := h.dispatcher.Catalog().Lookup(name); ok {
		backend = tool.Backend
	}
	middleware.WriteInvocationLog(r.Context(), invocationID, name, backend, gwErr, time.Since(started))

	if gwErr != nil {
		httputil.JSON(w, http.StatusOK, InvokeResponse{
			Content: []domain.Content{domain.TextContent(gwErr.Error())},
			IsError: true,
		})
		return
	}
	httputil.JSON(w, http.StatusOK, InvokeResponse{
		Content: []domain.Content{content},
	})
}

// Healthz は稼働確認に応答する。
func (h *GatewayHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
