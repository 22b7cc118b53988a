// Package main はゲートウェイサーバーのエントリポイント。
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"capability-gateway/config"
	"capability-gateway/internal/catalog"
	"capability-gateway/internal/handler"
	"capability-gateway/internal/infra"
	"capability-gateway/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
	cfg := config.Load()

	// ログレベル設定
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "DEBUG":
		logLevel = slog.LevelDebug
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg, logLevel)

	// バックエンドクライアントは各サービス内で初回利用時に遅延構築される。
	// どちらかの設定が欠けていても、もう片方のバックエンドの操作は利用できる。
	if !cfg.KeyProtectConfigured() {
		slog.Warn("key custody backend is not configured; keyprotect_* tools will report ConfigurationMissing")
	}
	if !cfg.ZosConnectConfigured() {
		slog.Warn("legacy gateway is not configured; zos_connect_* tools will report ConfigurationMissing")
	}

	// DI
	cat := catalog.New()
	keys := usecase.NewKeyCustodyService(cfg)
	legacy := usecase.NewZosConnectService(cfg)
	dispatcher := usecase.NewDispatcher(cat, keys, legacy)
	h := handler.NewGatewayHandler(dispatcher)
	router := handler.NewRouter(h)

	// サーバー起動
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port, "tools", cat.Len())
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
