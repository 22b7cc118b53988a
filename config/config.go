// Package config はアプリケーション設定の読み込みを提供する。
package config

import "os"

// デフォルトのIAMトークンエンドポイント。
const defaultIAMTokenURL = "https://iam.cloud.ibm.com/identity/token"

// Config はアプリケーション設定を表す。
// 2つのバックエンド設定は互いに独立しており、片方の欠如はもう片方の操作に影響しない。
type Config struct {
	Port     string
	LogLevel string

	// 鍵カストディバックエンド（Key Protect互換）
	KeyProtectAPIKey     string
	KeyProtectInstanceID string
	KeyProtectURL        string
	IAMTokenURL          string

	// レガシーゲートウェイ（z/OS Connect互換）
	ZosConnectURL      string
	ZosConnectUser     string
	ZosConnectPassword string

	// トレーシング
	OtelEnabled      bool
	OtelEndpoint     string
	OtelServiceName  string
	OtelSamplingRate float64
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		KeyProtectAPIKey:     os.Getenv("KEYPROTECT_API_KEY"),
		KeyProtectInstanceID: os.Getenv("KEYPROTECT_INSTANCE_ID"),
		KeyProtectURL:        os.Getenv("KEYPROTECT_URL"),
		IAMTokenURL:          getEnv("IAM_TOKEN_URL", defaultIAMTokenURL),

		ZosConnectURL:      os.Getenv("ZOS_CONNECT_URL"),
		ZosConnectUser:     os.Getenv("ZOS_CONNECT_USER"),
		ZosConnectPassword: os.Getenv("ZOS_CONNECT_PASSWORD"),

		OtelEnabled:      os.Getenv("OTEL_ENABLED") == "true",
		OtelEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OtelServiceName:  getEnv("OTEL_SERVICE_NAME", "capability-gateway"),
		OtelSamplingRate: 1.0,
	}
}

// KeyProtectConfigured は鍵カストディバックエンドの必須設定が揃っているかを返す。
func (c *Config) KeyProtectConfigured() bool {
	return c.KeyProtectAPIKey != "" && c.KeyProtectInstanceID != "" && c.KeyProtectURL != ""
}

// ZosConnectConfigured はレガシーゲートウェイの必須設定が揃っているかを返す。
func (c *Config) ZosConnectConfigured() bool {
	return c.ZosConnectURL != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
