// Package infra は外部サービスとの接続を提供する。
package infra

import (
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// newTransport はトレース計装付きのHTTPトランスポートを生成する。
func newTransport() http.RoundTripper {
	return otelhttp.NewTransport(cleanhttp.DefaultPooledTransport())
}
