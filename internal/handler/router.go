package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter はルーターを生成する。
func NewRouter(h *GatewayHandler) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	// ルート定義
	r.Get("/healthz", h.Healthz)
	r.Route("/v1/tools", func(r chi.Router) {
		r.Get("/", h.ListTools)
		r.Post("/{name}", h.Invoke)
	})

	return r
}
