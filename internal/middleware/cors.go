package middleware

import (
	"net/http"
	"strings"
)

// corsPrefix はCORSヘッダーを付与するパスのプレフィックス。
// ページは同一オリジンのフォーム送信のみのため対象外とする。
const corsPrefix = "/api/"

// NewCORSMiddleware は /api/ 配下に指定オリジンのCORSヘッダーを付与するミドルウェアを返す。
// Cookie認証と併用するため、ワイルドカード(*)は使用しない。
// プリフライトには204で応答する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	allowedHeaders := strings.Join([]string{"Content-Type", "Authorization", csrfHeaderName}, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, corsPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", allowedHeaders)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
