package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/localgov/internal/session"
)

// NewPageGateMiddleware はページ区分に応じてアクセスを制御するミドルウェアを返す。
// 保護ページに未認証でアクセスした場合はサインインページへ、
// サインイン等のページに認証済みでアクセスした場合はダッシュボードへ
// 303でリダイレクトする。認証済みの場合はユーザーをコンテキストに注入する。
func NewPageGateMiddleware(kind session.PageKind, resolver SessionResolver, cfg SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gate := session.NewGate(kind, func(ctx context.Context) (*session.Principal, error) {
				return resolvePrincipal(w, r, resolver, cfg)
			}, nil)

			gate.Check(r.Context())
			if target := gate.Redirect(); target != "" {
				w.Header().Set("Cache-Control", "no-store")
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}

			ctx := r.Context()
			if p := gate.Principal(); p != nil {
				ctx = ContextWithPrincipal(ctx, p)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
