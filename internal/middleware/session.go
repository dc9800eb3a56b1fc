// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/localgov/internal/model"
	"github.com/hitoshi/localgov/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// principalContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
	principalContextKey = contextKey("principal")
	// requestUserContextKey はログ出力用のユーザーIDスロットのキー。
	requestUserContextKey = contextKey("request_user")
)

// requestUser はログミドルウェアへユーザーIDを伝えるためのスロット。
type requestUser struct {
	userID string
}

func contextWithRequestUser(ctx context.Context, slot *requestUser) context.Context {
	return context.WithValue(ctx, requestUserContextKey, slot)
}

// SessionResolver はリクエストからセッションを解決するインターフェース。
// session.Resolverが実装する。
type SessionResolver interface {
	Resolve(ctx context.Context, r *http.Request) (*session.Resolution, error)
}

// SessionConfig はセッションミドルウェアの設定。
type SessionConfig struct {
	Cookie    session.CookieConfig
	Publisher session.Publisher
}

// NewSessionMiddleware はCookieまたはBearerヘッダーからセッションを解決し、
// 認証済みユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(resolver SessionResolver, cfg SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := resolvePrincipal(w, r, resolver, cfg)
			if err != nil {
				if !errors.Is(err, session.ErrNoSession) {
					slog.Error("failed to resolve session",
						slog.String("error", err.Error()),
					)
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// resolvePrincipal はセッションを解決する。
// トークンを再発行した場合はCookieを更新し、TOKEN_REFRESHEDを発行する。
func resolvePrincipal(w http.ResponseWriter, r *http.Request, resolver SessionResolver, cfg SessionConfig) (*session.Principal, error) {
	res, err := resolver.Resolve(r.Context(), r)
	if err != nil {
		return nil, err
	}

	if res.Refreshed != nil {
		session.SetCookies(w, res.Refreshed, cfg.Cookie, time.Now())
		if cfg.Publisher != nil {
			cfg.Publisher.Publish(res.Principal.UserID, session.EventTokenRefreshed)
		}
	}

	p := res.Principal
	if slot, ok := r.Context().Value(requestUserContextKey).(*requestUser); ok {
		slot.userID = p.UserID
	}
	return &p, nil
}

// ContextWithPrincipal はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成でも使用する。
func ContextWithPrincipal(ctx context.Context, p *session.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext はリクエストコンテキストから認証済みユーザーを取得する。
func PrincipalFromContext(ctx context.Context) (*session.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*session.Principal)
	return p, ok && p != nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return p.UserID, nil
}

// ContextWithUserID はコンテキストにユーザーIDのみを持つ認証済みユーザーを注入する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithPrincipal(ctx, &session.Principal{UserID: userID})
}
