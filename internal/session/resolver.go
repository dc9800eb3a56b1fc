package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/localgov/internal/identity"
	"github.com/hitoshi/localgov/internal/model"
)

// Cookie名。IdPのクライアントライブラリと同じ名前を使用する。
const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"
)

// ErrNoSession は有効なセッションが存在しないことを示す。
var ErrNoSession = errors.New("no active session")

// Principal はリクエストを行った認証済みユーザー。
type Principal struct {
	UserID      string
	Email       string
	Name        string
	AccessToken string
}

// Resolution はセッション解決の結果。
// Refreshedはトークンを再発行した場合のみ設定され、呼び出し側はCookieを更新する。
type Resolution struct {
	Principal Principal
	Refreshed *model.Session
}

// TokenVerifier はアクセストークンのローカル検証に必要なインターフェース。
type TokenVerifier interface {
	Verify(tokenString string) (*identity.Claims, error)
}

// Provider はIdPへの問い合わせに必要なインターフェース。
type Provider interface {
	GetUser(ctx context.Context, accessToken string) (*model.User, error)
	RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error)
}

// Resolver はリクエストのCookieまたはBearerヘッダーからセッションを解決する。
type Resolver struct {
	verifier TokenVerifier
	provider Provider
}

// NewResolver はResolverを生成する。
func NewResolver(verifier TokenVerifier, provider Provider) *Resolver {
	return &Resolver{verifier: verifier, provider: provider}
}

// Resolve はリクエストからセッションを解決する。
// アクセストークンはまずローカルで検証し、検証できない場合はIdPに問い合わせる。
// 期限切れの場合はリフレッシュトークンで1回だけ再発行を試みる。
// セッションが存在しない場合はErrNoSessionを返す。
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Resolution, error) {
	accessToken := AccessTokenFromRequest(req)
	refreshToken := cookieValue(req, RefreshTokenCookie)

	if accessToken == "" && refreshToken == "" {
		return nil, ErrNoSession
	}

	if accessToken != "" {
		p, err := r.verify(ctx, accessToken)
		if err == nil {
			return &Resolution{Principal: *p}, nil
		}
		if !errors.Is(err, identity.ErrTokenExpired) && !errors.Is(err, identity.ErrUnauthorized) {
			return nil, err
		}
	}

	if refreshToken == "" {
		return nil, ErrNoSession
	}
	return r.refresh(ctx, refreshToken)
}

// verify はアクセストークンを検証する。
func (r *Resolver) verify(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := r.verifier.Verify(accessToken)
	if err == nil {
		return &Principal{
			UserID:      claims.Subject,
			Email:       claims.Email,
			Name:        claims.Name(),
			AccessToken: accessToken,
		}, nil
	}
	if errors.Is(err, identity.ErrTokenExpired) {
		return nil, err
	}
	if !errors.Is(err, identity.ErrNotConfigured) {
		slog.Debug("local token verification failed, asking provider",
			slog.String("error", err.Error()),
		)
	}

	user, err := r.provider.GetUser(ctx, accessToken)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	return &Principal{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		AccessToken: accessToken,
	}, nil
}

// refresh はリフレッシュトークンでセッションを再発行する。
func (r *Resolver) refresh(ctx context.Context, refreshToken string) (*Resolution, error) {
	sess, err := r.provider.RefreshSession(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			return nil, ErrNoSession
		}
		var perr *identity.ProviderError
		if errors.As(err, &perr) && perr.StatusCode < http.StatusInternalServerError {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return &Resolution{
		Principal: Principal{
			UserID:      sess.User.ID,
			Email:       sess.User.Email,
			Name:        sess.User.Name,
			AccessToken: sess.AccessToken,
		},
		Refreshed: sess,
	}, nil
}

// AccessTokenFromRequest はAuthorizationヘッダーのBearerトークン、
// なければアクセストークンCookieの値を返す。
func AccessTokenFromRequest(req *http.Request) string {
	if h := req.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return cookieValue(req, AccessTokenCookie)
}

func cookieValue(req *http.Request, name string) string {
	c, err := req.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
