package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired はアクセストークンの有効期限切れを示す。
var ErrTokenExpired = errors.New("access token expired")

// Claims はIdPが発行するアクセストークンのクレーム。
// subがユーザーIDとなる。
type Claims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// TokenVerifier はIdPのJWTシークレットでアクセストークンをローカル検証する。
// シークレット未設定の場合は検証を行わずErrNotConfiguredを返し、
// 呼び出し側はIdPへの問い合わせにフォールバックする。
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier はTokenVerifierを生成する。
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, ErrNotConfigured
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid access token: missing subject")
	}

	return claims, nil
}

// Name はuser_metadata.nameを返す。未設定の場合は空文字列。
func (c *Claims) Name() string {
	name, _ := c.UserMetadata["name"].(string)
	return name
}
