// Package identity は外部IdP（GoTrue互換の認証API）との連携機能を提供する。
// パスワードサインイン、サインアップ、セッション更新、パスワード再設定、
// プロフィール更新、管理APIによるアカウント削除を扱う。
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/localgov/internal/model"
)

var (
	// ErrNotConfigured はIdPの接続情報が未設定のまま呼び出されたことを示す。
	ErrNotConfigured = errors.New("identity provider is not configured")
	// ErrUnauthorized はIdPがアクセストークンを拒否したことを示す。
	ErrUnauthorized = errors.New("access token rejected by identity provider")
)

// maxResponseSize はIdPレスポンスの最大読み取りサイズ。
const maxResponseSize = 1 << 20

// ProviderError はIdPが返したエラーレスポンスを表す。
// MessageはIdPの原文（例: "Invalid login credentials"）を保持する。
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity provider returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("identity provider returned %d: %s", e.StatusCode, e.Message)
}

// Config はIdPへの接続設定。
type Config struct {
	BaseURL        string // 例: https://project.supabase.co
	AnonKey        string
	ServiceRoleKey string // 管理API（アカウント削除）でのみ使用
}

// Client はGoTrue互換IdPのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	cfg        Config
	now        func() time.Time
}

// NewClient はClientの新しいインスタンスを生成する。
// 接続情報が空でも生成でき、初回呼び出し時にErrNotConfiguredを返す。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// UserUpdate はUpdateUserで変更する項目。nilの項目は変更しない。
type UserUpdate struct {
	Password *string
	Name     *string
}

// SignUpResult はサインアップ結果。
// メール確認が必要な設定の場合、Sessionはnilとなる。
type SignUpResult struct {
	User    model.User
	Session *model.Session
}

// SignInWithPassword はメールアドレスとパスワードでサインインし、セッションを返す。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	body := map[string]string{"email": email, "password": password}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"password"}}, c.cfg.AnonKey, body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(c.now()), nil
}

// SignUp は新規ユーザーを登録する。
// challengeが空でない場合はPKCEのcode_challengeとして確認メールのリンクに紐付ける。
func (c *Client) SignUp(ctx context.Context, email, password, name, redirectTo, challenge string) (*SignUpResult, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"name": name},
	}
	if challenge != "" {
		body["code_challenge"] = challenge
		body["code_challenge_method"] = "s256"
	}

	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}

	// 自動確認が有効な場合はセッション、無効な場合はユーザーオブジェクトのみが返る
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", query, c.cfg.AnonKey, body, &raw); err != nil {
		return nil, err
	}

	var sess sessionResponse
	if err := json.Unmarshal(raw, &sess); err == nil && sess.AccessToken != "" {
		s := sess.toSession(c.now())
		return &SignUpResult{User: s.User, Session: s}, nil
	}

	var u userResponse
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("failed to decode signup response: %w", err)
	}
	return &SignUpResult{User: u.toUser()}, nil
}

// RefreshSession はリフレッシュトークンで新しいセッションを取得する。
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	body := map[string]string{"refresh_token": refreshToken}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"refresh_token"}}, c.cfg.AnonKey, body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(c.now()), nil
}

// ExchangeCode はPKCEの認可コードとcode_verifierをセッションに交換する。
func (c *Client) ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*model.Session, error) {
	body := map[string]string{"auth_code": authCode, "code_verifier": codeVerifier}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {"pkce"}}, c.cfg.AnonKey, body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(c.now()), nil
}

// VerifyOTP はメールリンクのtoken_hashを検証し、セッションを返す。
// otpTypeは"signup"、"recovery"、"email"など。
func (c *Client) VerifyOTP(ctx context.Context, tokenHash, otpType string) (*model.Session, error) {
	body := map[string]string{"token_hash": tokenHash, "type": otpType}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/verify", nil, c.cfg.AnonKey, body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(c.now()), nil
}

// ResetPasswordForEmail はパスワード再設定メールの送信を依頼する。
// 登録の有無にかかわらずIdPは成功を返すため、呼び出し側はアカウントの存在を推測できない。
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo, challenge string) error {
	body := map[string]string{"email": email}
	if challenge != "" {
		body["code_challenge"] = challenge
		body["code_challenge_method"] = "s256"
	}

	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", query, c.cfg.AnonKey, body, nil)
}

// GetUser はアクセストークンに対応するユーザーを返す。
// トークンが無効な場合はErrUnauthorizedを返す。
func (c *Client) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	var resp userResponse
	if err := c.doWithToken(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &resp); err != nil {
		return nil, err
	}
	u := resp.toUser()
	return &u, nil
}

// UpdateUser はパスワードまたは表示名を更新し、更新後のユーザーを返す。
func (c *Client) UpdateUser(ctx context.Context, accessToken string, update UserUpdate) (*model.User, error) {
	body := map[string]any{}
	if update.Password != nil {
		body["password"] = *update.Password
	}
	if update.Name != nil {
		body["data"] = map[string]string{"name": *update.Name}
	}

	var resp userResponse
	if err := c.doWithToken(ctx, http.MethodPut, "/auth/v1/user", accessToken, body, &resp); err != nil {
		return nil, err
	}
	u := resp.toUser()
	return &u, nil
}

// SignOut はアクセストークンに紐づくセッションをIdP側で失効させる。
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.doWithToken(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

// AdminDeleteUser は管理APIでユーザーを削除する。サービスロールキーが必要。
func (c *Client) AdminDeleteUser(ctx context.Context, userID string) error {
	if c.cfg.ServiceRoleKey == "" {
		return fmt.Errorf("admin delete user: %w", ErrNotConfigured)
	}
	path := "/auth/v1/admin/users/" + url.PathEscape(userID)
	return c.doAs(ctx, http.MethodDelete, path, nil, c.cfg.ServiceRoleKey, c.cfg.ServiceRoleKey, nil, nil)
}

func (c *Client) doWithToken(ctx context.Context, method, path, accessToken string, body, out any) error {
	err := c.doAs(ctx, method, path, nil, c.cfg.AnonKey, accessToken, body, out)
	var perr *ProviderError
	if errors.As(err, &perr) && (perr.StatusCode == http.StatusUnauthorized || perr.StatusCode == http.StatusForbidden) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, perr.Message)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, apiKey string, body, out any) error {
	return c.doAs(ctx, method, path, query, apiKey, "", body, out)
}

// doAs はIdPへリクエストを送信し、2xxの場合はoutへデコードする。
// bearerが空の場合はapikeyのみで呼び出す。
func (c *Client) doAs(ctx context.Context, method, path string, query url.Values, apiKey, bearer string, body, out any) error {
	if c.cfg.BaseURL == "" || apiKey == "" {
		return ErrNotConfigured
	}

	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("IdPの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read identity response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := parseProviderError(resp.StatusCode, respBody)
		c.logger.Warn("IdPがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", perr.Code),
		)
		return perr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode identity response: %w", err)
	}
	return nil
}
