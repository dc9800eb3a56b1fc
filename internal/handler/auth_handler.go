package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/localgov/internal/identity"
	"github.com/hitoshi/localgov/internal/middleware"
	"github.com/hitoshi/localgov/internal/model"
	"github.com/hitoshi/localgov/internal/session"
	"github.com/hitoshi/localgov/internal/user"
	"github.com/hitoshi/localgov/internal/web"
)

// codeVerifierCookie はPKCEのcode_verifierを保持するCookieの名前。
const codeVerifierCookie = "sb-code-verifier"

// AuthProvider は認証ハンドラーが必要とするIdPのインターフェース。
// identity.Clientが実装する。
type AuthProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, email, password, name, redirectTo, challenge string) (*identity.SignUpResult, error)
	ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*model.Session, error)
	VerifyOTP(ctx context.Context, tokenHash, otpType string) (*model.Session, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo, challenge string) error
	SignOut(ctx context.Context, accessToken string) error
}

// PasswordChanger はパスワード再設定で使用するインターフェース。
type PasswordChanger interface {
	ChangePassword(ctx context.Context, accessToken, userID, password, confirm string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL   string
	Cookie    session.CookieConfig
	Publisher session.Publisher
}

// AuthHandler はサインイン・サインアップ・パスワード再設定のHTTPハンドラー。
type AuthHandler struct {
	provider  AuthProvider
	passwords PasswordChanger
	renderer  PageRenderer
	config    AuthHandlerConfig
	now       func() time.Time
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(provider AuthProvider, passwords PasswordChanger, renderer PageRenderer, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		provider:  provider,
		passwords: passwords,
		renderer:  renderer,
		config:    config,
		now:       time.Now,
	}
}

// SignInPage はサインイン（またはサインアップ）フォームを表示する。
// GET /auth/signin?mode=signup&error=...
func (h *AuthHandler) SignInPage(w http.ResponseWriter, r *http.Request) {
	data := &web.SignInData{Mode: r.URL.Query().Get("mode")}
	page := newPage(r, "Sign in", data)
	if data.Mode == "signup" {
		page.Title = "Sign up"
	}
	page.Error = r.URL.Query().Get("error")
	page.Flash = r.URL.Query().Get("message")
	h.renderer.Render(w, http.StatusOK, web.PageSignIn, page)
}

// SignIn はメールアドレスとパスワードでサインインする。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	data := &web.SignInData{Email: email}
	if email == "" || password == "" {
		h.renderSignInError(w, r, http.StatusBadRequest, data, "Email and password are required")
		return
	}

	sess, err := h.provider.SignInWithPassword(r.Context(), email, password)
	if err != nil {
		apiErr := identityAPIError(err)
		h.renderSignInError(w, r, mapAPIErrorToHTTPStatus(apiErr), data, apiErr.Message)
		return
	}

	h.startSession(w, sess)
	http.Redirect(w, r, session.DashboardPath, http.StatusSeeOther)
}

// SignUp はアカウントを作成する。
// IdPがメール確認を要求する場合は確認メール送信済みの旨を表示する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	name := strings.TrimSpace(r.PostFormValue("name"))

	data := &web.SignInData{Mode: "signup", Email: email, Name: name}
	if email == "" || password == "" {
		h.renderSignInError(w, r, http.StatusBadRequest, data, "Email and password are required")
		return
	}
	if err := user.ValidatePassword(password, password); err != nil {
		h.renderSignInError(w, r, http.StatusBadRequest, data, userMessage(err))
		return
	}

	challenge, err := h.newCodeChallenge(w)
	if err != nil {
		slog.Error("failed to generate code verifier", slog.String("error", err.Error()))
		h.renderSignInError(w, r, http.StatusInternalServerError, data, model.NewIdentityFailedError("").Message)
		return
	}

	result, err := h.provider.SignUp(r.Context(), email, password, name, h.config.BaseURL+"/auth/callback", challenge)
	if err != nil {
		apiErr := identityAPIError(err)
		h.renderSignInError(w, r, mapAPIErrorToHTTPStatus(apiErr), data, apiErr.Message)
		return
	}

	if result.Session != nil {
		h.startSession(w, result.Session)
		http.Redirect(w, r, session.DashboardPath, http.StatusSeeOther)
		return
	}

	page := newPage(r, "Sign in", &web.SignInData{Email: email})
	page.Flash = "Check your email to confirm your account, then sign in."
	h.renderer.Render(w, http.StatusOK, web.PageSignIn, page)
}

// SignOut はセッションを破棄してトップページへリダイレクトする。
// IdP側の失効に失敗してもCookieはクリアする。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := session.AccessTokenFromRequest(r); token != "" {
		if err := h.provider.SignOut(r.Context(), token); err != nil {
			slog.Warn("failed to revoke session", slog.String("error", err.Error()))
		}
	}

	session.ClearCookies(w, h.config.Cookie)
	if p, ok := middleware.PrincipalFromContext(r.Context()); ok && h.config.Publisher != nil {
		h.config.Publisher.Publish(p.UserID, session.EventSignedOut)
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Callback はメール内リンクからの戻りを処理する。
// code（PKCE）またはtoken_hash+typeでセッションを確立し、ダッシュボードへ遷移する。
// パスワード再設定の場合は再設定ページへ遷移する。
// GET /auth/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if msg := callbackError(q); msg != "" {
		redirectToSignIn(w, r, msg)
		return
	}

	sess, err := h.establishSession(w, r)
	if err != nil {
		if errors.Is(err, errNoAuthCode) {
			redirectToSignIn(w, r, "No authentication code was provided")
			return
		}
		slog.Error("auth callback failed", slog.String("error", err.Error()))
		redirectToSignIn(w, r, identityAPIError(err).Message)
		return
	}

	h.startSession(w, sess)

	target := session.DashboardPath
	if q.Get("type") == "recovery" {
		target = "/auth/reset-password"
	}
	setNoCacheHeaders(w)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// ForgotPasswordPage はパスワード再設定メールの送信フォームを表示する。
// GET /auth/forgot-password
func (h *AuthHandler) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, web.PageForgotPassword,
		newPage(r, "Forgot password", &web.ForgotPasswordData{}))
}

// ForgotPassword はパスワード再設定メールを送信する。
// POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))
	data := &web.ForgotPasswordData{Email: email}

	if email == "" {
		page := newPage(r, "Forgot password", data)
		page.Error = "Email is required"
		h.renderer.Render(w, http.StatusBadRequest, web.PageForgotPassword, page)
		return
	}

	challenge, err := h.newCodeChallenge(w)
	if err == nil {
		err = h.provider.ResetPasswordForEmail(r.Context(), email, h.config.BaseURL+"/auth/reset-password", challenge)
	}
	if err != nil {
		apiErr := identityAPIError(err)
		page := newPage(r, "Forgot password", data)
		page.Error = apiErr.Message
		h.renderer.Render(w, mapAPIErrorToHTTPStatus(apiErr), web.PageForgotPassword, page)
		return
	}

	data.Sent = true
	h.renderer.Render(w, http.StatusOK, web.PageForgotPassword, newPage(r, "Forgot password", data))
}

// ResetPasswordPage は新しいパスワードの入力フォームを表示する。
// 再設定メールのリンク（codeまたはtoken_hash付き）から来た場合は
// セッションを確立してからフォームへリダイレクトする。
// GET /auth/reset-password
func (h *AuthHandler) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if msg := callbackError(q); msg != "" {
		redirectToSignIn(w, r, msg)
		return
	}

	if q.Get("code") != "" || q.Get("token_hash") != "" {
		sess, err := h.establishSession(w, r)
		if err != nil {
			slog.Error("password recovery link rejected", slog.String("error", err.Error()))
			redirectToSignIn(w, r, "Your password reset link is invalid or has expired")
			return
		}
		h.startSession(w, sess)
		setNoCacheHeaders(w)
		http.Redirect(w, r, "/auth/reset-password", http.StatusSeeOther)
		return
	}

	if _, ok := middleware.PrincipalFromContext(r.Context()); !ok {
		redirectToSignIn(w, r, "Your password reset link is invalid or has expired")
		return
	}
	h.renderer.Render(w, http.StatusOK, web.PageResetPassword, newPage(r, "Reset password", nil))
}

// ResetPassword は新しいパスワードを設定する。
// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		redirectToSignIn(w, r, "Your password reset link is invalid or has expired")
		return
	}

	err := h.passwords.ChangePassword(r.Context(), p.AccessToken, p.UserID,
		r.PostFormValue("password"), r.PostFormValue("confirm_password"))
	if err != nil {
		page := newPage(r, "Reset password", nil)
		page.Error = userMessage(err)
		h.renderer.Render(w, statusForError(err), web.PageResetPassword, page)
		return
	}

	http.Redirect(w, r, session.DashboardPath, http.StatusSeeOther)
}

var errNoAuthCode = errors.New("no authentication code in request")

// establishSession はコールバックURLのパラメータからセッションを取得する。
func (h *AuthHandler) establishSession(w http.ResponseWriter, r *http.Request) (*model.Session, error) {
	q := r.URL.Query()

	if tokenHash, otpType := q.Get("token_hash"), q.Get("type"); tokenHash != "" && otpType != "" {
		return h.provider.VerifyOTP(r.Context(), tokenHash, otpType)
	}

	code := q.Get("code")
	if code == "" {
		return nil, errNoAuthCode
	}

	var verifier string
	if c, err := r.Cookie(codeVerifierCookie); err == nil {
		verifier = c.Value
	}
	h.clearCodeVerifier(w)
	return h.provider.ExchangeCode(r.Context(), code, verifier)
}

// startSession はセッションCookieを設定し、SIGNED_INを通知する。
func (h *AuthHandler) startSession(w http.ResponseWriter, sess *model.Session) {
	session.SetCookies(w, sess, h.config.Cookie, h.now())
	if h.config.Publisher != nil {
		h.config.Publisher.Publish(sess.User.ID, session.EventSignedIn)
	}
}

// newCodeChallenge はPKCEのcode_verifierを生成してCookieに保存し、challengeを返す。
func (h *AuthHandler) newCodeChallenge(w http.ResponseWriter) (string, error) {
	verifier, err := identity.NewCodeVerifier()
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     codeVerifierCookie,
		Value:    verifier,
		Path:     "/auth",
		Domain:   h.config.Cookie.Domain,
		MaxAge:   3600, // 1時間
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return identity.CodeChallenge(verifier), nil
}

func (h *AuthHandler) clearCodeVerifier(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     codeVerifierCookie,
		Value:    "",
		Path:     "/auth",
		Domain:   h.config.Cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) renderSignInError(w http.ResponseWriter, r *http.Request, status int, data *web.SignInData, msg string) {
	title := "Sign in"
	if data.Mode == "signup" {
		title = "Sign up"
	}
	page := newPage(r, title, data)
	page.Error = msg
	h.renderer.Render(w, status, web.PageSignIn, page)
}

// identityErrorMessages はIdPのエラー文言を画面表示用のエラーに置き換える対応表。
var identityErrorMessages = map[string]func() *model.APIError{
	"Invalid login credentials": model.NewInvalidCredentialsError,
	"Email not confirmed":       model.NewEmailNotConfirmedError,
}

// identityAPIError はIdP呼び出しのエラーをユーザー向けのAPIErrorに変換する。
// 既知の文言は分かりやすいメッセージに置き換え、4xxはIdPの文言をそのまま使う。
func identityAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var perr *identity.ProviderError
	if errors.As(err, &perr) {
		for substr, fn := range identityErrorMessages {
			if strings.Contains(perr.Message, substr) {
				return fn()
			}
		}
		if perr.StatusCode >= 400 && perr.StatusCode < 500 && perr.Message != "" {
			apiErr := model.NewIdentityFailedError(perr.Message)
			apiErr.Code = "INVALID_AUTH_REQUEST"
			return apiErr
		}
	}

	slog.Error("identity provider call failed", slog.String("error", err.Error()))
	return model.NewIdentityFailedError("")
}

// callbackError はIdPがリダイレクトに付与したエラー文言を返す。
func callbackError(q url.Values) string {
	if desc := q.Get("error_description"); desc != "" {
		return desc
	}
	return q.Get("error")
}

func redirectToSignIn(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, session.SignInPath+"?error="+url.QueryEscape(msg), http.StatusSeeOther)
}

func setNoCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
