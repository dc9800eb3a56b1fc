package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/localgov/internal/identity"
	"github.com/hitoshi/localgov/internal/middleware"
	"github.com/hitoshi/localgov/internal/model"
	"github.com/hitoshi/localgov/internal/session"
	"github.com/hitoshi/localgov/internal/web"
)

// --- モック定義 ---

// mockRenderer はPageRendererのモック実装。最後に描画したページを記録する。
type mockRenderer struct {
	calls  int
	name   string
	status int
	page   web.Page
}

func (m *mockRenderer) Render(w http.ResponseWriter, status int, name string, page web.Page) {
	m.calls++
	m.name = name
	m.status = status
	m.page = page
	w.WriteHeader(status)
}

// mockAnswerer はquery.Answererのモック実装。
type mockAnswerer struct {
	answerFn func(ctx context.Context, question, location string) (string, error)
	calls    int
}

func (m *mockAnswerer) Answer(ctx context.Context, question, location string) (string, error) {
	m.calls++
	if m.answerFn != nil {
		return m.answerFn(ctx, question, location)
	}
	return "answer", nil
}

// mockLibrary はdashboard.LibraryStoreのモック実装。
type mockLibrary struct {
	recordSearchFn   func(ctx context.Context, userID, query, location string) (*model.SearchHistoryRecord, error)
	listHistoryFn    func(ctx context.Context, userID string) ([]*model.SearchHistoryRecord, error)
	deleteHistoryFn  func(ctx context.Context, userID, id string) error
	saveBookmarkFn   func(ctx context.Context, userID, query, location, content string) (*model.Bookmark, error)
	listBookmarksFn  func(ctx context.Context, userID string) ([]*model.Bookmark, error)
	deleteBookmarkFn func(ctx context.Context, userID, id string) error
}

func (m *mockLibrary) RecordSearch(ctx context.Context, userID, query, location string) (*model.SearchHistoryRecord, error) {
	if m.recordSearchFn != nil {
		return m.recordSearchFn(ctx, userID, query, location)
	}
	return &model.SearchHistoryRecord{ID: "h-new", UserID: userID, Query: query, Location: location}, nil
}

func (m *mockLibrary) ListHistory(ctx context.Context, userID string) ([]*model.SearchHistoryRecord, error) {
	if m.listHistoryFn != nil {
		return m.listHistoryFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockLibrary) DeleteHistory(ctx context.Context, userID, id string) error {
	if m.deleteHistoryFn != nil {
		return m.deleteHistoryFn(ctx, userID, id)
	}
	return nil
}

func (m *mockLibrary) SaveBookmark(ctx context.Context, userID, query, location, content string) (*model.Bookmark, error) {
	if m.saveBookmarkFn != nil {
		return m.saveBookmarkFn(ctx, userID, query, location, content)
	}
	return &model.Bookmark{ID: "b-new", UserID: userID, Title: query, Query: query, Location: location, Content: content}, nil
}

func (m *mockLibrary) ListBookmarks(ctx context.Context, userID string) ([]*model.Bookmark, error) {
	if m.listBookmarksFn != nil {
		return m.listBookmarksFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockLibrary) DeleteBookmark(ctx context.Context, userID, id string) error {
	if m.deleteBookmarkFn != nil {
		return m.deleteBookmarkFn(ctx, userID, id)
	}
	return nil
}

// mockAccountService はAccountServiceInterfaceのモック実装。
type mockAccountService struct {
	profileFn        func(ctx context.Context, accessToken string) (*model.User, error)
	deleteAccountFn  func(ctx context.Context, userID string) error
	updateProfileFn  func(ctx context.Context, accessToken, userID, name string) (*model.User, error)
	changePasswordFn func(ctx context.Context, accessToken, userID, password, confirm string) error
}

func (m *mockAccountService) Profile(ctx context.Context, accessToken string) (*model.User, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, accessToken)
	}
	return &model.User{ID: "user-123", Email: "alice@example.com", Name: "Alice"}, nil
}

func (m *mockAccountService) DeleteAccount(ctx context.Context, userID string) error {
	if m.deleteAccountFn != nil {
		return m.deleteAccountFn(ctx, userID)
	}
	return nil
}

func (m *mockAccountService) UpdateProfile(ctx context.Context, accessToken, userID, name string) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, accessToken, userID, name)
	}
	return &model.User{ID: userID, Email: "alice@example.com", Name: name}, nil
}

func (m *mockAccountService) ChangePassword(ctx context.Context, accessToken, userID, password, confirm string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, accessToken, userID, password, confirm)
	}
	return nil
}

// mockAuthProvider はAuthProviderのモック実装。
type mockAuthProvider struct {
	signInFn        func(ctx context.Context, email, password string) (*model.Session, error)
	signUpFn        func(ctx context.Context, email, password, name, redirectTo, challenge string) (*identity.SignUpResult, error)
	exchangeCodeFn  func(ctx context.Context, authCode, codeVerifier string) (*model.Session, error)
	verifyOTPFn     func(ctx context.Context, tokenHash, otpType string) (*model.Session, error)
	resetPasswordFn func(ctx context.Context, email, redirectTo, challenge string) error
	signOutFn       func(ctx context.Context, accessToken string) error
}

func (m *mockAuthProvider) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return testSession(), nil
}

func (m *mockAuthProvider) SignUp(ctx context.Context, email, password, name, redirectTo, challenge string) (*identity.SignUpResult, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password, name, redirectTo, challenge)
	}
	return &identity.SignUpResult{User: model.User{ID: "user-123", Email: email}}, nil
}

func (m *mockAuthProvider) ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*model.Session, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, authCode, codeVerifier)
	}
	return testSession(), nil
}

func (m *mockAuthProvider) VerifyOTP(ctx context.Context, tokenHash, otpType string) (*model.Session, error) {
	if m.verifyOTPFn != nil {
		return m.verifyOTPFn(ctx, tokenHash, otpType)
	}
	return testSession(), nil
}

func (m *mockAuthProvider) ResetPasswordForEmail(ctx context.Context, email, redirectTo, challenge string) error {
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(ctx, email, redirectTo, challenge)
	}
	return nil
}

func (m *mockAuthProvider) SignOut(ctx context.Context, accessToken string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken)
	}
	return nil
}

// mockPublisher はsession.Publisherのモック実装。
type mockPublisher struct {
	userIDs []string
	events  []session.Event
}

func (m *mockPublisher) Publish(userID string, event session.Event) {
	m.userIDs = append(m.userIDs, userID)
	m.events = append(m.events, event)
}

// --- ヘルパー ---

func testSession() *model.Session {
	return &model.Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		User:         model.User{ID: "user-123", Email: "alice@example.com"},
	}
}

// withUserID はテスト用にユーザーIDをコンテキストに注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withPrincipal はテスト用にアクセストークン付きのユーザーを注入するヘルパー。
func withPrincipal(r *http.Request, userID, accessToken string) *http.Request {
	return r.WithContext(middleware.ContextWithPrincipal(r.Context(), &session.Principal{
		UserID:      userID,
		Email:       "alice@example.com",
		AccessToken: accessToken,
	}))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// newFormRequest はフォーム送信のリクエストを生成する。
func newFormRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// decodeErrorBody はエラーレスポンスのJSONをデコードする。
func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// findCookie はレスポンスから指定名のCookieを探す。
func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
