package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/hitoshi/localgov/internal/model"
	"github.com/hitoshi/localgov/internal/session"
	"github.com/hitoshi/localgov/internal/web"
)

func TestSettingsHandler_Show(t *testing.T) {
	t.Run("IdPのプロフィールを表示する", func(t *testing.T) {
		renderer := &mockRenderer{}
		h := NewSettingsHandler(&mockAccountService{}, renderer, session.CookieConfig{})

		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/settings", nil), "user-123", "tok")
		h.Show(httptest.NewRecorder(), req)

		data := renderer.page.Data.(*web.SettingsData)
		if data.Email != "alice@example.com" || data.Name != "Alice" {
			t.Errorf("data = %+v", data)
		}
	})

	t.Run("取得に失敗した場合はセッションの内容で表示する", func(t *testing.T) {
		svc := &mockAccountService{
			profileFn: func(ctx context.Context, accessToken string) (*model.User, error) {
				return nil, errors.New("timeout")
			},
		}
		renderer := &mockRenderer{}
		h := NewSettingsHandler(svc, renderer, session.CookieConfig{})

		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/settings", nil), "user-123", "tok")
		h.Show(httptest.NewRecorder(), req)

		if renderer.status != http.StatusOK {
			t.Errorf("status = %d, want %d", renderer.status, http.StatusOK)
		}
		if data := renderer.page.Data.(*web.SettingsData); data.Email != "alice@example.com" {
			t.Errorf("email = %q", data.Email)
		}
	})
}

func TestSettingsHandler_UpdateProfile(t *testing.T) {
	renderer := &mockRenderer{}
	h := NewSettingsHandler(&mockAccountService{}, renderer, session.CookieConfig{})

	req := newFormRequest(http.MethodPost, "/settings/profile", url.Values{"name": {"Alice B"}})
	req = withPrincipal(req, "user-123", "tok")
	h.UpdateProfile(httptest.NewRecorder(), req)

	if renderer.page.Flash != "Profile updated." {
		t.Errorf("flash = %q", renderer.page.Flash)
	}
	if data := renderer.page.Data.(*web.SettingsData); data.Name != "Alice B" {
		t.Errorf("name = %q, want %q", data.Name, "Alice B")
	}
}

func TestSettingsHandler_ChangePassword_Mismatch(t *testing.T) {
	svc := &mockAccountService{
		changePasswordFn: func(ctx context.Context, accessToken, userID, password, confirm string) error {
			return model.NewInvalidPasswordError("Passwords do not match")
		},
	}
	renderer := &mockRenderer{}
	h := NewSettingsHandler(svc, renderer, session.CookieConfig{})

	req := newFormRequest(http.MethodPost, "/settings/password", url.Values{
		"password": {"secret1"}, "confirm_password": {"secret2"},
	})
	req = withPrincipal(req, "user-123", "tok")
	h.ChangePassword(httptest.NewRecorder(), req)

	if renderer.status != http.StatusBadRequest || renderer.page.Error != "Passwords do not match" {
		t.Errorf("status = %d, error = %q", renderer.status, renderer.page.Error)
	}
}

func TestSettingsHandler_DeleteAccount(t *testing.T) {
	t.Run("確認なしでは削除しない", func(t *testing.T) {
		svc := &mockAccountService{
			deleteAccountFn: func(ctx context.Context, userID string) error {
				t.Error("DeleteAccount should not be called")
				return nil
			},
		}
		renderer := &mockRenderer{}
		h := NewSettingsHandler(svc, renderer, session.CookieConfig{})

		req := newFormRequest(http.MethodPost, "/settings/delete", url.Values{})
		req = withPrincipal(req, "user-123", "tok")
		h.DeleteAccount(httptest.NewRecorder(), req)

		if renderer.status != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", renderer.status, http.StatusBadRequest)
		}
	})

	t.Run("IdPがトークンを拒否した場合は削除しない", func(t *testing.T) {
		svc := &mockAccountService{
			profileFn: func(ctx context.Context, accessToken string) (*model.User, error) {
				return nil, model.NewUnauthorizedError()
			},
			deleteAccountFn: func(ctx context.Context, userID string) error {
				t.Error("DeleteAccount should not be called")
				return nil
			},
		}
		renderer := &mockRenderer{}
		h := NewSettingsHandler(svc, renderer, session.CookieConfig{})

		req := newFormRequest(http.MethodPost, "/settings/delete", url.Values{"confirm": {"yes"}})
		req = withPrincipal(req, "user-123", "revoked")
		h.DeleteAccount(httptest.NewRecorder(), req)

		if renderer.status != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", renderer.status, http.StatusUnauthorized)
		}
	})

	t.Run("確認ありでは削除してサインインへ", func(t *testing.T) {
		deleted := ""
		svc := &mockAccountService{
			deleteAccountFn: func(ctx context.Context, userID string) error {
				deleted = userID
				return nil
			},
		}
		h := NewSettingsHandler(svc, &mockRenderer{}, session.CookieConfig{})

		req := newFormRequest(http.MethodPost, "/settings/delete", url.Values{"confirm": {"yes"}})
		req = withPrincipal(req, "user-123", "tok")
		w := httptest.NewRecorder()
		h.DeleteAccount(w, req)

		if deleted != "user-123" {
			t.Errorf("deleted = %q, want %q", deleted, "user-123")
		}
		resp := w.Result()
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusSeeOther)
		}
		loc, _ := url.Parse(resp.Header.Get("Location"))
		if loc.Path != session.SignInPath || loc.Query().Get("message") == "" {
			t.Errorf("Location = %q", resp.Header.Get("Location"))
		}
		if c := findCookie(resp, session.RefreshTokenCookie); c == nil || c.MaxAge >= 0 {
			t.Errorf("refresh token cookie should be cleared, got %+v", c)
		}
	})
}
