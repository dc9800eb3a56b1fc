package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/localgov/internal/session"
)

func TestPageGateMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		kind         session.PageKind
		resolver     *mockResolver
		wantStatus   int
		wantLocation string
	}{
		{"未認証で保護ページはサインインへ", session.PageProtected, &mockResolver{}, http.StatusSeeOther, "/auth/signin"},
		{"認証済みで保護ページは表示", session.PageProtected, principalResolver("user-1"), http.StatusOK, ""},
		{"認証済みでサインインページはダッシュボードへ", session.PageAuthOnly, principalResolver("user-1"), http.StatusSeeOther, "/dashboard"},
		{"未認証でサインインページは表示", session.PageAuthOnly, &mockResolver{}, http.StatusOK, ""},
		{"公開ページは未認証でも表示", session.PagePublic, &mockResolver{}, http.StatusOK, ""},
		{"公開ページは認証済みでも表示", session.PagePublic, principalResolver("user-1"), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewPageGateMiddleware(tt.kind, tt.resolver, SessionConfig{})
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/page", nil))

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if loc := resp.Header.Get("Location"); loc != tt.wantLocation {
				t.Errorf("Location = %q, want %q", loc, tt.wantLocation)
			}
		})
	}
}

func TestPageGateMiddleware_InjectsPrincipal(t *testing.T) {
	mw := NewPageGateMiddleware(session.PagePublic, principalResolver("user-7"), SessionConfig{})

	var userID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ = UserIDFromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if userID != "user-7" {
		t.Errorf("userID = %q, want %q", userID, "user-7")
	}
}
