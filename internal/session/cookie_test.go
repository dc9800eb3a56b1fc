package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/localgov/internal/model"
)

func cookiesByName(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range w.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestSetCookies(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sess := &model.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    now.Add(30 * time.Minute),
	}
	w := httptest.NewRecorder()

	SetCookies(w, sess, CookieConfig{Secure: true, Domain: "localgov.example"}, now)

	cookies := cookiesByName(w)
	access := cookies[AccessTokenCookie]
	require.NotNil(t, access)
	assert.Equal(t, "access", access.Value)
	assert.Equal(t, 1800, access.MaxAge)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.Equal(t, "localgov.example", access.Domain)

	refresh := cookies[RefreshTokenCookie]
	require.NotNil(t, refresh)
	assert.Equal(t, "refresh", refresh.Value)
	assert.Equal(t, refreshTokenMaxAge, refresh.MaxAge)
}

func TestSetCookies_WithoutRefreshToken(t *testing.T) {
	w := httptest.NewRecorder()

	SetCookies(w, &model.Session{AccessToken: "access"}, CookieConfig{}, time.Now())

	cookies := cookiesByName(w)
	assert.Equal(t, 3600, cookies[AccessTokenCookie].MaxAge)
	assert.NotContains(t, cookies, RefreshTokenCookie)
}

func TestClearCookies(t *testing.T) {
	w := httptest.NewRecorder()

	ClearCookies(w, CookieConfig{})

	cookies := cookiesByName(w)
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Empty(t, c.Value)
		assert.Less(t, c.MaxAge, 0)
	}
}
