package session

import (
	"net/http"
	"time"

	"github.com/hitoshi/localgov/internal/model"
)

// refreshTokenMaxAge はリフレッシュトークンCookieの保持期間（30日）。
const refreshTokenMaxAge = 30 * 24 * 60 * 60

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Secure bool
	Domain string
}

// SetCookies はセッションのトークンをHTTP Only Cookieに書き込む。
func SetCookies(w http.ResponseWriter, sess *model.Session, cfg CookieConfig, now time.Time) {
	accessMaxAge := 3600
	if !sess.ExpiresAt.IsZero() {
		accessMaxAge = int(sess.ExpiresAt.Sub(now).Seconds())
		if accessMaxAge <= 0 {
			accessMaxAge = 1
		}
	}
	http.SetCookie(w, newCookie(AccessTokenCookie, sess.AccessToken, accessMaxAge, cfg))
	if sess.RefreshToken != "" {
		http.SetCookie(w, newCookie(RefreshTokenCookie, sess.RefreshToken, refreshTokenMaxAge, cfg))
	}
}

// ClearCookies はセッションCookieを削除する。
func ClearCookies(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, newCookie(AccessTokenCookie, "", -1, cfg))
	http.SetCookie(w, newCookie(RefreshTokenCookie, "", -1, cfg))
}

func newCookie(name, value string, maxAge int, cfg CookieConfig) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
