package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedirectFor(t *testing.T) {
	tests := []struct {
		name  string
		state State
		kind  PageKind
		want  string
	}{
		{"未認証で保護ページはサインインへ", StateUnauthenticated, PageProtected, SignInPath},
		{"認証済みでサインインページはダッシュボードへ", StateAuthenticated, PageAuthOnly, DashboardPath},
		{"認証済みで保護ページはそのまま", StateAuthenticated, PageProtected, ""},
		{"未認証でサインインページはそのまま", StateUnauthenticated, PageAuthOnly, ""},
		{"公開ページは常にそのまま", StateUnauthenticated, PagePublic, ""},
		{"確認中はリダイレクトしない", StateChecking, PageProtected, ""},
		{"未確認はリダイレクトしない", StateUnknown, PageAuthOnly, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedirectFor(tt.state, tt.kind))
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unknown", StateUnknown.String())
	assert.Equal(t, "checking", StateChecking.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
}
