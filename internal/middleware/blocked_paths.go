package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/localgov/internal/model"
)

// DefaultBlockedPrefixes は外部に公開しないパスのプレフィックス。
var DefaultBlockedPrefixes = []string{"/admin", "/api/private"}

// NewBlockedPathsMiddleware は指定プレフィックスに一致するパスへの
// リクエストに403 Forbiddenを返すミドルウェアを返す。
func NewBlockedPathsMiddleware(prefixes []string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range prefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					slog.Warn("blocked path requested",
						slog.String("path", r.URL.Path),
						slog.String("client", ClientAddress(r)),
					)
					WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
