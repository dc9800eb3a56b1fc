package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/localgov/internal/dashboard"
	"github.com/hitoshi/localgov/internal/metrics"
	"github.com/hitoshi/localgov/internal/middleware"
	"github.com/hitoshi/localgov/internal/query"
	"github.com/hitoshi/localgov/internal/session"
	"github.com/hitoshi/localgov/internal/web"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	SessionResolver   middleware.SessionResolver
	Notifier          *session.Notifier
	Cookie            session.CookieConfig
	CORSAllowedOrigin string
	BlockedPrefixes   []string
	APILimiter        *middleware.FixedWindowLimiter
	UserLimiter       *middleware.RateLimiter

	// ページ
	Renderer PageRenderer
	BaseURL  string

	// 質問応答
	Answerer query.Answerer

	// 履歴・ブックマーク
	Library      dashboard.LibraryStore
	HistoryLimit int

	// 認証・アカウント
	AuthProvider   AuthProvider
	AccountService AccountServiceInterface

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → BlockedPaths → APILimiter → CSRF
//
// ページはアクセス区分ごとのゲート、/api/ の認証必須ルートは
// Session → UserLimiter を通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	blocked := deps.BlockedPrefixes
	if blocked == nil {
		blocked = middleware.DefaultBlockedPrefixes
	}

	sessCfg := middleware.SessionConfig{Cookie: deps.Cookie}
	if deps.Notifier != nil {
		sessCfg.Publisher = deps.Notifier
	}
	// 質問APIはCookieの権限を使わないためCSRF検証の対象外
	csrfCfg := middleware.CSRFConfig{
		CookieSecure: deps.Cookie.Secure,
		CookieDomain: deps.Cookie.Domain,
		ExemptPaths:  []string{"/api/search"},
	}

	pageHandler := NewPageHandler(deps.Renderer)

	r.Use(middleware.NewRecoveryMiddleware(pageHandler.InternalError))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewBlockedPathsMiddleware(blocked))
	if deps.APILimiter != nil {
		r.Use(deps.APILimiter.Middleware())
	}
	r.Use(middleware.NewCSRFMiddleware(csrfCfg))

	authHandler := NewAuthHandler(deps.AuthProvider, deps.AccountService, deps.Renderer, AuthHandlerConfig{
		BaseURL:   deps.BaseURL,
		Cookie:    deps.Cookie,
		Publisher: sessCfg.Publisher,
	})
	dashboardHandler := NewDashboardHandler(deps.Answerer, deps.Library, deps.HistoryLimit, deps.Renderer)
	settingsHandler := NewSettingsHandler(deps.AccountService, deps.Renderer, deps.Cookie)
	searchHandler := NewSearchHandler(deps.Answerer)
	libraryHandler := NewLibraryHandler(deps.Library)
	accountHandler := NewAccountHandler(deps.AccountService, deps.Cookie)
	eventsHandler := NewSessionEventsHandler(deps.Notifier)
	healthHandler := NewHealthHandler(deps.DB)

	r.NotFound(pageHandler.NotFound)

	// --- 運用・静的ファイル ---
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/static/*", web.StaticHandler())
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(csrfCfg))

	// --- 認証不要のAPI ---
	r.Post("/api/search", searchHandler.Search)
	r.Get("/api/places", libraryHandler.Places)

	// --- 公開ページ（ログイン状態を表示に反映するのみ） ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewPageGateMiddleware(session.PagePublic, deps.SessionResolver, sessCfg))

		r.Get("/", pageHandler.Home)
		r.Get("/about", pageHandler.About)
		r.Get("/privacy", pageHandler.Privacy)
		r.Get("/terms", pageHandler.Terms)

		r.Post("/auth/signout", authHandler.SignOut)
		r.Get("/auth/callback", authHandler.Callback)
		r.Get("/auth/reset-password", authHandler.ResetPasswordPage)
		r.Post("/auth/reset-password", authHandler.ResetPassword)

		r.Get("/api/session/events", eventsHandler.Stream)
	})

	// --- サインイン前のみのページ ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewPageGateMiddleware(session.PageAuthOnly, deps.SessionResolver, sessCfg))

		r.Get("/auth/signin", authHandler.SignInPage)
		r.Post("/auth/signin", authHandler.SignIn)
		r.Post("/auth/signup", authHandler.SignUp)
		r.Get("/auth/forgot-password", authHandler.ForgotPasswordPage)
		r.Post("/auth/forgot-password", authHandler.ForgotPassword)
	})

	// --- 保護ページ ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewPageGateMiddleware(session.PageProtected, deps.SessionResolver, sessCfg))

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/", dashboardHandler.Show)
			r.Post("/search", dashboardHandler.Search)
			r.Post("/bookmark", dashboardHandler.SaveBookmark)
			r.Post("/history/{id}/delete", dashboardHandler.DeleteHistory)
			r.Post("/bookmarks/{id}/delete", dashboardHandler.DeleteBookmark)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Show)
			r.Post("/profile", settingsHandler.UpdateProfile)
			r.Post("/password", settingsHandler.ChangePassword)
			r.Post("/delete", settingsHandler.DeleteAccount)
		})
	})

	// --- 認証が必要なAPI ---
	// ミドルウェアスタック: Session → UserLimiter
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver, sessCfg))
		if deps.UserLimiter != nil {
			r.Use(deps.UserLimiter.Middleware())
		}

		r.Get("/api/me", accountHandler.Me)
		r.Put("/api/profile", accountHandler.UpdateProfile)
		r.Delete("/api/delete-account", accountHandler.DeleteAccount)

		r.Route("/api/history", func(r chi.Router) {
			r.Get("/", libraryHandler.ListHistory)
			r.Delete("/{id}", libraryHandler.DeleteHistory)
		})

		r.Route("/api/bookmarks", func(r chi.Router) {
			r.Get("/", libraryHandler.ListBookmarks)
			r.Post("/", libraryHandler.SaveBookmark)
			r.Delete("/{id}", libraryHandler.DeleteBookmark)
		})
	})

	return r
}
