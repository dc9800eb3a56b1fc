package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/localgov/internal/completion"
	"github.com/hitoshi/localgov/internal/config"
	"github.com/hitoshi/localgov/internal/database"
	"github.com/hitoshi/localgov/internal/handler"
	"github.com/hitoshi/localgov/internal/history"
	"github.com/hitoshi/localgov/internal/identity"
	"github.com/hitoshi/localgov/internal/logger"
	"github.com/hitoshi/localgov/internal/metrics"
	"github.com/hitoshi/localgov/internal/middleware"
	"github.com/hitoshi/localgov/internal/query"
	"github.com/hitoshi/localgov/internal/repository"
	"github.com/hitoshi/localgov/internal/security"
	"github.com/hitoshi/localgov/internal/session"
	"github.com/hitoshi/localgov/internal/user"
	"github.com/hitoshi/localgov/internal/web"
	"github.com/hitoshi/localgov/internal/worker/cleanup"
)

const (
	dbPingTimeout   = 5 * time.Second
	cleanupInterval = 24 * time.Hour
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップ
	logger.SetupDefaultWithLevel(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	historyRepo := repository.NewPostgresSearchHistoryRepo(db)
	bookmarkRepo := repository.NewPostgresBookmarkRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// 4. 外部サービスクライアントの初期化
	guard := security.NewOutboundGuard(cfg.OutboundGuardEnabled)
	identityClient := identity.NewClient(
		guard.NewClient(cfg.IdentityTimeout),
		slog.Default(),
		identity.Config{
			BaseURL:        cfg.IdentityURL,
			AnonKey:        cfg.IdentityAnonKey,
			ServiceRoleKey: cfg.IdentityServiceRoleKey,
		},
	)
	completionClient := completion.NewClient(
		guard.NewClient(cfg.CompletionTimeout),
		slog.Default(),
		completion.Config{
			BaseURL: cfg.CompletionBaseURL,
			APIKey:  cfg.CompletionAPIKey,
			Model:   cfg.CompletionModel,
		},
	)

	// 5. ドメインサービスの初期化
	notifier := session.NewNotifier()
	resolver := session.NewResolver(identity.NewTokenVerifier(cfg.IdentityJWTSecret), identityClient)

	queryService := query.NewService(completionClient, collector, slog.Default(), query.ServiceConfig{
		MaxTokens:   cfg.CompletionMaxTokens,
		Temperature: cfg.CompletionTemperature,
	})
	historyService := history.NewService(historyRepo, bookmarkRepo, security.NewTextSanitizer(), history.Config{
		HistoryLimit:     cfg.HistoryDisplayLimit,
		BookmarkLimit:    cfg.BookmarkDisplayLimit,
		ContentMaxLength: cfg.BookmarkContentMaxLength,
	})
	userService := user.NewService(identityClient, historyRepo, bookmarkRepo, notifier)

	renderer, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	// 6. レート制限の初期化
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiLimiterCfg := middleware.DefaultFixedWindowConfig()
	if cfg.RateLimitAPIPerMinute > 0 {
		apiLimiterCfg.Limit = cfg.RateLimitAPIPerMinute
	}
	windowStore := middleware.NewMemoryWindowStore()
	apiLimiter := middleware.NewFixedWindowLimiter(apiLimiterCfg, windowStore, collector)
	go sweepWindows(ctx, windowStore, apiLimiterCfg.Window)

	userLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitUserPerMinute), collector)
	defer userLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),
		SessionResolver:   resolver,
		Notifier:          notifier,
		Cookie:            session.CookieConfig{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		APILimiter:        apiLimiter,
		UserLimiter:       userLimiter,

		Renderer: renderer,
		BaseURL:  cfg.BaseURL,

		Answerer: queryService,

		Library:      historyService,
		HistoryLimit: historyService.HistoryLimit(),

		AuthProvider:   identityClient,
		AccountService: userService,

		DB: db,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	// 補完APIの応答待ちを含むため書き込みタイムアウトは補完のタイムアウトより長くとる
	server := newHTTPServer(":"+cfg.ServerPort, router, cfg.CompletionTimeout+15*time.Second, notifier)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down web server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// newHTTPServer はHTTPサーバーを生成する。
// Shutdown開始時にNotifierを閉じ、SSE接続がアイドル待ちを妨げないようにする。
func newHTTPServer(addr string, h http.Handler, writeTimeout time.Duration, notifier *session.Notifier) *http.Server {
	server := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	server.RegisterOnShutdown(notifier.Close)
	return server
}

// sweepWindows は期限切れのレート制限カウンターを定期的に削除する。
func sweepWindows(ctx context.Context, store *middleware.MemoryWindowStore, window time.Duration) {
	ticker := time.NewTicker(window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := store.Sweep(window, now); n > 0 {
				slog.Debug("rate limit windows swept", slog.Int("removed", n))
			}
		}
	}
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、保持期間を過ぎた検索履歴の削除ジョブを日次で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	registry := prometheus.NewRegistry()
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default(), metrics.NewCollector(registry), cfg.HistoryRetentionDays)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cleanupInterval),
		slog.Int("retention_days", cfg.HistoryRetentionDays),
	)

	// 起動直後に1回実行し、以降は日次で実行する（ブロッキング）
	cleanupJob.Start(ctx, cleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしまたはupで未適用のマイグレーションを適用し、
// down [steps]で直近のマイグレーションを取り消し、versionで現在のバージョンを表示する。
func runMigrate(cfg *config.Config, args []string) error {
	action, steps, err := ParseMigrateArgs(args)
	if err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back", slog.Int("steps", steps))
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		slog.Info("database schema version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
	}

	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
