package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 外部サービスの認証情報は起動時には必須とせず、未設定の場合は
// 該当クライアントの初回呼び出し時にエラーとなる。
type Config struct {
	// Database
	DatabaseURL string

	// Identity provider
	IdentityURL            string
	IdentityAnonKey        string
	IdentityServiceRoleKey string
	IdentityJWTSecret      string
	IdentityTimeout        time.Duration

	// Completion provider
	CompletionAPIKey      string
	CompletionBaseURL     string
	CompletionModel       string
	CompletionMaxTokens   int
	CompletionTemperature float64
	CompletionTimeout     time.Duration

	// Rate Limit
	RateLimitAPIPerMinute  int
	RateLimitUserPerMinute int

	// Library
	HistoryDisplayLimit      int
	BookmarkDisplayLimit     int
	BookmarkContentMaxLength int
	HistoryRetentionDays     int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Outbound HTTP
	OutboundGuardEnabled bool

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 値の形式が不正な場合（ポート番号が数値でない等）はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.IdentityURL = strings.TrimRight(os.Getenv("IDENTITY_URL"), "/")
	cfg.IdentityAnonKey = os.Getenv("IDENTITY_ANON_KEY")
	cfg.IdentityServiceRoleKey = os.Getenv("IDENTITY_SERVICE_ROLE_KEY")
	cfg.IdentityJWTSecret = os.Getenv("IDENTITY_JWT_SECRET")
	cfg.IdentityTimeout = getEnvDuration("IDENTITY_TIMEOUT", 10*time.Second)

	cfg.CompletionAPIKey = getEnvString("COMPLETION_API_KEY", os.Getenv("OPENAI_API_KEY"))
	cfg.CompletionBaseURL = getEnvString("COMPLETION_BASE_URL", "https://api.openai.com/v1")
	cfg.CompletionModel = getEnvString("COMPLETION_MODEL", "gpt-4")
	cfg.CompletionMaxTokens = getEnvInt("COMPLETION_MAX_TOKENS", 1000)
	cfg.CompletionTemperature = getEnvFloat("COMPLETION_TEMPERATURE", 0.7)
	cfg.CompletionTimeout = getEnvDuration("COMPLETION_TIMEOUT", 60*time.Second)

	cfg.RateLimitAPIPerMinute = getEnvInt("RATE_LIMIT_API_PER_MINUTE", 30)
	cfg.RateLimitUserPerMinute = getEnvInt("RATE_LIMIT_USER_PER_MINUTE", 120)

	cfg.HistoryDisplayLimit = getEnvInt("HISTORY_DISPLAY_LIMIT", 10)
	cfg.BookmarkDisplayLimit = getEnvInt("BOOKMARK_DISPLAY_LIMIT", 50)
	cfg.BookmarkContentMaxLength = getEnvInt("BOOKMARK_CONTENT_MAX_LENGTH", 5000)
	cfg.HistoryRetentionDays = getEnvInt("HISTORY_RETENTION_DAYS", 365)

	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	if _, err := strconv.Atoi(cfg.ServerPort); err != nil {
		return nil, fmt.Errorf("SERVER_PORT must be numeric: %q", cfg.ServerPort)
	}
	cfg.BaseURL = strings.TrimRight(getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort), "/")

	cfg.OutboundGuardEnabled = getEnvBool("OUTBOUND_GUARD_ENABLED", true)

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.BaseURL)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
