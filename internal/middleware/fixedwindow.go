package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/localgov/internal/metrics"
)

// WindowStore は固定ウィンドウのカウンターを保持するストア。
// 複数インスタンスで共有する場合はアトミックなインクリメントを持つ
// 外部ストアで実装を差し替える。
type WindowStore interface {
	// Take はキーのカウンターを1つ消費する。上限に達している場合は消費せずfalseを返す。
	// resetAtは現在のウィンドウが終わる時刻。
	Take(key string, limit int, window time.Duration, now time.Time) (allowed bool, resetAt time.Time)
}

type windowEntry struct {
	count int
	start time.Time
}

// MemoryWindowStore はプロセス内メモリのWindowStore。再起動でリセットされる。
type MemoryWindowStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
}

// NewMemoryWindowStore はMemoryWindowStoreを生成する。
func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{entries: make(map[string]*windowEntry)}
}

// Take はWindowStoreを実装する。
// ウィンドウは最初のリクエストから始まり、windowを超えた時点で新しいウィンドウになる。
func (s *MemoryWindowStore) Take(key string, limit int, window time.Duration, now time.Time) (bool, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.Sub(e.start) > window {
		s.entries[key] = &windowEntry{count: 1, start: now}
		return true, now.Add(window)
	}
	if e.count >= limit {
		return false, e.start.Add(window)
	}
	e.count++
	return true, e.start.Add(window)
}

// Sweep は終了したウィンドウを削除する。
func (s *MemoryWindowStore) Sweep(window time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if now.Sub(e.start) > window {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len は保持しているキーの数を返す。
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// FixedWindowConfig はクライアントアドレス単位のレート制限の設定。
type FixedWindowConfig struct {
	Limit  int           // ウィンドウあたりの最大リクエスト数
	Window time.Duration // ウィンドウの長さ
	Prefix string        // 対象とするパスのプレフィックス
}

// DefaultFixedWindowConfig は /api/ 配下に 30 req/min を適用する設定を返す。
func DefaultFixedWindowConfig() FixedWindowConfig {
	return FixedWindowConfig{
		Limit:  30,
		Window: time.Minute,
		Prefix: "/api/",
	}
}

// FixedWindowLimiter はクライアントアドレス単位の固定ウィンドウレート制限。
type FixedWindowLimiter struct {
	config  FixedWindowConfig
	store   WindowStore
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewFixedWindowLimiter はFixedWindowLimiterを生成する。
func NewFixedWindowLimiter(config FixedWindowConfig, store WindowStore, mc metrics.MetricsCollector) *FixedWindowLimiter {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &FixedWindowLimiter{
		config:  config,
		store:   store,
		metrics: mc,
		now:     time.Now,
	}
}

// Middleware はプレフィックスに一致するパスにレート制限を適用するミドルウェアを返す。
// 上限を超えたリクエストには429 Too Many Requestsを返す。
func (l *FixedWindowLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, l.config.Prefix) {
				next.ServeHTTP(w, r)
				return
			}

			client := ClientAddress(r)
			now := l.now()
			allowed, resetAt := l.store.Take(client, l.config.Limit, l.config.Window, now)
			if !allowed {
				writeRateLimitResponse(w, int(math.Ceil(resetAt.Sub(now).Seconds())))
				l.metrics.RecordRateLimited("client")
				slog.Warn("rate limit exceeded",
					slog.String("client", client),
					slog.String("limit_type", "client"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientAddress はリクエスト元のアドレスを返す。
// X-Forwarded-Forがある場合は先頭の値を使用する。
func ClientAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr := strings.TrimSpace(first); addr != "" {
			return addr
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
