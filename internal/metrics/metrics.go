// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 補完呼び出しの結果ラベル
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 回答生成サービス、ミドルウェア、クリーンアップジョブから利用する。
type MetricsCollector interface {
	RecordCompletion(outcome string)
	RecordCompletionLatency(duration time.Duration)
	RecordRateLimited(scope string)
	RecordHTTPStatus(statusCode int)
	RecordHistoryPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	completions       *prometheus.CounterVec
	completionLatency prometheus.Histogram
	rateLimited       *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
	historyPurged     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localgov_completion_total",
			Help: "補完API呼び出しの結果別合計数",
		}, []string{"outcome"}),
		completionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "localgov_completion_latency_seconds",
			Help:    "補完API呼び出しのレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localgov_rate_limited_total",
			Help: "レート制限で拒否されたリクエスト数",
		}, []string{"scope"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "localgov_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		historyPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "localgov_history_purged_total",
			Help: "保持期間超過で削除された履歴の合計数",
		}),
	}

	reg.MustRegister(
		c.completions,
		c.completionLatency,
		c.rateLimited,
		c.httpStatus,
		c.historyPurged,
	)

	return c
}

// RecordCompletion は補完呼び出しの結果を記録する。
func (c *Collector) RecordCompletion(outcome string) {
	c.completions.WithLabelValues(outcome).Inc()
}

// RecordCompletionLatency は補完呼び出しのレイテンシを記録する。
func (c *Collector) RecordCompletionLatency(duration time.Duration) {
	c.completionLatency.Observe(duration.Seconds())
}

// RecordRateLimited はレート制限による拒否を記録する。scopeは"ip"または"user"。
func (c *Collector) RecordRateLimited(scope string) {
	c.rateLimited.WithLabelValues(scope).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordHistoryPurged は保持期間超過で削除した履歴件数を記録する。
func (c *Collector) RecordHistoryPurged(count int64) {
	c.historyPurged.Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type NopCollector struct{}

func (NopCollector) RecordCompletion(string)               {}
func (NopCollector) RecordCompletionLatency(time.Duration) {}
func (NopCollector) RecordRateLimited(string)              {}
func (NopCollector) RecordHTTPStatus(int)                  {}
func (NopCollector) RecordHistoryPurged(int64)             {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
