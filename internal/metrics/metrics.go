// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とワーカーから利用する。
type MetricsCollector interface {
	RecordFetchSuccess(platform string)
	RecordFetchFailure(platform string)
	RecordVerification(platform string, result string)
	RecordUpstreamLatency(duration time.Duration)
}

// 検証結果ラベルの値。
const (
	VerificationResultSuccess  = "success"
	VerificationResultMismatch = "mismatch"
	VerificationResultError    = "error"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess    *prometheus.CounterVec
	fetchFail       *prometheus.CounterVec
	verification    *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statly_fetch_success_total",
			Help: "プラットフォーム統計取得成功の合計数",
		}, []string{"platform"}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statly_fetch_fail_total",
			Help: "プラットフォーム統計取得失敗の合計数",
		}, []string{"platform"}),
		verification: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statly_verification_total",
			Help: "所有権検証試行の結果別合計数",
		}, []string{"platform", "result"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "statly_upstream_latency_seconds",
			Help:    "上流プラットフォーム呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.verification,
		c.upstreamLatency,
	)

	return c
}

// RecordFetchSuccess は統計取得成功を記録する。
func (c *Collector) RecordFetchSuccess(platform string) {
	c.fetchSuccess.WithLabelValues(platform).Inc()
}

// RecordFetchFailure は統計取得失敗を記録する。
func (c *Collector) RecordFetchFailure(platform string) {
	c.fetchFail.WithLabelValues(platform).Inc()
}

// RecordVerification は所有権検証の試行結果を記録する。
// resultはVerificationResult*定数のいずれか。
func (c *Collector) RecordVerification(platform string, result string) {
	c.verification.WithLabelValues(platform, result).Inc()
}

// RecordUpstreamLatency は上流呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ワーカープロセスのメトリクスポートで使用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
