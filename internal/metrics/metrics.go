// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やミドルウェアから利用する。
type MetricsCollector interface {
	RecordUserCreated()
	RecordUserUpdated()
	RecordDuplicateRejected(field string)
	RecordMigrationsApplied(count int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	usersCreated      prometheus.Counter
	usersUpdated      prometheus.Counter
	duplicateRejected *prometheus.CounterVec
	migrationsApplied prometheus.Counter
	httpStatus        *prometheus.CounterVec
	requestLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userbase_users_created_total",
			Help: "作成されたユーザーの合計数",
		}),
		usersUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userbase_users_updated_total",
			Help: "部分更新に成功したユーザーの合計数",
		}),
		duplicateRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userbase_duplicate_rejected_total",
			Help: "重複により拒否された作成・更新の数（フィールド別）",
		}, []string{"field"}),
		migrationsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userbase_migrations_applied_total",
			Help: "適用されたマイグレーションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userbase_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "userbase_request_latency_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.usersCreated,
		c.usersUpdated,
		c.duplicateRejected,
		c.migrationsApplied,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordUserCreated はユーザー作成を記録する。
func (c *Collector) RecordUserCreated() {
	c.usersCreated.Inc()
}

// RecordUserUpdated はユーザー更新を記録する。
func (c *Collector) RecordUserUpdated() {
	c.usersUpdated.Inc()
}

// RecordDuplicateRejected は重複による拒否をフィールド別に記録する。
func (c *Collector) RecordDuplicateRejected(field string) {
	c.duplicateRejected.WithLabelValues(field).Inc()
}

// RecordMigrationsApplied は適用したマイグレーション数を記録する。
func (c *Collector) RecordMigrationsApplied(count int) {
	c.migrationsApplied.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordUserCreated() {}
func (NopCollector) RecordUserUpdated() {}
func (NopCollector) RecordDuplicateRejected(string) {}
func (NopCollector) RecordMigrationsApplied(int) {}
func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) RecordRequestLatency(time.Duration) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
