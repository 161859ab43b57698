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
// 認証、ストア、ミドルウェア、ハンドラーから利用する。
type MetricsCollector interface {
	RecordAuthResolution(method, outcome string)
	RecordRowValidationFailure(schemaName string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(route string, duration time.Duration)
	RecordTodoOperation(operation string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authResolutions   *prometheus.CounterVec
	rowValidationFail *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
	todoOperations    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bootstrap_auth_resolutions_total",
			Help: "認証経路と結果別のユーザー解決数",
		}, []string{"method", "outcome"}),
		rowValidationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bootstrap_row_validation_failures_total",
			Help: "スキーマ検証に失敗したDB行の数",
		}, []string{"schema"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bootstrap_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bootstrap_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		todoOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bootstrap_todo_operations_total",
			Help: "成功したTodo操作の数",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.authResolutions,
		c.rowValidationFail,
		c.httpStatus,
		c.requestLatency,
		c.todoOperations,
	)

	return c
}

// RecordAuthResolution は認証結果を記録する。
func (c *Collector) RecordAuthResolution(method, outcome string) {
	c.authResolutions.WithLabelValues(method, outcome).Inc()
}

// RecordRowValidationFailure はDB行の検証失敗を記録する。
func (c *Collector) RecordRowValidationFailure(schemaName string) {
	c.rowValidationFail.WithLabelValues(schemaName).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はルート別の処理時間を記録する。
// routeにはパスではなくルートパターンを渡すこと（ラベルの爆発を防ぐ）。
func (c *Collector) RecordRequestLatency(route string, duration time.Duration) {
	c.requestLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordTodoOperation はTodo操作（create, update, delete）を記録する。
func (c *Collector) RecordTodoOperation(operation string) {
	c.todoOperations.WithLabelValues(operation).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
