package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// unmatchedRoute はルートに一致しなかったリクエストのラベル。
const unmatchedRoute = "unmatched"

// HTTPMetricsRecorder はHTTPレスポンスのメトリクスを記録する。
// metrics.Collectorが満たす。
type HTTPMetricsRecorder interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(route string, duration time.Duration)
}

// NewMetricsMiddleware はステータスコードとルート別の処理時間を記録するミドルウェアを返す。
// ラベルにはchiのルートパターン（例: /api/todos/{id}）を使い、実パスは使わない。
func NewMetricsMiddleware(recorder HTTPMetricsRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			recorder.RecordHTTPStatus(rec.statusCode)
			recorder.RecordRequestLatency(route, time.Since(start))
		})
	}
}
