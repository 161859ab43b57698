package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker は依存先の疎通を確認する。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
}

type configResponse struct {
	ExternalAuthURL string `json:"externalAuthUrl"`
}

// SystemHandler はヘルスチェックとクライアント向け設定を返す。
type SystemHandler struct {
	checker         HealthChecker
	externalAuthURL string
}

// NewSystemHandler はSystemHandlerを生成する。checkerがnilの場合はDB疎通を確認しない。
func NewSystemHandler(checker HealthChecker, externalAuthURL string) *SystemHandler {
	return &SystemHandler{
		checker:         checker,
		externalAuthURL: externalAuthURL,
	}
}

// Health はサーバーの稼働状態を返す。DBに到達できない場合は503。
// GET /api/health, GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.checker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := h.checker.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Config はフロントエンドが必要とする公開設定を返す。
// GET /api/config
func (h *SystemHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{ExternalAuthURL: h.externalAuthURL})
}
