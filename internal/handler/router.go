package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shnkreddy98/bootstrap/internal/middleware"
	"github.com/shnkreddy98/bootstrap/internal/model"
)

// Metrics はルーターが記録するメトリクス。metrics.Collectorが満たす。
type Metrics interface {
	middleware.HTTPMetricsRecorder
	TodoOperationRecorder
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	HSTS              bool

	// メトリクス（nilの場合は記録しない）
	Metrics        Metrics
	MetricsHandler http.Handler

	// Todo
	TodoService TodoServiceInterface

	// システム
	HealthChecker   HealthChecker
	ExternalAuthURL string
	StaticDir       string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//
// /api/health と /api/config を除く /api/* はさらに Auth → RateLimit(General) を通る。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var todoRecorder TodoOperationRecorder
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
		todoRecorder = deps.Metrics
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{HSTS: deps.HSTS}))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	systemHandler := NewSystemHandler(deps.HealthChecker, deps.ExternalAuthURL)
	userHandler := NewUserHandler()
	todoHandler := NewTodoHandler(deps.TodoService, todoRecorder)

	// --- 認証不要のルート ---
	r.Get("/health", systemHandler.Health)
	r.Get("/api/health", systemHandler.Health)
	r.Get("/api/config", systemHandler.Config)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- ユーザー解決が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/me", userHandler.Me)

		r.Route("/api/todos", func(r chi.Router) {
			r.Get("/", todoHandler.ListTodos)
			// POST /api/todos - 作成専用レート制限を追加
			r.With(deps.RateLimiter.CreateMiddleware()).Post("/", todoHandler.CreateTodo)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", todoHandler.UpdateTodo)
				r.Delete("/", todoHandler.DeleteTodo)
			})
		})
	})

	// SPA配信（未定義のルートはすべてここに来る）
	spa := NewSPAHandler(deps.StaticDir)
	r.NotFound(spa.ServeHTTP)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError())
	})

	return r
}
