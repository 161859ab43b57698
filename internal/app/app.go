// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shnkreddy98/bootstrap/internal/auth"
	"github.com/shnkreddy98/bootstrap/internal/config"
	"github.com/shnkreddy98/bootstrap/internal/database"
	"github.com/shnkreddy98/bootstrap/internal/handler"
	"github.com/shnkreddy98/bootstrap/internal/logger"
	"github.com/shnkreddy98/bootstrap/internal/metrics"
	"github.com/shnkreddy98/bootstrap/internal/middleware"
	"github.com/shnkreddy98/bootstrap/internal/repository"
	"github.com/shnkreddy98/bootstrap/internal/security"
	"github.com/shnkreddy98/bootstrap/internal/store"
	"github.com/shnkreddy98/bootstrap/internal/todo"
	"github.com/shnkreddy98/bootstrap/internal/worker/cleanup"
)

// defaultHealthcheckPort はSERVER_PORT未設定時のヘルスチェック先ポート。
const defaultHealthcheckPort = "3000"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを再設定する
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	logger.SetupDefault(w, level)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// 軽量サブコマンドはフル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = defaultHealthcheckPort
		}
		return runHealthcheck(port)
	case CommandTokens:
		return printMockTokens(w, time.Now())
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("env", cfg.AppEnv),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(w, cfg, args[1:])
	case CommandPrune:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runPrune(ctx, cfg)
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: database.DefaultPoolConfig().ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. 依存関係の構築
	router, cleanup, err := buildRouter(ctx, cfg, db, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer cleanup()

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildRouter はリポジトリ、認証、サービス、メトリクスを組み立ててルーターを返す。
// 返されるcleanupはバックグラウンド処理を停止する。
func buildRouter(ctx context.Context, cfg *config.Config, db *sql.DB, reg *prometheus.Registry) (http.Handler, func(), error) {
	// メトリクス
	collector := metrics.NewCollector(reg)

	// 検証付きストアとリポジトリ
	validated := store.New(db, store.WithValidationObserver(collector.RecordRowValidationFailure))
	userRepo := repository.NewPostgresUserRepo(validated)
	todoRepo := repository.NewPostgresTodoRepo(validated)

	// 認証
	keys, err := newKeyResolver(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	strategy := auth.NewStrategy(cfg.MockAuthEnabled(), keys)
	resolver := auth.NewResolver(strategy, userRepo, auth.ResolverConfig{
		CookieSecure: cfg.CookieSecure(),
		Recorder:     collector,
	})

	if cfg.MockAuthEnabled() {
		logMockTokens(time.Now())
	}

	// ドメインサービス
	todoService := todo.NewService(todoRepo, security.NewTitleSanitizer())

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitCreate))

	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:     resolver,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		HSTS:              cfg.IsProduction(),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		TodoService:       todoService,
		HealthChecker:     db,
		ExternalAuthURL:   cfg.ExternalAuthURL,
		StaticDir:         cfg.StaticDir,
	})

	return router, rateLimiter.Stop, nil
}

// newKeyResolver はJWKS_URIが設定されていればOIDCVerifierを返す。
// 未設定の場合はnilを返し、実トークンはすべてConfigurationErrorになる。
func newKeyResolver(ctx context.Context, cfg *config.Config) (auth.KeyResolver, error) {
	if !cfg.JWTConfigured() {
		if cfg.IsProduction() {
			slog.Error("JWKS_URI is not set; bearer tokens will be rejected with 500",
				slog.String("hint", "set JWKS_URI, JWT_ISSUER and JWT_AUDIENCE"),
			)
		} else {
			slog.Warn("JWKS_URI is not set; only mock tokens and anonymous cookies are accepted")
		}
		return nil, nil
	}

	client, err := security.NewJWKSClient(cfg.JWKSURI, security.JWKSClientConfig{
		Timeout:        10 * time.Second,
		RestrictEgress: cfg.RestrictJWKSEgress(),
	})
	if err != nil {
		return nil, fmt.Errorf("refusing JWKS_URI: %w", err)
	}

	verifier, err := auth.NewOIDCVerifier(ctx, auth.OIDCConfig{
		JWKSURI:    cfg.JWKSURI,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		HTTPClient: client,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure token verifier: %w", err)
	}

	slog.Info("token verification configured",
		slog.String("jwks_uri", cfg.JWKSURI),
		slog.Bool("issuer_check", cfg.JWTIssuer != ""),
		slog.Bool("audience_check", cfg.JWTAudience != ""),
	)
	return verifier, nil
}

// logMockTokens は開発用のモックトークンを起動時に1度だけログに出力する。
func logMockTokens(now time.Time) {
	slog.Warn("mock authentication is enabled; do not use in production")
	for _, mt := range auth.AllMockTokens(now) {
		slog.Info("mock token", slog.String("name", mt.Name), slog.String("token", mt.Token))
	}
}

// printMockTokens はモックトークンを "名前: トークン" 形式で出力する。
func printMockTokens(w io.Writer, now time.Time) error {
	if w == nil {
		w = os.Stdout
	}
	for _, mt := range auth.AllMockTokens(now) {
		if _, err := fmt.Fprintf(w, "%s: %s\n", mt.Name, mt.Token); err != nil {
			return fmt.Errorf("failed to write tokens: %w", err)
		}
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(w io.Writer, cfg *config.Config, args []string) error {
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
		status, err := database.CurrentMigrationStatus(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}
		latest, err := database.LatestMigrationVersion()
		if err != nil {
			return err
		}
		if w == nil {
			w = os.Stdout
		}
		fmt.Fprintf(w, "version=%d dirty=%t applied=%t latest=%d\n", status.Version, status.Dirty, status.Applied, latest)
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
	}

	return nil
}

// runPrune は保持期間を過ぎた匿名ユーザーを1回だけ削除する。
func runPrune(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return pruneAnonymousUsers(ctx, db, cfg.AnonymousRetentionDays)
}

func pruneAnonymousUsers(ctx context.Context, db cleanup.Executor, retentionDays int) error {
	job := cleanup.NewAnonymousUserJob(db, slog.Default())
	job.RetentionDays = retentionDays
	if _, err := job.Run(ctx); err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
