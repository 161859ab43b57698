package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shnkreddy98/bootstrap/internal/auth"
	"github.com/shnkreddy98/bootstrap/internal/model"
)

// Authenticator はリクエストからユーザーを解決する。
// auth.Resolverが満たす。
type Authenticator interface {
	Resolve(ctx context.Context, r *http.Request) (*auth.Resolution, error)
}

// NewAuthMiddleware はリクエストごとにユーザーを解決し、コンテキストに注入するミドルウェアを返す。
// 匿名Cookieの払い出しが必要な場合はSet-Cookieを付与する。
// 設定不備は500、トークン不正は401を返し、後続のハンドラーは呼ばない。
func NewAuthMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := authenticator.Resolve(r.Context(), r)
			if err != nil {
				writeAuthError(w, r, err)
				return
			}

			ctx := ContextWithUser(r.Context(), res.User)
			if res.Cookie != nil {
				http.SetCookie(w, res.Cookie)
				ctx = contextWithFreshIdentity(ctx)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError は認証エラーを種類に応じたレスポンスに変換する。
// レスポンスでは原因を区別せず、詳細はログにのみ残す。
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var cfgErr *auth.ConfigurationError
	var credErr *auth.InvalidCredentialError

	switch {
	case errors.As(err, &cfgErr):
		slog.Error("bearer token supplied but authentication is not configured",
			slog.String("path", r.URL.Path),
			slog.String("reason", cfgErr.Reason),
		)
		WriteErrorResponse(w, http.StatusInternalServerError, model.NewAuthNotConfiguredError())
	case errors.As(err, &credErr):
		slog.Warn("authentication failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
	default:
		slog.Error("failed to resolve user",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		WriteInternalServerError(w)
	}
}
