package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/shnkreddy98/bootstrap/internal/model"
)

const (
	// AnonymousCookieName は匿名ユーザーIDを保持するCookie名。
	AnonymousCookieName = "anonymous_user_id"
	// AnonymousCookieMaxAge は匿名Cookieの有効期間（秒、1年）。
	AnonymousCookieMaxAge = 60 * 60 * 24 * 365

	bearerPrefix = "Bearer "
)

// 認証経路と結果のラベル
const (
	MethodCookie = "cookie"
	MethodBearer = "bearer"

	OutcomeSuccess       = "success"
	OutcomeNewIdentity   = "new_identity"
	OutcomeInvalid       = "invalid"
	OutcomeMisconfigured = "misconfigured"
	OutcomeStoreError    = "store_error"
)

// UserUpserter は解決したユーザーを永続化する。
type UserUpserter interface {
	Upsert(ctx context.Context, user *model.User) error
}

// ResolutionRecorder は認証結果を記録する。
type ResolutionRecorder interface {
	RecordAuthResolution(method, outcome string)
}

// ResolverConfig はResolverの設定。
type ResolverConfig struct {
	// CookieSecure は匿名CookieにSecure属性を付けるかどうか。本番環境でのみtrue。
	CookieSecure bool
	// Recorder は認証結果の記録先。nilの場合は記録しない。
	Recorder ResolutionRecorder
}

// Resolution は解決結果。
// Cookieがnilでない場合、レスポンスにSet-Cookieとして書き込む必要がある。
type Resolution struct {
	User   *model.User
	Cookie *http.Cookie
}

// Resolver はリクエストからユーザーを解決し、永続化する。
type Resolver struct {
	strategy Strategy
	users    UserUpserter
	config   ResolverConfig
	newID    func() string
}

// NewResolver はResolverを生成する。
func NewResolver(strategy Strategy, users UserUpserter, config ResolverConfig) *Resolver {
	return &Resolver{
		strategy: strategy,
		users:    users,
		config:   config,
		newID:    uuid.NewString,
	}
}

// Resolve はリクエストの資格情報からユーザーを解決する。
//
// ベアラートークンが無い場合は匿名Cookieを使い、Cookieも無ければ新しいIDを払い出す。
// この経路は認証エラーにならない。
// ベアラートークンがある場合はStrategyで検証し、
// *ConfigurationError または *InvalidCredentialError を返すことがある。
// 解決に成功した場合は必ず1回だけUpsertを行い、その失敗はエラーとして返す。
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Resolution, error) {
	header := req.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return r.resolveAnonymous(ctx, req)
	}

	token := strings.TrimPrefix(header, bearerPrefix)
	claims, err := r.strategy.Authenticate(ctx, token)
	if err != nil {
		if IsConfigurationError(err) {
			r.record(MethodBearer, OutcomeMisconfigured)
		} else {
			r.record(MethodBearer, OutcomeInvalid)
		}
		return nil, err
	}

	user := claims.User()
	if err := r.users.Upsert(ctx, user); err != nil {
		r.record(MethodBearer, OutcomeStoreError)
		return nil, fmt.Errorf("failed to persist user %s: %w", user.ID, err)
	}

	r.record(MethodBearer, OutcomeSuccess)
	return &Resolution{User: user}, nil
}

func (r *Resolver) resolveAnonymous(ctx context.Context, req *http.Request) (*Resolution, error) {
	var cookie *http.Cookie
	outcome := OutcomeSuccess

	id := ""
	if c, err := req.Cookie(AnonymousCookieName); err == nil {
		id = c.Value
	}
	if id == "" {
		id = r.newID()
		cookie = r.anonymousCookie(id)
		outcome = OutcomeNewIdentity
		slog.Debug("issued anonymous identity", slog.String("user_id", id))
	}

	user := &model.User{ID: id}
	if err := r.users.Upsert(ctx, user); err != nil {
		r.record(MethodCookie, OutcomeStoreError)
		return nil, fmt.Errorf("failed to persist anonymous user %s: %w", id, err)
	}

	r.record(MethodCookie, outcome)
	return &Resolution{User: user, Cookie: cookie}, nil
}

func (r *Resolver) anonymousCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     AnonymousCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   AnonymousCookieMaxAge,
		HttpOnly: true,
		Secure:   r.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (r *Resolver) record(method, outcome string) {
	if r.config.Recorder != nil {
		r.config.Recorder.RecordAuthResolution(method, outcome)
	}
}
