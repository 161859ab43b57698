// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/shnkreddy98/bootstrap/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userContextKey はリクエストコンテキストに解決済みユーザーを格納するためのキー。
	userContextKey = contextKey("user")
	// requestLogContextKey はロギングミドルウェアが参照する可変のリクエスト情報のキー。
	requestLogContextKey = contextKey("request_log")
	// freshIdentityContextKey はこのリクエストで匿名IDを払い出したことを示すキー。
	freshIdentityContextKey = contextKey("fresh_identity")
)

// contextWithFreshIdentity は匿名IDを新規に払い出したリクエストであることを記録する。
func contextWithFreshIdentity(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshIdentityContextKey, true)
}

// isFreshIdentity はこのリクエストで匿名IDが払い出されたかどうかを返す。
func isFreshIdentity(ctx context.Context) bool {
	fresh, _ := ctx.Value(freshIdentityContextKey).(bool)
	return fresh
}

// requestLog はロギングミドルウェアより内側のミドルウェアが書き込む情報。
// 認証はロギングより内側で行われるため、ポインタ経由でユーザーIDを受け渡す。
type requestLog struct {
	userID string
}

// ContextWithUser はコンテキストにユーザーを注入する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	if rl, ok := ctx.Value(requestLogContextKey).(*requestLog); ok {
		rl.userID = user.ID
	}
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext はリクエストコンテキストからユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil || user.ID == "" {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, err := UserFromContext(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// ContextWithUserID はIDのみを持つ匿名ユーザーをコンテキストに注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithUser(ctx, &model.User{ID: userID})
}
