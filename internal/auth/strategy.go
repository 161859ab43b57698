package auth

import (
	"context"
	"log/slog"
	"time"
)

// Strategy はベアラートークンを認証する方式。
// 起動時に1度だけ選択され、リクエスト処理中に環境を参照することはない。
type Strategy interface {
	Authenticate(ctx context.Context, token string) (*Claims, error)
}

// RealStrategy はKeyResolverでトークンを検証する。
type RealStrategy struct {
	keys KeyResolver
}

// NewRealStrategy はRealStrategyを生成する。
// keysがnilの場合、トークンはすべてConfigurationErrorになる。
func NewRealStrategy(keys KeyResolver) *RealStrategy {
	return &RealStrategy{keys: keys}
}

// Authenticate はトークンを検証する。
func (s *RealStrategy) Authenticate(ctx context.Context, token string) (*Claims, error) {
	if s.keys == nil {
		return nil, &ConfigurationError{Reason: "bearer token supplied but JWKS_URI, JWT_ISSUER and JWT_AUDIENCE are not configured"}
	}
	return s.keys.Verify(ctx, token)
}

// MockStrategy はモックトークンを受け付け、それ以外をfallbackに委譲する。
// 開発・テスト環境でのみ使用する。
type MockStrategy struct {
	fallback Strategy
	now      func() time.Time
}

// NewMockStrategy はMockStrategyを生成する。
func NewMockStrategy(fallback Strategy) *MockStrategy {
	return &MockStrategy{fallback: fallback, now: time.Now}
}

// Authenticate はモックトークンとして解釈できればそのクレームを返す。
// 期限切れや構造不正のモックトークンもfallbackで検証されるため、
// JWKS未設定の場合はConfigurationErrorになる。
func (s *MockStrategy) Authenticate(ctx context.Context, token string) (*Claims, error) {
	if claims, ok := ParseMockToken(token, s.now()); ok {
		return claims, nil
	}

	if IsMockToken(token) {
		slog.Debug("mock token rejected: expired or malformed; falling through to key resolver")
	}
	return s.fallback.Authenticate(ctx, token)
}

// NewStrategy はモックの有効/無効に応じてStrategyを選択する。
// keysがnilの場合、実トークンの検証はConfigurationErrorになる。
func NewStrategy(mockEnabled bool, keys KeyResolver) Strategy {
	jwtStrategy := NewRealStrategy(keys)
	if mockEnabled {
		return NewMockStrategy(jwtStrategy)
	}
	return jwtStrategy
}
