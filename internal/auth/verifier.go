package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// KeyResolver はベアラートークンを検証してクレームを返す。
// 検証失敗時は*InvalidCredentialErrorを返す。
type KeyResolver interface {
	Verify(ctx context.Context, raw string) (*Claims, error)
}

// OIDCConfig はOIDCVerifierの設定。
type OIDCConfig struct {
	JWKSURI  string
	Issuer   string // 空の場合は発行者を検証しない
	Audience string // 空の場合はaudを検証しない

	// HTTPClient はJWKS取得に使うクライアント。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client
	// Now は時刻取得関数。nilの場合はtime.Now。
	Now func() time.Time
}

// OIDCVerifier はリモートJWKSで署名を検証するKeyResolver。
// 鍵セットはプロセス内でキャッシュされ、未知のkidを受け取った時に再取得される。
type OIDCVerifier struct {
	verifier  *oidc.IDTokenVerifier
	validator *jwt.Validator
}

// NewOIDCVerifier はOIDCVerifierを生成する。
// ctxはJWKS取得に使われるため、サーバーの生存期間と同じコンテキストを渡すこと。
func NewOIDCVerifier(ctx context.Context, cfg OIDCConfig) (*OIDCVerifier, error) {
	if cfg.JWKSURI == "" {
		return nil, &ConfigurationError{Reason: "JWKS_URI is not set"}
	}

	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	keySet := oidc.NewRemoteKeySet(ctx, cfg.JWKSURI)
	verifier := oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{
		ClientID:          cfg.Audience,
		SkipClientIDCheck: cfg.Audience == "",
		SkipIssuerCheck:   cfg.Issuer == "",
		// expは任意クレームのため、存在する場合のみvalidatorで検証する
		SkipExpiryCheck: true,
		SupportedSigningAlgs: []string{
			oidc.RS256, oidc.RS384, oidc.RS512,
			oidc.ES256, oidc.ES384, oidc.ES512,
			oidc.PS256, oidc.PS384, oidc.PS512,
		},
		Now: now,
	})

	return &OIDCVerifier{
		verifier:  verifier,
		validator: jwt.NewValidator(jwt.WithTimeFunc(now)),
	}, nil
}

// Verify は署名、発行者、audience、有効期限を検証し、クレームの形状をスキーマで検証する。
func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	tok, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, &InvalidCredentialError{Err: fmt.Errorf("token verification failed: %w", err)}
	}

	var payload json.RawMessage
	if err := tok.Claims(&payload); err != nil {
		return nil, &InvalidCredentialError{Err: fmt.Errorf("failed to read claims: %w", err)}
	}

	claims, err := decodeClaims(payload)
	if err != nil {
		return nil, &InvalidCredentialError{Err: err}
	}

	if err := v.validator.Validate(claims); err != nil {
		return nil, &InvalidCredentialError{Err: err}
	}

	return claims, nil
}

// IsConfigurationError はerrがConfigurationErrorかどうかを返す。
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsInvalidCredentialError はerrがInvalidCredentialErrorかどうかを返す。
func IsInvalidCredentialError(err error) bool {
	var credErr *InvalidCredentialError
	return errors.As(err, &credErr)
}

// compile-time interface check
var _ KeyResolver = (*OIDCVerifier)(nil)
