package auth

import "fmt"

// ConfigurationError は資格情報が提示されたが検証に必要な設定（JWKS）が無いことを表す。
// クライアント起因ではないため500として扱う。
type ConfigurationError struct {
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *ConfigurationError) Error() string {
	return "authentication not properly configured: " + e.Reason
}

// InvalidCredentialError は署名、発行者、有効期限、クレーム形状のいずれかの検証失敗を表す。
// レスポンスでは原因を区別しない。
type InvalidCredentialError struct {
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *InvalidCredentialError) Error() string {
	return fmt.Sprintf("invalid credential: %v", e.Err)
}

// Unwrap は原因エラーを返す。
func (e *InvalidCredentialError) Unwrap() error {
	return e.Err
}
