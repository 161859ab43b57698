// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, todo, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidToken      = "INVALID_TOKEN"
	ErrCodeAuthNotConfigured = "AUTH_NOT_CONFIGURED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidTitle      = "INVALID_TITLE"
	ErrCodeInvalidID         = "INVALID_ID"
	ErrCodeTodoNotFound      = "TODO_NOT_FOUND"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	ErrCodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewTodoNotFoundError はTodo未検出エラーを生成する。
// 他ユーザーのTodoを指定した場合も同じエラーを返し、存在の有無を漏らさない。
func NewTodoNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTodoNotFound,
		Message:  "Todo not found",
		Category: "todo",
		Action:   "Todoの一覧を再読み込みしてください。",
	}
}

// NewInvalidTitleError は無効なタイトルエラーを生成する。
func NewInvalidTitleError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTitle,
		Message:  fmt.Sprintf("Invalid title: %s", reason),
		Category: "validation",
		Action:   fmt.Sprintf("タイトルは1文字以上%d文字以内で入力してください。", TitleMaxLength),
	}
}

// NewInvalidIDError は無効なTodo IDエラーを生成する。
func NewInvalidIDError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("Invalid todo id: %s", raw),
		Category: "validation",
		Action:   "正の整数のIDを指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディの検証エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidTokenError は認証トークン不正エラーを生成する。
// 署名・発行者・有効期限・形式のどれが原因でも同じ内容を返す。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid or expired authentication token",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewAuthNotConfiguredError は認証設定不備エラーを生成する。
func NewAuthNotConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthNotConfigured,
		Message:  "Authentication not properly configured",
		Category: "system",
		Action:   "管理者に連絡してください。",
	}
}

// NewUnauthorizedError は認証情報がコンテキストにない場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewNotFoundError は未定義ルートのエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Not found",
		Category: "system",
		Action:   "URLを確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewMethodNotAllowedError は許可されていないHTTPメソッドのエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  "Method not allowed",
		Category: "system",
		Action:   "HTTPメソッドを確認してください。",
	}
}
