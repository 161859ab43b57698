// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TitleSanitizer はユーザー入力のTodoタイトルからHTMLを除去する。
// bluemondayのStrictPolicyですべてのタグを落とし、テキストのみを残す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TitleSanitizer はプレーンテキスト入力のサニタイズ機能のインターフェース。
type TitleSanitizer interface {
	// Sanitize はタグを除去し前後の空白を取り除いたテキストを返す。
	// script、styleなどの要素は内容ごと除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// titleSanitizer はTitleSanitizerの実装。
// bluemondayのポリシーはスレッドセーフ。
type titleSanitizer struct {
	policy *bluemonday.Policy
}

// NewTitleSanitizer はTitleSanitizerを生成する。
func NewTitleSanitizer() TitleSanitizer {
	return &titleSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses はエンティティの多重エンコードを剥がす最大回数。
const maxSanitizePasses = 8

// Sanitize はタグを除去したテキストを返す。
// StrictPolicyはテキストをHTMLエスケープして返すため、保存前に元の文字へ戻す。
// 戻した結果にエンティティで隠れていたタグが現れることがあるため、
// 出力が変化しなくなるまでポリシーの適用と復元を繰り返す。
// 上限までに収束しない場合はエスケープされたままのテキストを返す。
func (s *titleSanitizer) Sanitize(raw string) string {
	current := raw
	for i := 0; i < maxSanitizePasses; i++ {
		cleaned := s.policy.Sanitize(current)
		next := strings.TrimSpace(html.UnescapeString(cleaned))
		if next == current {
			return next
		}
		current = next
	}
	return strings.TrimSpace(s.policy.Sanitize(current))
}
