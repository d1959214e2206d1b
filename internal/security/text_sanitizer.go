package security

import "github.com/microcosm-cc/bluemonday"

// TextSanitizerService はテキストの無害化機能のインターフェースを定義する。
// AI講評の応答テキストとリソース説明文の保存前に使用される。
// 表示はプレーンテキストを前提とするため、HTMLタグは一切許可しない。
type TextSanitizerService interface {
	// Sanitize は入力からすべてのHTMLタグを除去したテキストを返す。
	Sanitize(text string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフに動作する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からすべてのHTMLタグを除去したテキストを返す。
func (s *textSanitizer) Sanitize(text string) string {
	return s.policy.Sanitize(text)
}
