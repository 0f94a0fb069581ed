package notification

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer は通知のタイトルと本文からHTMLマークアップを除去する。
// コラボレーターのエラーメッセージがそのまま表示されるため、表示層に渡す前に無害化する。
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer はタグを一切許可しないポリシーでSanitizerを生成する。
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Text はマークアップを除去したプレーンテキストを返す。
// bluemondayがエスケープした実体参照は元の文字に戻す。
func (s *Sanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
