// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService は補完APIの回答テキストからHTMLを除去し、
// 保存・表示しても安全なプレーンテキストに変換する。
// bluemondayのStrictPolicyを使用し、全てのタグと属性を取り除く。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキスト化のインターフェースを定義する。
// ブックマーク保存前と回答表示前に使用される。
type TextSanitizerService interface {
	// Sanitize は入力から全てのHTML要素を除去したテキストを返す。
	// script/styleの中身は破棄され、それ以外の要素はテキストのみ残る。
	// HTMLエンティティは元の文字に戻すため、出力はエスケープ前のテキストとなる。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLを除去したプレーンテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	// 回答中の "<" を含む比較表現（例: "< 50 ft"）は文字として残る
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
