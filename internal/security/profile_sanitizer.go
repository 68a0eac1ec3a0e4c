// Package security はアウトバウンドHTTPの安全性機能を提供する。
//
// ProfileSanitizerService は外部プラットフォームから取得したプロフィール文字列
// （自己紹介・表示名・所属など）からマークアップを除去してプレーンテキスト化する。
// スクレイピング由来の文字列は信頼できないため、パターンマッチングや
// DB保存の前に必ず通す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizerService はプロフィール文字列のサニタイズ機能のインターフェースを定義する。
type ProfileSanitizerService interface {
	// Plain はHTMLタグを全て除去し、実体参照をデコードした
	// プレーンテキストを返す。連続する空白は1つに圧縮される。
	// 空文字列の入力には空文字列を返す。冪等。
	Plain(raw string) string
}

// profileSanitizer はProfileSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに動作する。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerServiceの新しいインスタンスを生成する。
func NewProfileSanitizer() *profileSanitizer {
	return &profileSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Plain はHTMLタグを全て除去したプレーンテキストを返す。
// StrictPolicyはタグ除去後に実体参照をエスケープしたまま残すため、
// html.UnescapeStringで可読テキストに戻す。
func (s *profileSanitizer) Plain(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	unescaped := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(unescaped), " ")
}
