package provider

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// visibleText はHTMLボディから可視テキストのみを抽出する。
// script・style要素の中身は除外し、テキストノードをスペース区切りで連結する。
// スクレイピング対象ページの正規表現マッチングに使用する。
func visibleText(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	var sb strings.Builder
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")

		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if isInvisibleTag(string(tn)) {
				skipDepth++
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if isInvisibleTag(string(tn)) && skipDepth > 0 {
				skipDepth--
			}

		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tokenizer.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

// isInvisibleTag はテキスト抽出から除外する要素かを判定する。
func isInvisibleTag(tag string) bool {
	switch tag {
	case "script", "style", "noscript":
		return true
	}
	return false
}

// firstMatchedCount はパターンを順に試し、最初に妥当域に収まった数値を返す。
// 妥当域は min < n < max（両端排他）。どのパターンも一致しない、
// または一致した数値が妥当域外の場合は (0, false) を返す。
// スクレイピング結果は表示文言の変化で壊れやすいため、
// パターンの順序は確度の高いものから並べること。
func firstMatchedCount(text string, patterns []*regexp.Regexp, min, max int) (int, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > min && n < max {
			return n, true
		}
	}
	return 0, false
}

// digitsOnly は文字列から数字以外を除去して整数化する。
// 数字が1つも含まれない場合は0を返す。
// 「1234?」のような装飾付きの表示値からレーティングを取り出すのに使う。
func digitsOnly(s string) int {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(sb.String())
	if err != nil {
		return 0
	}
	return n
}

// firstNumber は文字列中の最初の連続した数字列を整数として返す。
var firstNumberPattern = regexp.MustCompile(`\d+`)

func firstNumber(s string) (int, bool) {
	m := firstNumberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
