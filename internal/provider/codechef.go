package provider

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hitoshi/statly/internal/model"
	"github.com/hitoshi/statly/internal/security"
)

// defaultCodeChefProfileBase はユーザープロフィールページのベースURL。
const defaultCodeChefProfileBase = "https://www.codechef.com/users"

// codeChefProblemPatterns は解答済み問題数を抽出するパターン群。
// DOM構造の変化に備えてページ全文の可視テキストに対して順に試す。
// 確度の高いものから並べてある。
var codeChefProblemPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)solved[:\s]*(\d+)`),
	regexp.MustCompile(`(?i)(\d+)\s*problems?\s*solved`),
	regexp.MustCompile(`(?i)(\d+)\s*solved`),
}

// codeChefContestPattern はコンテスト参加数を抽出するパターン。
var codeChefContestPattern = regexp.MustCompile(`(?i)(\d+)\s*contests?\s*(?:attended|participated)`)

// codeChefNameSelectors は表示名を探すセレクタ候補。
// 確度の高いものから順に試す。
var codeChefNameSelectors = []string{
	".user-details-container h1",
	".user-details h1",
	"h1",
}

// CodeChefAdapter はCodeChef公開プロフィールページのスクレイピングアダプタ。
// CodeChefには公開統計APIがないため、プロフィールHTMLから
// セレクタとテキストパターンで統計を抽出する。
type CodeChefAdapter struct {
	httpClient *http.Client
	logger     *slog.Logger
	guard      URLValidator
	sanitizer  security.ProfileSanitizerService
	userAgent  string

	// テスト用にエンドポイントを差し替え可能
	profileBase string
}

// NewCodeChefAdapter はCodeChefAdapterの新しいインスタンスを生成する。
// userAgentにはブラウザ相当のUser-Agentを渡すこと。
// デフォルトのUAではCodeChefがHTMLを返さない場合がある。
func NewCodeChefAdapter(httpClient *http.Client, logger *slog.Logger, guard URLValidator, sanitizer security.ProfileSanitizerService, userAgent string) *CodeChefAdapter {
	return &CodeChefAdapter{
		httpClient:  httpClient,
		logger:      logger,
		guard:       guard,
		sanitizer:   sanitizer,
		userAgent:   userAgent,
		profileBase: defaultCodeChefProfileBase,
	}
}

// PlatformID はcodechefを返す。
func (a *CodeChefAdapter) PlatformID() model.PlatformID {
	return model.PlatformCodeChef
}

// FetchStats はプロフィールページからレーティング・解答数・コンテスト数を抽出する。
// レーティングは .rating-number 要素の数字部分。解答数はページ可視テキストへの
// パターンマッチで、0 < n < 10000 の妥当域に収まる最初の候補を採用する
// （問題IDやタイムスタンプ由来の巨大な数値の誤検出を防ぐ）。
// 抽出できなかったフィールドは0のまま返し、エラーにしない。
func (a *CodeChefAdapter) FetchStats(ctx context.Context, username string) (*RawStats, error) {
	body, err := a.fetchProfile(ctx, username)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, model.NewUpstreamError(string(model.PlatformCodeChef),
			fmt.Sprintf("プロフィールHTMLのパースに失敗しました: %v", err))
	}

	stats := &RawStats{
		Rating: digitsOnly(doc.Find(".rating-number").First().Text()),
	}

	pageText := visibleText(body)
	if n, ok := firstMatchedCount(pageText, codeChefProblemPatterns, 0, 10000); ok {
		stats.ProblemsSolved = n
	}
	if m := codeChefContestPattern.FindStringSubmatch(pageText); m != nil {
		if n, ok := firstNumber(m[1]); ok {
			stats.ContestsAttended = n
		}
	}

	return stats, nil
}

// CheckOwnership はプロフィールの表示名に検証コードが含まれるかを確認する。
// 表示名の位置はページ改修で変わりやすいため、セレクタ候補を順に試す。
func (a *CodeChefAdapter) CheckOwnership(ctx context.Context, username string, code string) (bool, error) {
	body, err := a.fetchProfile(ctx, username)
	if err != nil {
		return false, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false, model.NewUpstreamError(string(model.PlatformCodeChef),
			fmt.Sprintf("プロフィールHTMLのパースに失敗しました: %v", err))
	}

	for _, selector := range codeChefNameSelectors {
		name := a.sanitizer.Plain(strings.TrimSpace(doc.Find(selector).First().Text()))
		if name != "" && strings.Contains(name, code) {
			return true, nil
		}
	}
	return false, nil
}

// fetchProfile はプロフィールページのHTMLを取得する。
func (a *CodeChefAdapter) fetchProfile(ctx context.Context, username string) ([]byte, error) {
	profileURL := fmt.Sprintf("%s/%s", a.profileBase, url.PathEscape(username))
	body, err := getBody(ctx, a.httpClient, a.guard, profileURL, a.userAgent, "text/html")
	if err != nil {
		a.logger.Error("CodeChefプロフィールページの取得に失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError(string(model.PlatformCodeChef), err.Error())
	}
	return body, nil
}
