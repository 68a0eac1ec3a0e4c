package provider

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hitoshi/statly/internal/model"
	"github.com/hitoshi/statly/internal/security"
)

// defaultGeeksforGeeksUserBase はユーザーページのベースURL。
const defaultGeeksforGeeksUserBase = "https://auth.geeksforgeeks.org/user"

// gfgSolvedTabSelector は練習ページのタブリンク群のセレクタ。
// 先頭タブのラベルに合計解答数が含まれる。
const gfgSolvedTabSelector = ".tabs.tabs-fixed-width.links a"

// gfgProfileNameSelector は表示名のセレクタ。
const gfgProfileNameSelector = ".profile_name"

// GeeksforGeeksAdapter はGeeksforGeeks練習ページのスクレイピングアダプタ。
// 公開統計APIがないため、練習ページのタブラベルから解答数を抽出する。
type GeeksforGeeksAdapter struct {
	httpClient *http.Client
	logger     *slog.Logger
	guard      URLValidator
	sanitizer  security.ProfileSanitizerService
	userAgent  string

	// テスト用にエンドポイントを差し替え可能
	userBase string
}

// NewGeeksforGeeksAdapter はGeeksforGeeksAdapterの新しいインスタンスを生成する。
func NewGeeksforGeeksAdapter(httpClient *http.Client, logger *slog.Logger, guard URLValidator, sanitizer security.ProfileSanitizerService, userAgent string) *GeeksforGeeksAdapter {
	return &GeeksforGeeksAdapter{
		httpClient: httpClient,
		logger:     logger,
		guard:      guard,
		sanitizer:  sanitizer,
		userAgent:  userAgent,
		userBase:   defaultGeeksforGeeksUserBase,
	}
}

// PlatformID はgeeksforgeeksを返す。
func (a *GeeksforGeeksAdapter) PlatformID() model.PlatformID {
	return model.PlatformGeeksforGeeks
}

// FetchStats は練習ページの先頭タブラベルから合計解答数を抽出する。
// タブ要素自体が見つからない場合はページ構造が想定と異なる
// （プロフィールが存在しない等）ため上流エラーとする。
// タブはあるがラベルに数字がない場合は0とする。
func (a *GeeksforGeeksAdapter) FetchStats(ctx context.Context, username string) (*RawStats, error) {
	doc, err := a.fetchPracticePage(ctx, username)
	if err != nil {
		return nil, err
	}

	tabs := doc.Find(gfgSolvedTabSelector)
	if tabs.Length() == 0 {
		return nil, model.NewUpstreamError(string(model.PlatformGeeksforGeeks),
			fmt.Sprintf("練習ページの統計タブが見つかりません: %s", username))
	}

	stats := &RawStats{}
	if n, ok := firstNumber(tabs.First().Text()); ok {
		stats.ProblemsSolved = n
	}
	return stats, nil
}

// CheckOwnership は表示名に検証コードが含まれるかを確認する。
// 表示名要素が存在しない場合は未検出として (false, nil) を返す。
func (a *GeeksforGeeksAdapter) CheckOwnership(ctx context.Context, username string, code string) (bool, error) {
	doc, err := a.fetchPracticePage(ctx, username)
	if err != nil {
		return false, err
	}

	displayName := a.sanitizer.Plain(strings.TrimSpace(doc.Find(gfgProfileNameSelector).Text()))
	return strings.Contains(displayName, code), nil
}

// fetchPracticePage は練習ページを取得してパース済みドキュメントを返す。
func (a *GeeksforGeeksAdapter) fetchPracticePage(ctx context.Context, username string) (*goquery.Document, error) {
	pageURL := fmt.Sprintf("%s/%s/practice", a.userBase, url.PathEscape(username))
	body, err := getBody(ctx, a.httpClient, a.guard, pageURL, a.userAgent, "text/html")
	if err != nil {
		a.logger.Error("GeeksforGeeks練習ページの取得に失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError(string(model.PlatformGeeksforGeeks), err.Error())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, model.NewUpstreamError(string(model.PlatformGeeksforGeeks),
			fmt.Sprintf("練習ページHTMLのパースに失敗しました: %v", err))
	}
	return doc, nil
}
