package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/statly/internal/model"
	"github.com/mmcdole/gofeed"
)

const (
	// defaultGitHubAPIBase はGitHub REST APIのベースURL。
	defaultGitHubAPIBase = "https://api.github.com"
	// defaultGitHubFeedBase は公開アクティビティAtomフィードのベースURL。
	defaultGitHubFeedBase = "https://github.com"
)

// GitHubAdapter はGitHub REST APIと公開アクティビティAtomフィードのアダプタ。
// リポジトリ数・フォロワー数はユーザーAPIから、スター合計はリポジトリ一覧から、
// 直近アクティビティ数はAtomフィードから取得する。
type GitHubAdapter struct {
	httpClient *http.Client
	logger     *slog.Logger
	guard      URLValidator
	userAgent  string
	feedParser *gofeed.Parser

	// テスト用にエンドポイントを差し替え可能
	apiBase  string
	feedBase string
}

// NewGitHubAdapter はGitHubAdapterの新しいインスタンスを生成する。
func NewGitHubAdapter(httpClient *http.Client, logger *slog.Logger, guard URLValidator, userAgent string) *GitHubAdapter {
	parser := gofeed.NewParser()
	parser.Client = httpClient
	parser.UserAgent = userAgent
	return &GitHubAdapter{
		httpClient: httpClient,
		logger:     logger,
		guard:      guard,
		userAgent:  userAgent,
		feedParser: parser,
		apiBase:    defaultGitHubAPIBase,
		feedBase:   defaultGitHubFeedBase,
	}
}

// PlatformID はgithubを返す。
func (a *GitHubAdapter) PlatformID() model.PlatformID {
	return model.PlatformGitHub
}

// ghUser は /users/{username} APIのレスポンス。
type ghUser struct {
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Bio         string `json:"bio"`
}

// ghRepo は /users/{username}/repos APIのレスポンス要素。
type ghRepo struct {
	StargazersCount int `json:"stargazers_count"`
}

// FetchStats はGitHubの公開統計を取得する。
// スター合計とアクティビティ数は補助的な値のため、取得失敗時は
// 0として続行する（ユーザーAPI自体の失敗のみエラー）。
func (a *GitHubAdapter) FetchStats(ctx context.Context, username string) (*RawStats, error) {
	user, err := a.fetchUser(ctx, username)
	if err != nil {
		return nil, err
	}

	return &RawStats{
		PublicRepoCount:     user.PublicRepos,
		FollowerCount:       user.Followers,
		StarCount:           a.fetchTotalStars(ctx, username),
		RecentActivityCount: a.fetchRecentActivityCount(ctx, username),
	}, nil
}

// CheckOwnership は公開プロフィールのbio欄に検証コードが含まれるかを確認する。
// bioが未設定（null）の場合は (false, nil)。
func (a *GitHubAdapter) CheckOwnership(ctx context.Context, username string, code string) (bool, error) {
	user, err := a.fetchUser(ctx, username)
	if err != nil {
		return false, err
	}
	return strings.Contains(user.Bio, code), nil
}

// fetchUser は /users/{username} APIからプロフィールを取得する。
func (a *GitHubAdapter) fetchUser(ctx context.Context, username string) (*ghUser, error) {
	userURL := fmt.Sprintf("%s/users/%s", a.apiBase, url.PathEscape(username))
	var user ghUser
	if err := getJSON(ctx, a.httpClient, a.guard, userURL, a.userAgent, &user); err != nil {
		a.logger.Error("GitHubユーザー情報の取得に失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError(string(model.PlatformGitHub), err.Error())
	}
	return &user, nil
}

// fetchTotalStars は公開リポジトリのスター数合計を取得する。
// 取得に失敗した場合は0を返す（統計全体を失敗させない）。
func (a *GitHubAdapter) fetchTotalStars(ctx context.Context, username string) int {
	reposURL := fmt.Sprintf("%s/users/%s/repos", a.apiBase, url.PathEscape(username))
	var repos []ghRepo
	if err := getJSON(ctx, a.httpClient, a.guard, reposURL, a.userAgent, &repos); err != nil {
		a.logger.Warn("GitHubリポジトリ一覧の取得に失敗したため、スター数を0とします",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return 0
	}

	total := 0
	for _, repo := range repos {
		total += repo.StargazersCount
	}
	return total
}

// fetchRecentActivityCount は公開アクティビティAtomフィードの
// エントリ数を取得する。取得・パース失敗時は0を返す。
func (a *GitHubAdapter) fetchRecentActivityCount(ctx context.Context, username string) int {
	feedURL := fmt.Sprintf("%s/%s.atom", a.feedBase, url.PathEscape(username))
	if err := a.guard.ValidateURL(feedURL); err != nil {
		a.logger.Warn("安全でないフィードURLのため、アクティビティ数を0とします",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return 0
	}
	feed, err := a.feedParser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		a.logger.Warn("GitHubアクティビティフィードの取得に失敗したため、0とします",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return 0
	}
	return len(feed.Items)
}
