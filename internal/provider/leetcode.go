package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/hitoshi/statly/internal/model"
)

// defaultLeetCodeEndpoint はLeetCode GraphQL APIのエンドポイント。
const defaultLeetCodeEndpoint = "https://leetcode.com/graphql"

// leetCodeStatsQuery は統計取得用のGraphQLクエリ。
// 難易度別のAC数とコンテスト成績を1リクエストで取得する。
const leetCodeStatsQuery = `
query getUserProfile($username: String!) {
    matchedUser(username: $username) {
        username
        submitStats: submitStatsGlobal {
            acSubmissionNum { difficulty count submissions }
        }
    }
    userContestRanking(username: $username) {
        attendedContestsCount
        rating
    }
}`

// leetCodeProfileQuery は所有権確認用のGraphQLクエリ。
const leetCodeProfileQuery = `
query userPublicProfile($username: String!) {
    matchedUser(username: $username) {
        profile {
            aboutMe
        }
    }
}`

// LeetCodeAdapter はLeetCode GraphQL APIのアダプタ。
type LeetCodeAdapter struct {
	httpClient *http.Client
	logger     *slog.Logger
	guard      URLValidator
	userAgent  string

	// テスト用にエンドポイントを差し替え可能
	endpoint string
}

// NewLeetCodeAdapter はLeetCodeAdapterの新しいインスタンスを生成する。
func NewLeetCodeAdapter(httpClient *http.Client, logger *slog.Logger, guard URLValidator, userAgent string) *LeetCodeAdapter {
	return &LeetCodeAdapter{
		httpClient: httpClient,
		logger:     logger,
		guard:      guard,
		userAgent:  userAgent,
		endpoint:   defaultLeetCodeEndpoint,
	}
}

// PlatformID はleetcodeを返す。
func (a *LeetCodeAdapter) PlatformID() model.PlatformID {
	return model.PlatformLeetCode
}

// graphqlRequest はGraphQLリクエストのペイロード。
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// lcStatsResponse は統計クエリのレスポンス。
// 未参加ユーザーの userContestRanking はnullで返るためポインタで受ける。
type lcStatsResponse struct {
	Data struct {
		MatchedUser *struct {
			SubmitStats struct {
				ACSubmissionNum []lcSubmissionNum `json:"acSubmissionNum"`
			} `json:"submitStats"`
		} `json:"matchedUser"`
		UserContestRanking *struct {
			AttendedContestsCount int     `json:"attendedContestsCount"`
			Rating                float64 `json:"rating"`
		} `json:"userContestRanking"`
	} `json:"data"`
}

type lcSubmissionNum struct {
	Difficulty  string `json:"difficulty"`
	Count       int    `json:"count"`
	Submissions int    `json:"submissions"`
}

// lcProfileResponse は所有権確認クエリのレスポンス。
type lcProfileResponse struct {
	Data struct {
		MatchedUser *struct {
			Profile struct {
				AboutMe string `json:"aboutMe"`
			} `json:"profile"`
		} `json:"matchedUser"`
	} `json:"data"`
}

// FetchStats はLeetCodeの公開統計を取得する。
// 合計解答数は難易度別AC数の和。コンテスト未参加のユーザーは
// コンテスト数・レーティングとも0とする。
func (a *LeetCodeAdapter) FetchStats(ctx context.Context, username string) (*RawStats, error) {
	var resp lcStatsResponse
	if err := a.query(ctx, leetCodeStatsQuery, username, &resp); err != nil {
		return nil, err
	}
	if resp.Data.MatchedUser == nil {
		return nil, model.NewUpstreamError(string(model.PlatformLeetCode),
			fmt.Sprintf("ユーザーが見つかりません: %s", username))
	}

	stats := &RawStats{}
	for _, num := range resp.Data.MatchedUser.SubmitStats.ACSubmissionNum {
		switch num.Difficulty {
		case "Easy":
			stats.EasyCount = num.Count
		case "Medium":
			stats.MediumCount = num.Count
		case "Hard":
			stats.HardCount = num.Count
		case "All":
			stats.TotalSubmissions = num.Submissions
		}
	}
	stats.ProblemsSolved = stats.EasyCount + stats.MediumCount + stats.HardCount

	if ranking := resp.Data.UserContestRanking; ranking != nil {
		stats.ContestsAttended = ranking.AttendedContestsCount
		stats.Rating = int(math.Round(ranking.Rating))
	}

	return stats, nil
}

// CheckOwnership は公開プロフィールのaboutMe欄に検証コードが含まれるかを確認する。
func (a *LeetCodeAdapter) CheckOwnership(ctx context.Context, username string, code string) (bool, error) {
	var resp lcProfileResponse
	if err := a.query(ctx, leetCodeProfileQuery, username, &resp); err != nil {
		return false, err
	}
	if resp.Data.MatchedUser == nil {
		return false, model.NewUpstreamError(string(model.PlatformLeetCode),
			fmt.Sprintf("ユーザーが見つかりません: %s", username))
	}
	return strings.Contains(resp.Data.MatchedUser.Profile.AboutMe, code), nil
}

// query はGraphQLクエリを実行してレスポンスをoutにデコードする。
func (a *LeetCodeAdapter) query(ctx context.Context, query string, username string, out any) error {
	payload := graphqlRequest{
		Query:     query,
		Variables: map[string]any{"username": username},
	}
	if err := postJSON(ctx, a.httpClient, a.guard, a.endpoint, a.userAgent, payload, out); err != nil {
		a.logger.Error("LeetCode GraphQL APIの呼び出しに失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return model.NewUpstreamError(string(model.PlatformLeetCode), err.Error())
	}
	return nil
}
