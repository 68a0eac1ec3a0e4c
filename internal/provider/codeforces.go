package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/statly/internal/model"
)

const (
	// defaultCodeforcesUserInfoEndpoint はユーザー情報取得APIのエンドポイント。
	defaultCodeforcesUserInfoEndpoint = "https://codeforces.com/api/user.info"
	// defaultCodeforcesUserStatusEndpoint は提出履歴取得APIのエンドポイント。
	defaultCodeforcesUserStatusEndpoint = "https://codeforces.com/api/user.status"
	// defaultCodeforcesUserRatingEndpoint はレーティング履歴取得APIのエンドポイント。
	defaultCodeforcesUserRatingEndpoint = "https://codeforces.com/api/user.rating"

	// codeforcesSubmissionLimit は1回の取得で参照する提出数の上限。
	codeforcesSubmissionLimit = 5000
)

// CodeforcesAdapter はCodeforces公式REST APIのアダプタ。
// user.info・user.status・user.rating の3エンドポイントを組み合わせて統計を構成する。
type CodeforcesAdapter struct {
	httpClient *http.Client
	logger     *slog.Logger
	guard      URLValidator
	userAgent  string

	// テスト用にエンドポイントを差し替え可能
	userInfoEndpoint   string
	userStatusEndpoint string
	userRatingEndpoint string
}

// NewCodeforcesAdapter はCodeforcesAdapterの新しいインスタンスを生成する。
func NewCodeforcesAdapter(httpClient *http.Client, logger *slog.Logger, guard URLValidator, userAgent string) *CodeforcesAdapter {
	return &CodeforcesAdapter{
		httpClient:         httpClient,
		logger:             logger,
		guard:              guard,
		userAgent:          userAgent,
		userInfoEndpoint:   defaultCodeforcesUserInfoEndpoint,
		userStatusEndpoint: defaultCodeforcesUserStatusEndpoint,
		userRatingEndpoint: defaultCodeforcesUserRatingEndpoint,
	}
}

// PlatformID はcodeforcesを返す。
func (a *CodeforcesAdapter) PlatformID() model.PlatformID {
	return model.PlatformCodeforces
}

// cfUserInfoResponse は user.info APIのレスポンス。
type cfUserInfoResponse struct {
	Status string   `json:"status"`
	Result []cfUser `json:"result"`
}

type cfUser struct {
	Rating       int    `json:"rating"`
	MaxRating    int    `json:"maxRating"`
	Rank         string `json:"rank"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Organization string `json:"organization"`
}

// cfUserStatusResponse は user.status APIのレスポンス。
type cfUserStatusResponse struct {
	Status string         `json:"status"`
	Result []cfSubmission `json:"result"`
}

type cfSubmission struct {
	Verdict string    `json:"verdict"`
	Problem cfProblem `json:"problem"`
}

type cfProblem struct {
	ContestID int    `json:"contestId"`
	Index     string `json:"index"`
	Rating    int    `json:"rating"`
}

// cfUserRatingResponse は user.rating APIのレスポンス。
// 各要素はコンテスト参加1回分を表し、件数のみを使用する。
type cfUserRatingResponse struct {
	Status string           `json:"status"`
	Result []map[string]any `json:"result"`
}

// FetchStats はCodeforcesの公開統計を取得する。
// 解答済み問題数は提出履歴から verdict=OK の提出を
// "contestId-index" の問題キーで重複排除して数える。
// 同じ問題への再提出は1問として扱う。
func (a *CodeforcesAdapter) FetchStats(ctx context.Context, username string) (*RawStats, error) {
	user, err := a.fetchUserInfo(ctx, username)
	if err != nil {
		return nil, err
	}

	statusURL := fmt.Sprintf("%s?handle=%s&from=1&count=%d",
		a.userStatusEndpoint, url.QueryEscape(username), codeforcesSubmissionLimit)
	var statusResp cfUserStatusResponse
	if err := getJSON(ctx, a.httpClient, a.guard, statusURL, a.userAgent, &statusResp); err != nil {
		a.logger.Error("Codeforces提出履歴の取得に失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError(string(model.PlatformCodeforces), err.Error())
	}
	if statusResp.Status != "OK" {
		return nil, model.NewUpstreamError(string(model.PlatformCodeforces),
			fmt.Sprintf("user.status APIがステータス %q を返しました", statusResp.Status))
	}

	ratingURL := fmt.Sprintf("%s?handle=%s", a.userRatingEndpoint, url.QueryEscape(username))
	var ratingResp cfUserRatingResponse
	if err := getJSON(ctx, a.httpClient, a.guard, ratingURL, a.userAgent, &ratingResp); err != nil {
		a.logger.Error("Codeforcesレーティング履歴の取得に失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError(string(model.PlatformCodeforces), err.Error())
	}

	// 問題キーで重複排除しつつ、難易度が判明している問題は記録する
	solved := make(map[string]struct{})
	problemRatings := make(map[string]int)
	for _, sub := range statusResp.Result {
		if sub.Verdict != "OK" {
			continue
		}
		key := fmt.Sprintf("%d-%s", sub.Problem.ContestID, sub.Problem.Index)
		solved[key] = struct{}{}
		if sub.Problem.Rating > 0 {
			problemRatings[key] = sub.Problem.Rating
		}
	}
	if len(problemRatings) == 0 {
		problemRatings = nil
	}

	rank := user.Rank
	if rank == "" {
		rank = "Unrated"
	}

	return &RawStats{
		Rating:           user.Rating,
		MaxRating:        user.MaxRating,
		Rank:             rank,
		ProblemsSolved:   len(solved),
		ContestsAttended: len(ratingResp.Result),
		TotalSubmissions: len(statusResp.Result),
		ProblemRatings:   problemRatings,
	}, nil
}

// CheckOwnership はプロフィールの氏名・所属欄に検証コードが含まれるかを確認する。
// Codeforcesには自己紹介APIフィールドがないため、
// firstName・lastName・organization を連結した文字列を検査対象とする。
func (a *CodeforcesAdapter) CheckOwnership(ctx context.Context, username string, code string) (bool, error) {
	user, err := a.fetchUserInfo(ctx, username)
	if err != nil {
		return false, err
	}

	bio := fmt.Sprintf("%s %s %s", user.FirstName, user.LastName, user.Organization)
	return strings.Contains(bio, code), nil
}

// fetchUserInfo は user.info APIからプロフィールを取得する。
// ハンドルが存在しない場合、CodeforcesはHTTP 400を返すため
// 上流エラーとして伝播する。
func (a *CodeforcesAdapter) fetchUserInfo(ctx context.Context, username string) (*cfUser, error) {
	infoURL := fmt.Sprintf("%s?handles=%s", a.userInfoEndpoint, url.QueryEscape(username))
	var resp cfUserInfoResponse
	if err := getJSON(ctx, a.httpClient, a.guard, infoURL, a.userAgent, &resp); err != nil {
		a.logger.Error("Codeforcesユーザー情報の取得に失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError(string(model.PlatformCodeforces), err.Error())
	}
	if resp.Status != "OK" || len(resp.Result) == 0 {
		return nil, model.NewUpstreamError(string(model.PlatformCodeforces),
			fmt.Sprintf("user.info APIからユーザーが返されませんでした: %s", username))
	}
	return &resp.Result[0], nil
}
