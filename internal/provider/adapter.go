// Package provider は外部プラットフォームごとのアダプタ実装を提供する。
// 各アダプタは統計取得（FetchStats）と所有権確認（CheckOwnership）の
// 2操作を持ち、REST API・GraphQL・HTMLスクレイピングという
// プラットフォームごとの差異をこのパッケージ内に閉じ込める。
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/statly/internal/model"
)

// maxResponseBytes はアダプタが読み取るレスポンスボディの上限。
// Codeforcesの user.status（最大5000件）でも十分収まるサイズ。
const maxResponseBytes = 5 * 1024 * 1024

// RawStats はアダプタが返す取得直後の統計を表す。
// プラットフォームが提供しないフィールドはゼロ値のまま残し、
// 正規化層（platform.Normalize）がデフォルト値の補完を行う。
type RawStats struct {
	Rating           int
	MaxRating        int
	Rank             string
	ProblemsSolved   int
	EasyCount        int
	MediumCount      int
	HardCount        int
	ContestsAttended int
	TotalSubmissions int
	MaxStreak        int

	// GitHub固有
	PublicRepoCount     int
	FollowerCount       int
	StarCount           int
	RecentActivityCount int

	// 問題キー→問題難易度のマッピング（提供するプラットフォームのみ）。
	ProblemRatings map[string]int
}

// Adapter は1つの外部プラットフォームとの対話を抽象化する。
// 実装はコンテキストのキャンセル・タイムアウトを尊重しなければならない。
type Adapter interface {
	// PlatformID はこのアダプタが担当するプラットフォーム識別子を返す。
	PlatformID() model.PlatformID

	// FetchStats は外部アカウントの公開統計を取得する。
	// アカウントが存在しない・上流が到達不能などの致命的な失敗は
	// エラーを返す。任意フィールドの欠損はゼロ値で吸収し、エラーにしない。
	FetchStats(ctx context.Context, username string) (*RawStats, error)

	// CheckOwnership は外部アカウントの公開プロフィールに
	// 検証コードが含まれているかを確認する。
	// プロフィールが取得できた上でコードが見つからない場合は (false, nil)。
	// プロフィール自体が取得できない場合はエラーを返す。
	CheckOwnership(ctx context.Context, username string, code string) (bool, error)
}

// URLValidator は送信前のURL検証を行う。
// security.SSRFGuardServiceの部分集合として定義する。
// エンドポイントにはユーザー入力（外部アカウント名）が埋め込まれるため、
// 全アウトバウンドリクエストは送信前にこの検証を通る。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// getJSON はGETリクエストを送信し、JSONレスポンスをoutにデコードする。
func getJSON(ctx context.Context, client *http.Client, guard URLValidator, rawURL string, userAgent string, out any) error {
	body, err := getBody(ctx, client, guard, rawURL, userAgent, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// postJSON はJSONペイロードをPOSTし、JSONレスポンスをoutにデコードする。
func postJSON(ctx context.Context, client *http.Client, guard URLValidator, rawURL string, userAgent string, payload any, out any) error {
	if err := guard.ValidateURL(rawURL); err != nil {
		return fmt.Errorf("安全でないURLへのリクエストを拒否しました: %w", err)
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("上流がステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// getBody はGETリクエストを送信し、レスポンスボディを返す。
// ステータスコードが200以外の場合はエラーを返す。
func getBody(ctx context.Context, client *http.Client, guard URLValidator, rawURL string, userAgent string, accept string) ([]byte, error) {
	if err := guard.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("安全でないURLへのリクエストを拒否しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("上流がステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	return body, nil
}
