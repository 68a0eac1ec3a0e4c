// Package model はドメインモデルを定義する。
package model

import "time"

// PlatformID は連携対象の外部プラットフォーム識別子を表す。
// 対応プラットフォームはビルド時に固定され、レジストリへの登録で拡張する。
type PlatformID string

const (
	// PlatformCodeforces はCodeforces（REST API）。
	PlatformCodeforces PlatformID = "codeforces"
	// PlatformGitHub はGitHub（REST API + 公開アクティビティAtomフィード）。
	PlatformGitHub PlatformID = "github"
	// PlatformLeetCode はLeetCode（GraphQL API）。
	PlatformLeetCode PlatformID = "leetcode"
	// PlatformCodeChef はCodeChef（公開プロフィールページのスクレイピング）。
	PlatformCodeChef PlatformID = "codechef"
	// PlatformGeeksforGeeks はGeeksforGeeks（公開プロフィールページのスクレイピング）。
	PlatformGeeksforGeeks PlatformID = "geeksforgeeks"
)

// BindingStatus は（ユーザー, プラットフォーム）束縛の検証状態を表す。
// 束縛レコードが存在しない状態が「未連携」であり、明示的なステータス値は持たない。
type BindingStatus string

const (
	// BindingStatusPending は検証コード発行済み・検証待ちの状態。
	BindingStatusPending BindingStatus = "pending"
	// BindingStatusVerified は所有権検証済みの状態。
	BindingStatusVerified BindingStatus = "verified"
)

// PlatformBinding は1ユーザーと1外部プラットフォームアカウントの束縛を表す。
// 不変条件:
//   - VerificationCode はStatusがpendingの場合に限り非空。
//   - Stats はStatusがverifiedの場合に限り非nil。
//   - 同一(UserID, PlatformID)の束縛は常に高々1件（ストレージのUNIQUE制約で強制）。
type PlatformBinding struct {
	ID               string
	UserID           string
	PlatformID       PlatformID
	ExternalUsername string
	Status           BindingStatus
	VerificationCode string
	Stats            *PlatformStats
	LastFetchedAt    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PlatformStats はプラットフォーム横断の正規化済み統計を表す。
// 各プラットフォームが提供しないフィールドはゼロ値のまま保持され、
// 欠損（null）にはならない。JSONタグはJSONB永続化とAPI応答の両方で使用する。
type PlatformStats struct {
	Rating              int            `json:"rating"`
	MaxRating           int            `json:"max_rating"`
	ProblemsSolved      int            `json:"problems_solved"`
	EasyCount           int            `json:"easy_count"`
	MediumCount         int            `json:"medium_count"`
	HardCount           int            `json:"hard_count"`
	ContestsAttended    int            `json:"contests_attended"`
	Rank                string         `json:"rank"`
	TotalSubmissions    int            `json:"total_submissions"`
	MaxStreak           int            `json:"max_streak"`
	PublicRepoCount     int            `json:"public_repo_count"`
	FollowerCount       int            `json:"follower_count"`
	StarCount           int            `json:"star_count"`
	RecentActivityCount int            `json:"recent_activity_count"`
	ProblemRatings      map[string]int `json:"problem_ratings"`
}
