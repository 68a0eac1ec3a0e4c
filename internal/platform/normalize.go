package platform

import (
	"github.com/hitoshi/statly/internal/model"
	"github.com/hitoshi/statly/internal/provider"
)

// Normalize は取得直後の統計を正規化済みのPlatformStatsに変換する。
// 全域関数であり失敗しない。プラットフォームが提供しないフィールドは
// ゼロ値（数値は0、文字列は空、マップは空マップ）になり、
// 消費側はプラットフォームを問わず同一の形として扱える。
func Normalize(raw *provider.RawStats) *model.PlatformStats {
	if raw == nil {
		raw = &provider.RawStats{}
	}

	stats := &model.PlatformStats{
		Rating:              raw.Rating,
		MaxRating:           raw.MaxRating,
		Rank:                raw.Rank,
		ProblemsSolved:      raw.ProblemsSolved,
		EasyCount:           raw.EasyCount,
		MediumCount:         raw.MediumCount,
		HardCount:           raw.HardCount,
		ContestsAttended:    raw.ContestsAttended,
		TotalSubmissions:    raw.TotalSubmissions,
		MaxStreak:           raw.MaxStreak,
		PublicRepoCount:     raw.PublicRepoCount,
		FollowerCount:       raw.FollowerCount,
		StarCount:           raw.StarCount,
		RecentActivityCount: raw.RecentActivityCount,
		ProblemRatings:      make(map[string]int, len(raw.ProblemRatings)),
	}

	// マップはJSONでnullにならないよう必ず非nilにする
	for k, v := range raw.ProblemRatings {
		stats.ProblemRatings[k] = v
	}

	return stats
}
