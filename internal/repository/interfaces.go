// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/statly/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、platform_bindingsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。
	// 見つからない場合および期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// BindingRepository はプラットフォーム束縛の永続化インターフェース。
// 同一(userID, platform)の束縛はUNIQUE制約により常に高々1件。
type BindingRepository interface {
	// FindByUserAndPlatform は指定ユーザー・プラットフォームの束縛を取得する。
	// 見つからない場合はnilを返す（束縛なし = 未連携）。
	FindByUserAndPlatform(ctx context.Context, userID string, platform model.PlatformID) (*model.PlatformBinding, error)

	// ListByUserID は指定ユーザーの全束縛をプラットフォーム名順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.PlatformBinding, error)

	// Upsert は束縛を挿入または(userID, platform)キーで置換する。
	// 1行の原子的な書き込みであり、並行更新は後勝ちになる。
	Upsert(ctx context.Context, binding *model.PlatformBinding) error

	// Delete は指定ユーザー・プラットフォームの束縛を削除する。
	// 束縛が存在しなくてもエラーにしない（冪等）。
	Delete(ctx context.Context, userID string, platform model.PlatformID) error

	// ListVerifiedStale は検証済みかつ最終取得がolderThanより古い
	// （または一度も取得されていない）束縛を最大limit件返す。
	// 定期更新ワーカーのスキャンに使用する。
	ListVerifiedStale(ctx context.Context, olderThan time.Time, limit int) ([]*model.PlatformBinding, error)
}
